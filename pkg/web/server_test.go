package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-callassist/pkg/hub"
	"github.com/teslashibe/go-callassist/pkg/persona"
	"github.com/teslashibe/go-callassist/pkg/session"
	"github.com/teslashibe/go-callassist/pkg/summary"
	"github.com/teslashibe/go-callassist/pkg/transcript"
)

type fakeEngine struct {
	mu          sync.Mutex
	startErr    error
	endErr      error
	started     []persona.Kind
	summarize   []bool
	muted       *bool
	interrupted int
	snapshot    session.Snapshot
	utterances  []transcript.Utterance
	last        *session.Outcome
}

var _ Controller = (*fakeEngine)(nil)

func (f *fakeEngine) Start(ctx context.Context) (string, error) {
	return f.StartWith(ctx, persona.Persona{Kind: persona.KindFollowUpCall})
}

func (f *fakeEngine) StartWith(_ context.Context, p persona.Persona) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, p.Kind)
	return "s-1", nil
}

func (f *fakeEngine) EndSession(_ context.Context, shouldSummarize bool) (*session.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summarize = append(f.summarize, shouldSummarize)
	if f.endErr != nil {
		return nil, f.endErr
	}
	return &session.Outcome{SessionID: "s-1", EndedBy: session.EndedByUser}, nil
}

func (f *fakeEngine) Interrupt() (int, error) {
	if f.interrupted < 0 {
		return 0, session.ErrNoSession
	}
	return f.interrupted, nil
}

func (f *fakeEngine) SetMuted(muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = &muted
	return nil
}

func (f *fakeEngine) Snapshot() session.Snapshot         { return f.snapshot }
func (f *fakeEngine) Transcript() []transcript.Utterance { return f.utterances }
func (f *fakeEngine) LastOutcome() *session.Outcome      { return f.last }

func do(t *testing.T, s *Server, method, target, body string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func newTestServer(f *fakeEngine, opts ...Option) *Server {
	return NewServer(f, hub.New("test", nil), opts...)
}

func TestServer_Status(t *testing.T) {
	f := &fakeEngine{snapshot: session.Snapshot{
		SessionID:  "s-1",
		State:      session.StateActive,
		Persona:    persona.KindFollowUpCall,
		Utterances: 3,
	}}
	code, body := do(t, newTestServer(f), http.MethodGet, "/api/status", "")

	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"sessionId":"s-1","state":"active","persona":"followup",
		"elapsed":0,"utterances":3,"activeBuffers":0,"muted":false}`, body)
}

func TestServer_Start(t *testing.T) {
	t.Run("default persona", func(t *testing.T) {
		f := &fakeEngine{}
		code, body := do(t, newTestServer(f), http.MethodPost, "/api/session/start", "")
		assert.Equal(t, http.StatusAccepted, code)
		assert.JSONEq(t, `{"sessionId":"s-1"}`, body)
		assert.Equal(t, []persona.Kind{persona.KindFollowUpCall}, f.started)
	})

	t.Run("requested persona", func(t *testing.T) {
		f := &fakeEngine{}
		code, _ := do(t, newTestServer(f), http.MethodPost, "/api/session/start",
			`{"persona":"onboarding","client":{"name":"Sam"}}`)
		assert.Equal(t, http.StatusAccepted, code)
		assert.Equal(t, []persona.Kind{persona.KindSimulatedClient}, f.started)
	})

	t.Run("unknown persona", func(t *testing.T) {
		f := &fakeEngine{}
		code, body := do(t, newTestServer(f), http.MethodPost, "/api/session/start", `{"persona":"pirate"}`)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Contains(t, body, "pirate")
		assert.Empty(t, f.started)
	})

	t.Run("already active", func(t *testing.T) {
		f := &fakeEngine{startErr: session.ErrSessionActive}
		code, body := do(t, newTestServer(f), http.MethodPost, "/api/session/start", "")
		assert.Equal(t, http.StatusConflict, code)
		assert.Contains(t, body, session.ErrSessionActive.Error())
	})

	t.Run("engine closed", func(t *testing.T) {
		f := &fakeEngine{startErr: session.ErrEngineClosed}
		code, _ := do(t, newTestServer(f), http.MethodPost, "/api/session/start", "")
		assert.Equal(t, http.StatusServiceUnavailable, code)
	})
}

func TestServer_End(t *testing.T) {
	f := &fakeEngine{}
	s := newTestServer(f)

	code, body := do(t, s, http.MethodPost, "/api/session/end", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"endedBy":"user"`)

	code, _ = do(t, s, http.MethodPost, "/api/session/end?summarize=false", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []bool{true, false}, f.summarize)

	f.endErr = session.ErrNoSession
	code, _ = do(t, s, http.MethodPost, "/api/session/end", "")
	assert.Equal(t, http.StatusConflict, code)
}

func TestServer_InterruptAndMute(t *testing.T) {
	f := &fakeEngine{interrupted: 2}
	s := newTestServer(f)

	code, body := do(t, s, http.MethodPost, "/api/session/interrupt", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"stopped":2}`, body)

	f.interrupted = -1
	code, _ = do(t, s, http.MethodPost, "/api/session/interrupt", "")
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, s, http.MethodPost, "/api/session/mute", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, s, http.MethodPost, "/api/session/mute", `{"muted":true}`)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"muted":true}`, body)
	require.NotNil(t, f.muted)
	assert.True(t, *f.muted)
}

func TestServer_TranscriptAndOutcome(t *testing.T) {
	f := &fakeEngine{}
	s := newTestServer(f)

	code, body := do(t, s, http.MethodGet, "/api/transcript", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, body)

	code, _ = do(t, s, http.MethodGet, "/api/outcome", "")
	assert.Equal(t, http.StatusNotFound, code)

	f.utterances = []transcript.Utterance{{Speaker: transcript.SpeakerLocal, Text: "Hello", Turn: 1}}
	f.last = &session.Outcome{
		SessionID: "s-1",
		Summary:   &summary.Summary{ProfileSummary: "Nurse, two kids"},
		EndedBy:   session.EndedByUser,
	}

	code, body = do(t, s, http.MethodGet, "/api/transcript", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"text":"Hello"`)

	code, body = do(t, s, http.MethodGet, "/api/outcome", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"profileSummary":"Nurse, two kids"`)
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "callassist_test_total",
		Help: "Test counter.",
	}).Add(3)

	code, body := do(t, newTestServer(&fakeEngine{}, WithGatherer(reg)), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "callassist_test_total 3")
}

func TestServer_EventsRequiresUpgrade(t *testing.T) {
	code, _ := do(t, newTestServer(&fakeEngine{}), http.MethodGet, "/ws/events", "")
	assert.Equal(t, http.StatusUpgradeRequired, code)
}

func TestServer_EventStream(t *testing.T) {
	h := hub.New("events", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	f := &fakeEngine{snapshot: session.Snapshot{SessionID: "s-1", State: session.StateActive}}
	s := NewServer(f, h)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.App().Listener(ln) }()
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), time.Second)
		defer scancel()
		_ = s.Shutdown(sctx)
	}()

	conn, _, err := gorilla.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/events", nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ev hub.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventSnapshot, ev.Type)
	assert.Equal(t, "s-1", ev.SessionID)

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	hooks := Hooks(h, nil)
	hooks.OnStateChange("s-1", session.StateConnecting, session.StateActive)
	hooks.OnTick("s-1", 1500*time.Millisecond)

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventState, ev.Type)
	var sc map[string]string
	require.NoError(t, json.Unmarshal(ev.Data, &sc))
	assert.Equal(t, map[string]string{"from": "connecting", "to": "active"}, sc)

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventTick, ev.Type)
	assert.JSONEq(t, `{"elapsedMs":1500,"elapsed":"1s"}`, string(ev.Data))
}
