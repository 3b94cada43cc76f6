package live

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-callassist/pkg/transcript"
)

// Mock is a Dialer returning scripted sessions for testing.
type Mock struct {
	mu       sync.Mutex
	openErr  error
	delay    time.Duration
	sessions []*MockSession
	configs  []Config
	autoOpen bool
	opened   chan *MockSession
}

// MockOption configures a Mock dialer.
type MockOption func(*Mock)

// WithOpenError makes Open fail with err.
func WithOpenError(err error) MockOption {
	return func(m *Mock) {
		m.openErr = err
	}
}

// WithOpenDelay makes Open wait d (or until ctx is done) before returning.
func WithOpenDelay(d time.Duration) MockOption {
	return func(m *Mock) {
		m.delay = d
	}
}

// WithAutoOpen makes every session emit Opened as soon as it is created.
func WithAutoOpen() MockOption {
	return func(m *Mock) {
		m.autoOpen = true
	}
}

// NewMock creates a mock dialer.
func NewMock(opts ...MockOption) *Mock {
	m := &Mock{opened: make(chan *MockSession, 16)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetOpenError changes the error returned by subsequent Open calls.
func (m *Mock) SetOpenError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}

// Open implements Dialer.
func (m *Mock) Open(ctx context.Context, cfg Config) (Session, error) {
	m.mu.Lock()
	delay, openErr := m.delay, m.openErr
	m.configs = append(m.configs, cfg)
	m.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, NewConnectionError("dial", ctx.Err(), false)
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, NewConnectionError("dial", err, false)
	}
	if openErr != nil {
		return nil, openErr
	}

	cfg = cfg.withDefaults()
	s := NewMockSession(cfg.EventQueue, cfg.SendQueue, cfg.Logger)

	m.mu.Lock()
	m.sessions = append(m.sessions, s)
	m.mu.Unlock()

	if m.autoOpen {
		s.SimulateOpened()
	}
	select {
	case m.opened <- s:
	default:
	}
	return s, nil
}

// Sessions returns every session opened so far.
func (m *Mock) Sessions() []*MockSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockSession(nil), m.sessions...)
}

// Last returns the most recently opened session, or nil.
func (m *Mock) Last() *MockSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions) == 0 {
		return nil
	}
	return m.sessions[len(m.sessions)-1]
}

// Configs returns the configs passed to Open.
func (m *Mock) Configs() []Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Config(nil), m.configs...)
}

// Opened returns a channel receiving each session as it is opened.
func (m *Mock) Opened() <-chan *MockSession {
	return m.opened
}

// MockSession is a Session driven by Simulate* calls.
type MockSession struct {
	*stream

	mu      sync.Mutex
	sent    []MediaChunk
	sendErr error
	closes  int

	drainDone chan struct{}
}

// NewMockSession creates a session whose outbound chunks are recorded.
func NewMockSession(eventQueue, sendQueue int, logger *slog.Logger) *MockSession {
	if logger == nil {
		logger = slog.Default()
	}
	if eventQueue <= 0 {
		eventQueue = DefaultConfig().EventQueue
	}
	if sendQueue <= 0 {
		sendQueue = DefaultConfig().SendQueue
	}
	s := &MockSession{
		stream:    newStream(eventQueue, sendQueue, logger.With("component", "live", "provider", "mock")),
		drainDone: make(chan struct{}),
	}
	go s.drain()
	return s
}

func (s *MockSession) drain() {
	defer close(s.drainDone)
	for {
		select {
		case <-s.done:
			return
		case c := <-s.out:
			s.mu.Lock()
			s.sent = append(s.sent, c)
			s.mu.Unlock()
			s.chunksSent.Add(1)
		}
	}
}

// Send implements Session.
func (s *MockSession) Send(chunk MediaChunk) error {
	s.mu.Lock()
	err := s.sendErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.stream.Send(chunk)
}

// SetSendError makes Send fail with err.
func (s *MockSession) SetSendError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErr = err
}

// Close implements Session.
func (s *MockSession) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	s.shutdown("client closed")
	<-s.drainDone
	return nil
}

// Closes returns how many times Close was called.
func (s *MockSession) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// IsClosed reports whether the session has terminated.
func (s *MockSession) IsClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Sent returns the chunks transmitted so far, in order.
func (s *MockSession) Sent() []MediaChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MediaChunk(nil), s.sent...)
}

// SimulateOpened emits Opened.
func (s *MockSession) SimulateOpened() bool {
	return s.emit(Opened{})
}

// SimulatePartial emits a transcript fragment.
func (s *MockSession) SimulatePartial(speaker transcript.Speaker, text string) bool {
	return s.emit(PartialTranscript{Speaker: speaker, Text: text})
}

// SimulateTurnComplete emits TurnComplete.
func (s *MockSession) SimulateTurnComplete() bool {
	return s.emit(TurnComplete{})
}

// SimulateAudio emits an audio chunk.
func (s *MockSession) SimulateAudio(pcm []byte) bool {
	return s.emit(AudioChunk{Data: pcm, MIMEType: "audio/pcm;rate=24000"})
}

// SimulateInterrupted emits Interrupted.
func (s *MockSession) SimulateInterrupted() bool {
	return s.emit(Interrupted{})
}

// SimulateError emits Error followed by Closed.
func (s *MockSession) SimulateError(err error) {
	s.fail(err, "connection lost")
}

// SimulateRemoteClose emits Closed.
func (s *MockSession) SimulateRemoteClose(reason string) {
	s.terminate(reason)
}

var _ Dialer = (*Mock)(nil)
var _ Session = (*MockSession)(nil)
