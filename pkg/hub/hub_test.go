package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	require.Eventually(t, h.IsRunning, time.Second, time.Millisecond)
	return h, cancel
}

func join(t *testing.T, h *Hub) *Client {
	t.Helper()
	c := newClient(h, nil)
	h.register <- c
	return c
}

func next(t *testing.T, c *Client) (message, bool) {
	t.Helper()
	select {
	case m, ok := <-c.send:
		return m, ok
	case <-time.After(time.Second):
		t.Fatal("no message")
	}
	return nil, false
}

func TestHub_BroadcastsToAllClients(t *testing.T) {
	h, _ := runHub(t)
	a, b := join(t, h), join(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, time.Millisecond)

	ev, err := NewEvent("state", "s-1", map[string]string{"to": "active"})
	require.NoError(t, err)
	require.NoError(t, h.Publish(ev))

	for _, c := range []*Client{a, b} {
		m, ok := next(t, c)
		require.True(t, ok)
		var got Event
		require.NoError(t, json.Unmarshal(m, &got))
		assert.Equal(t, "state", got.Type)
		assert.Equal(t, "s-1", got.SessionID)
		assert.JSONEq(t, `{"to":"active"}`, string(got.Data))
	}
}

func TestHub_Unregister(t *testing.T) {
	h, _ := runHub(t)
	c := join(t, h)
	h.unregister <- c

	_, ok := next(t, c)
	assert.False(t, ok)
	assert.Equal(t, 0, h.ClientCount())
}

func TestHub_DropsSlowClient(t *testing.T) {
	h, _ := runHub(t)
	slow := join(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	for i := 0; i < cap(slow.send)+1; i++ {
		h.Broadcast([]byte(`{}`))
	}
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)

	n := 0
	for range slow.send {
		n++
	}
	assert.Equal(t, cap(slow.send), n)
}

func TestHub_StopDisconnectsClients(t *testing.T) {
	h, cancel := runHub(t)
	c := join(t, h)
	cancel()

	_, ok := next(t, c)
	assert.False(t, ok)
	require.Eventually(t, func() bool { return !h.IsRunning() }, time.Second, time.Millisecond)

	late := NewClient(h, nil)
	_, ok = <-late.send
	assert.False(t, ok)
}

func TestNewEvent_NilPayload(t *testing.T) {
	ev, err := NewEvent("ping", "", nil)
	require.NoError(t, err)
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"data"`)
	assert.NotContains(t, string(raw), `"sessionId"`)
}

type fakeConn struct {
	mu     sync.Mutex
	closes int
	frames []int
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}
func (f *fakeConn) ReadMessage() (int, []byte, error) { return 0, nil, errors.New("closed") }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }

func (f *fakeConn) WriteMessage(messageType int, _ []byte) error {
	time.Sleep(10 * time.Millisecond)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, messageType)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func TestClient_RunWaitsForWritePump(t *testing.T) {
	h, _ := runHub(t)
	conn := &fakeConn{}
	c := newClient(h, conn)
	h.register <- c

	c.Run()

	conn.mu.Lock()
	assert.Equal(t, 2, conn.closes)
	assert.Equal(t, []int{websocket.CloseMessage}, conn.frames)
	conn.mu.Unlock()
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)
}
