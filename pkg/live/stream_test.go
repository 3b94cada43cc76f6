package live

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-callassist/pkg/transcript"
)

func collect(t *testing.T, s Session) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("event channel not closed, got %d events", len(out))
		}
	}
}

func kinds(events []Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Kind()
	}
	return out
}

func TestStream_OpenedFirst(t *testing.T) {
	s := NewMockSession(16, 4, nil)

	assert.False(t, s.SimulatePartial(transcript.SpeakerLocal, "early"))
	assert.False(t, s.SimulateAudio([]byte{0, 0}))
	assert.True(t, s.SimulateOpened())
	assert.False(t, s.SimulateOpened(), "opened is delivered once")
	assert.True(t, s.SimulatePartial(transcript.SpeakerLocal, "hello"))
	s.SimulateRemoteClose("done")

	events := collect(t, s)
	assert.Equal(t, []string{"opened", "partial_transcript", "closed"}, kinds(events))
	assert.Equal(t, Closed{Reason: "done"}, events[2])
	assert.Equal(t, int64(2), s.Stats().EventsDropped)
}

func TestStream_ClosedOnce(t *testing.T) {
	s := NewMockSession(16, 4, nil)
	s.SimulateOpened()
	s.SimulateRemoteClose("first")
	s.SimulateRemoteClose("second")
	s.SimulateError(errors.New("late"))
	assert.False(t, s.SimulateTurnComplete())

	events := collect(t, s)
	assert.Equal(t, []string{"opened", "closed"}, kinds(events))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestStream_ErrorThenClosed(t *testing.T) {
	s := NewMockSession(16, 4, nil)
	s.SimulateOpened()
	boom := errors.New("boom")
	s.SimulateError(boom)

	events := collect(t, s)
	require.Equal(t, []string{"opened", "error", "closed"}, kinds(events))
	assert.ErrorIs(t, events[1].(Error).Err, boom)
}

func TestStream_SendOrderAndBackpressure(t *testing.T) {
	s := NewMockSession(16, 64, nil)
	defer s.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Send(MediaChunk{Data: []byte{byte(i)}}))
	}
	require.Eventually(t, func() bool { return len(s.Sent()) == 10 }, time.Second, time.Millisecond)
	for i, c := range s.Sent() {
		assert.Equal(t, byte(i), c.Data[0])
	}
}

func TestStream_SendQueueFull(t *testing.T) {
	st := newStream(4, 1, testLogger())
	require.NoError(t, st.Send(MediaChunk{}))
	assert.ErrorIs(t, st.Send(MediaChunk{}), ErrSendQueueFull)
	assert.Equal(t, int64(1), st.Stats().ChunksDropped)
}

func TestStream_SendAfterClose(t *testing.T) {
	s := NewMockSession(16, 4, nil)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Send(MediaChunk{}), ErrClosed)
	assert.True(t, s.IsClosed())
	assert.Equal(t, 1, s.Closes())
}

func TestStream_CloseUnblocksFullChannel(t *testing.T) {
	s := NewMockSession(1, 4, nil)
	s.SimulateOpened()

	blocked := make(chan bool)
	go func() { blocked <- s.SimulateTurnComplete() }()

	select {
	case <-blocked:
		t.Fatal("emit should block while the channel is full")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, s.Close())
	select {
	case delivered := <-blocked:
		assert.False(t, delivered)
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock emitter")
	}

	events := collect(t, s)
	assert.Equal(t, []string{"opened"}, kinds(events))
}

func TestEvent_ExhaustiveKinds(t *testing.T) {
	events := []Event{
		Opened{}, PartialTranscript{}, TurnComplete{}, AudioChunk{}, Interrupted{}, Error{}, Closed{},
	}
	seen := map[string]bool{}
	for _, ev := range events {
		switch ev.(type) {
		case Opened, PartialTranscript, TurnComplete, AudioChunk, Interrupted, Error, Closed:
			seen[ev.Kind()] = true
		default:
			t.Fatalf("unexpected event %T", ev)
		}
	}
	assert.Len(t, seen, 7)
}
