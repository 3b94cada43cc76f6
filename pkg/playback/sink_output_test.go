package playback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-callassist/pkg/audioio"
)

func TestSinkOutput_PlaysInOrder(t *testing.T) {
	sink := audioio.NewMockSink(audioio.OutputConfig(), nil)
	out, err := NewSinkOutput(context.Background(), sink, nil)
	require.NoError(t, err)
	defer out.Close()

	s := NewScheduler(out, DefaultConfig(), nil)

	_, err = s.Schedule(pcm(10 * time.Millisecond))
	require.NoError(t, err)
	_, err = s.Schedule(make([]byte, 2*480))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(sink.Frames()) == 2 }, time.Second, time.Millisecond)
	frames := sink.Frames()
	assert.Len(t, frames[0].Samples, 240)
	assert.Len(t, frames[1].Samples, 480)

	require.Eventually(t, func() bool { return s.Active() == 0 }, time.Second, time.Millisecond)
}

func TestSinkOutput_StopClearsSink(t *testing.T) {
	sink := audioio.NewMockSink(audioio.OutputConfig(), nil)
	out, err := NewSinkOutput(context.Background(), sink, nil)
	require.NoError(t, err)

	s := NewScheduler(out, DefaultConfig(), nil)
	_, err = s.Schedule(pcm(5 * time.Second))
	require.NoError(t, err)

	assert.Equal(t, 1, s.StopAll())
	assert.GreaterOrEqual(t, sink.Stats().Clears, int64(1))

	require.NoError(t, s.Close())
	_, err = out.Play(Buffer{Samples: []float32{0}, SampleRate: 24000, Channels: 1}, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

// stalledSink accepts no frames until its context is cancelled.
type stalledSink struct {
	*audioio.MockSink
}

func (s stalledSink) Write(ctx context.Context, _ audioio.Frame) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSinkOutput_QueueFullSchedulesNothing(t *testing.T) {
	out, err := NewSinkOutput(context.Background(), stalledSink{audioio.NewMockSink(audioio.OutputConfig(), nil)}, nil)
	require.NoError(t, err)
	defer out.Close()

	s := NewScheduler(out, DefaultConfig(), nil)
	chunk := pcm(500 * time.Millisecond)

	var full error
	for i := 0; i < sinkQueueSize+2 && full == nil; i++ {
		before, active := s.NextStart(), s.Active()
		if _, err := s.Schedule(chunk); err != nil {
			full = err
			assert.Equal(t, before, s.NextStart())
			assert.Equal(t, active, s.Active())
		}
	}
	require.ErrorIs(t, full, ErrQueueFull)
	assert.False(t, IsDecodeError(full))
}

func TestBuffer_Duration(t *testing.T) {
	b := Buffer{Samples: make([]float32, 48000), SampleRate: 24000, Channels: 2}
	assert.Equal(t, time.Second, b.Duration())
	assert.Equal(t, time.Duration(0), Buffer{}.Duration())
}
