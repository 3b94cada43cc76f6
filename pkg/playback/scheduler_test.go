package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/teslashibe/go-callassist/pkg/audioio"
)

// pcm returns a silent PCM16 mono chunk lasting d at 24 kHz.
func pcm(d time.Duration) []byte {
	n := int(d * 24000 / time.Second)
	return make([]byte, n*2)
}

func newTestScheduler() (*Scheduler, *MockOutput) {
	out := NewMockOutput()
	return NewScheduler(out, DefaultConfig(), nil), out
}

func TestScheduler_BackToBack(t *testing.T) {
	s, out := newTestScheduler()

	var handles []Handle
	for i := 0; i < 3; i++ {
		h, err := s.Schedule(pcm(500 * time.Millisecond))
		require.NoError(t, err)
		handles = append(handles, h)
	}

	assert.Equal(t, time.Duration(0), handles[0].Start)
	assert.Equal(t, 500*time.Millisecond, handles[1].Start)
	assert.Equal(t, time.Second, handles[2].Start)
	assert.Equal(t, 1500*time.Millisecond, s.NextStart())
	assert.Equal(t, 3, s.Active())

	voices := out.Voices()
	require.Len(t, voices, 3)
	assert.Equal(t, time.Second, voices[2].Start)

	out.Advance(time.Second)
	require.Eventually(t, func() bool { return s.Active() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int64(2), s.Stats().Completed)
}

func TestScheduler_DrainedStartsAtNow(t *testing.T) {
	s, out := newTestScheduler()

	_, err := s.Schedule(pcm(100 * time.Millisecond))
	require.NoError(t, err)

	out.Advance(2 * time.Second)
	h, err := s.Schedule(pcm(100 * time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, h.Start)
}

func TestScheduler_StopAll(t *testing.T) {
	s, out := newTestScheduler()

	for i := 0; i < 3; i++ {
		_, err := s.Schedule(pcm(time.Second))
		require.NoError(t, err)
	}
	out.Advance(200 * time.Millisecond)

	assert.Equal(t, 3, s.StopAll())
	assert.Equal(t, 0, s.Active())
	assert.Equal(t, 200*time.Millisecond, s.NextStart())
	for _, v := range out.Voices() {
		assert.True(t, v.Stopped())
	}

	h, err := s.Schedule(pcm(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 200*time.Millisecond, h.Start, "new audio starts at now, not after the cancelled tail")

	assert.Equal(t, 1, s.StopAll())
	assert.Equal(t, 0, s.StopAll())
}

func TestScheduler_DecodeError(t *testing.T) {
	s, _ := newTestScheduler()

	_, err := s.Schedule(pcm(time.Second))
	require.NoError(t, err)
	before := s.NextStart()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"odd length", []byte{1, 2, 3}, audioio.ErrOddLength},
		{"empty", nil, ErrEmptyAudio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Schedule(tt.data)
			require.Error(t, err)
			assert.True(t, IsDecodeError(err))
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 1, s.Active())
			assert.Equal(t, before, s.NextStart())
		})
	}

	_, err = s.Schedule(pcm(time.Second))
	require.NoError(t, err, "a bad chunk does not stop later ones")
}

func TestScheduler_PlayError(t *testing.T) {
	s, out := newTestScheduler()
	out.SetPlayError(errors.New("device gone"))

	_, err := s.Schedule(pcm(time.Second))
	require.Error(t, err)
	assert.False(t, IsDecodeError(err))
	assert.Equal(t, 0, s.Active())
	assert.Equal(t, time.Duration(0), s.NextStart())
}

func TestScheduler_Close(t *testing.T) {
	s, out := newTestScheduler()
	_, err := s.Schedule(pcm(time.Second))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.True(t, out.Closed())
	assert.Equal(t, 0, s.Active())

	_, err = s.Schedule(pcm(time.Second))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestScheduler_Handles(t *testing.T) {
	s, _ := newTestScheduler()
	for i := 0; i < 4; i++ {
		_, err := s.Schedule(pcm(250 * time.Millisecond))
		require.NoError(t, err)
	}

	hs := s.Handles()
	require.Len(t, hs, 4)
	for i := 1; i < len(hs); i++ {
		assert.Equal(t, hs[i-1].End(), hs[i].Start)
	}
}

func TestScheduler_ConcurrentScheduleAndStop(t *testing.T) {
	s, out := newTestScheduler()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = s.Schedule(pcm(20 * time.Millisecond))
			}
		}()
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		for j := 0; j < 20; j++ {
			s.StopAll()
		}
	}()
	go func() {
		defer wg.Done()
		for j := 0; j < 20; j++ {
			out.Advance(10 * time.Millisecond)
		}
	}()
	wg.Wait()

	s.StopAll()
	assert.Equal(t, 0, s.Active())
	assert.Equal(t, out.Now(), s.NextStart())
}

func TestScheduler_MonotonicStarts(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s, out := newTestScheduler()

		var prev *Handle
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 5).Draw(t, "op") {
			case 0:
				out.Advance(time.Duration(rapid.IntRange(0, 500).Draw(t, "advance_ms")) * time.Millisecond)
			case 1:
				s.StopAll()
				prev = nil
				if s.Active() != 0 || s.NextStart() != out.Now() {
					t.Fatalf("StopAll left active=%d next=%v now=%v", s.Active(), s.NextStart(), out.Now())
				}
			default:
				samples := rapid.IntRange(1, 24000).Draw(t, "samples")
				now := out.Now()
				h, err := s.Schedule(make([]byte, samples*2))
				if err != nil {
					t.Fatalf("schedule: %v", err)
				}
				if h.Start < now {
					t.Fatalf("start %v before now %v", h.Start, now)
				}
				if prev != nil && h.Start < prev.End() {
					t.Fatalf("start %v overlaps previous end %v", h.Start, prev.End())
				}
				prev = &h
			}
		}
	})
}
