package playback

import (
	"time"
)

// Buffer is a decoded block of audio.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 || b.Channels <= 0 {
		return 0
	}
	frames := len(b.Samples) / b.Channels
	return time.Duration(frames) * time.Second / time.Duration(b.SampleRate)
}

// Output is a playback device with its own monotonic clock.
type Output interface {
	// Now returns the current position of the output clock.
	Now() time.Duration

	// Play schedules buf to start at the given clock position and returns
	// immediately.
	Play(buf Buffer, at time.Duration) (Voice, error)

	// Close releases the device.
	Close() error
}

// Voice is one buffer playing (or waiting to play) on an Output.
type Voice interface {
	// Done is closed when the buffer finishes naturally or is stopped.
	Done() <-chan struct{}

	// Stop silences the buffer. It is idempotent.
	Stop()
}

// Handle describes a scheduled buffer.
type Handle struct {
	ID       uint64        `json:"id"`
	Start    time.Duration `json:"start"`
	Duration time.Duration `json:"duration"`
}

// End returns the clock position where the buffer finishes.
func (h Handle) End() time.Duration {
	return h.Start + h.Duration
}
