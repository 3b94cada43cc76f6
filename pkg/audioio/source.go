package audioio

import (
	"context"
	"io"
	"time"
)

// Frame is one buffer of captured audio as delivered by a device.
type Frame struct {
	// Samples are interleaved normalized samples in [-1, 1].
	Samples []float32

	// SampleRate is the sample rate of this frame.
	SampleRate int

	// Channels is the number of interleaved channels.
	Channels int

	// Captured is when the device handed the buffer over.
	Captured time.Time
}

// Duration returns the playback length of the frame.
func (f *Frame) Duration() time.Duration {
	if f.SampleRate == 0 || f.Channels == 0 {
		return 0
	}
	n := len(f.Samples) / f.Channels
	return time.Duration(n) * time.Second / time.Duration(f.SampleRate)
}

// AudioChunk is a fixed-size block of PCM16 little-endian audio ready to send.
type AudioChunk struct {
	// Data is the raw PCM16 payload.
	Data []byte

	// SampleRate is the sample rate of Data.
	SampleRate int

	// Channels is the number of interleaved channels in Data.
	Channels int

	// Seq is the capture-order index, starting at 0.
	Seq uint64
}

// Samples returns the number of sample frames in the chunk.
func (c AudioChunk) Samples() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.Data) / 2 / c.Channels
}

// Source captures audio from a microphone or other input device.
type Source interface {
	// Start begins capture. A failure here means the device could not be
	// acquired (permission denied, no device).
	Start(ctx context.Context) error

	// Stop halts capture and closes the Stream channel.
	// It is safe to call Stop multiple times.
	Stop() error

	// Stream returns a channel that receives captured frames.
	// The channel is closed when the source stops, including when the
	// device disappears underneath it.
	Stream() <-chan Frame

	// Config returns the device configuration.
	Config() Config

	// Name returns the backend name (e.g., "portaudio", "mock").
	Name() string

	// Close releases the device. After Close, the source cannot be restarted.
	io.Closer
}

// SourceStats contains statistics about an audio source.
type SourceStats struct {
	FramesRead  int64  `json:"frames_read"`
	SamplesRead int64  `json:"samples_read"`
	Overruns    int64  `json:"overruns"`
	Running     bool   `json:"running"`
	Backend     string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}
