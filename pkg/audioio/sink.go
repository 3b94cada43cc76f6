package audioio

import (
	"context"
	"io"
)

// Sink plays audio to a speaker or other output device.
type Sink interface {
	// Start opens the output device.
	Start(ctx context.Context) error

	// Stop halts playback. It is safe to call Stop multiple times.
	Stop() error

	// Write queues a frame for playback. It may block while the device
	// buffer is full.
	Write(ctx context.Context, frame Frame) error

	// Clear discards queued audio immediately (barge-in).
	Clear() error

	// Config returns the device configuration.
	Config() Config

	// Name returns the backend name.
	Name() string

	// Close releases the device.
	io.Closer
}

// SinkStats contains statistics about an audio sink.
type SinkStats struct {
	FramesWritten   int64  `json:"frames_written"`
	SamplesWritten  int64  `json:"samples_written"`
	Clears          int64  `json:"clears"`
	Running         bool   `json:"running"`
	Backend         string `json:"backend"`
	BufferedSamples int64  `json:"buffered_samples"`
}

// SinkWithStats extends Sink with statistics.
type SinkWithStats interface {
	Sink
	Stats() SinkStats
}
