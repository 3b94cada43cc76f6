package playback

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when scheduling on a closed scheduler.
	ErrClosed = errors.New("playback: scheduler closed")

	// ErrEmptyAudio indicates an audio chunk with no samples.
	ErrEmptyAudio = errors.New("playback: empty audio chunk")

	// ErrQueueFull is returned when the output cannot accept more audio.
	ErrQueueFull = errors.New("playback: output queue full")
)

// DecodeError reports an inbound audio chunk that could not be turned into
// a playable buffer. The chunk is skipped; playback continues.
type DecodeError struct {
	// Bytes is the length of the rejected payload.
	Bytes int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("playback: decode %d bytes: %v", e.Bytes, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
