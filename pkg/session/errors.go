package session

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-callassist/pkg/playback"
)

var (
	// ErrSessionActive is returned by Start while a session is in progress.
	ErrSessionActive = errors.New("session: a session is already active")

	// ErrNoSession is returned when an operation needs a running session.
	ErrNoSession = errors.New("session: no active session")

	// ErrEngineClosed is returned after Close.
	ErrEngineClosed = errors.New("session: engine closed")
)

// CaptureDeniedError means the microphone could not be acquired or was
// taken away. The session cannot continue.
type CaptureDeniedError struct {
	Cause error
}

func (e *CaptureDeniedError) Error() string {
	return fmt.Sprintf("session: microphone unavailable: %v", e.Cause)
}

func (e *CaptureDeniedError) Unwrap() error { return e.Cause }

// ConnectionError means the live session could not be opened or failed.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("session: connection failed: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// DecodeError is an inbound audio chunk that could not be played. It is
// skipped and the session continues.
type DecodeError = playback.DecodeError

// SummarizationError means the transcript could not be summarized. The
// session still completes without a summary.
type SummarizationError struct {
	Cause error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("session: summarization failed: %v", e.Cause)
}

func (e *SummarizationError) Unwrap() error { return e.Cause }

// IsFatal reports whether err ends the session.
func IsFatal(err error) bool {
	var capErr *CaptureDeniedError
	var connErr *ConnectionError
	return errors.As(err, &capErr) || errors.As(err, &connErr)
}
