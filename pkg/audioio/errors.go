package audioio

import "errors"

var (
	// ErrCaptureDenied indicates the microphone could not be acquired.
	ErrCaptureDenied = errors.New("audioio: capture denied")

	// ErrCaptureRevoked indicates the device stopped delivering audio while
	// capture was running.
	ErrCaptureRevoked = errors.New("audioio: capture revoked")

	// ErrOddLength indicates PCM16 input with a dangling byte.
	ErrOddLength = errors.New("audioio: pcm16 data has odd length")

	// ErrClosed indicates the device or encoder has been closed.
	ErrClosed = errors.New("audioio: closed")

	// ErrBackendUnavailable indicates the backend was not compiled in.
	ErrBackendUnavailable = errors.New("audioio: backend unavailable")

	// ErrAlreadyStarted indicates Start was called on a running encoder.
	ErrAlreadyStarted = errors.New("audioio: encoder already started")
)
