package live

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the live package.
var (
	// ErrMissingAPIKey indicates the API key was not provided.
	ErrMissingAPIKey = errors.New("live: API key is required")

	// ErrMissingModel indicates the model was not provided.
	ErrMissingModel = errors.New("live: model is required")

	// ErrClosed indicates the session has been closed.
	ErrClosed = errors.New("live: session closed")

	// ErrSendQueueFull indicates the outbound queue is full and the chunk
	// was dropped.
	ErrSendQueueFull = errors.New("live: send queue full")

	// ErrUnsupportedModality indicates a response modality other than audio.
	ErrUnsupportedModality = errors.New("live: unsupported response modality")
)

// APIError represents an error reported by the remote service.
type APIError struct {
	// StatusCode is the HTTP status code of a failed handshake, if any.
	StatusCode int

	// Code is the websocket close code, if any.
	Code int

	// Message is the human-readable error message.
	Message string

	// Retryable indicates if the request can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("live: API error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	if e.Code != 0 {
		return fmt.Sprintf("live: API error (close %d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("live: API error: %s", e.Message)
}

// IsRetryable returns true if the error can be retried.
func (e *APIError) IsRetryable() bool {
	return e.Retryable
}

// NewAPIError creates an APIError from a failed handshake.
func NewAPIError(statusCode int, message string) *APIError {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &APIError{
		StatusCode: statusCode,
		Message:    message,
		Retryable:  statusCode == http.StatusTooManyRequests || statusCode >= 500,
	}
}

// ConnectionError represents a failure of the duplex channel.
type ConnectionError struct {
	// Reason describes what failed.
	Reason string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates if reconnecting may succeed.
	Retryable bool
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("live: connection error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("live: connection error: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if reconnection should be attempted.
func (e *ConnectionError) IsRetryable() bool {
	return e.Retryable
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(reason string, cause error, retryable bool) *ConnectionError {
	return &ConnectionError{
		Reason:    reason,
		Cause:     cause,
		Retryable: retryable,
	}
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.IsRetryable()
	}
	return false
}

// IsClosed returns true if the error indicates the session is gone.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
