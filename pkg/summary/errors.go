package summary

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("summary: API key required")

	// ErrEmptyTranscript is returned when there is nothing to summarize.
	ErrEmptyTranscript = errors.New("summary: empty transcript")

	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("summary: empty response")
)

// ParseError reports a model response that is not a valid summary.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("summary: invalid response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
