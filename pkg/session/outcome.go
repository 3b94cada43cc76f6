package session

import (
	"time"

	"github.com/teslashibe/go-callassist/pkg/persona"
	"github.com/teslashibe/go-callassist/pkg/summary"
	"github.com/teslashibe/go-callassist/pkg/transcript"
)

// EndReason says how a session ended.
type EndReason string

const (
	EndedByUser   EndReason = "user"
	EndedByRemote EndReason = "remote"
	EndedByError  EndReason = "error"
)

// Outcome is the final record of a session.
type Outcome struct {
	SessionID      string                 `json:"sessionId"`
	Persona        persona.Kind           `json:"persona"`
	StartedAt      time.Time              `json:"startedAt"`
	EndedAt        time.Time              `json:"endedAt"`
	Duration       time.Duration          `json:"duration"`
	Transcript     []transcript.Utterance `json:"transcript"`
	TranscriptText string                 `json:"transcriptText"`
	Summary        *summary.Summary       `json:"summary,omitempty"`
	EndedBy        EndReason              `json:"endedBy"`

	// SummaryErr is a *SummarizationError when summarizing failed.
	SummaryErr error `json:"-"`
	// Err is the fatal error for sessions that ended in failure.
	Err error `json:"-"`

	SummaryError string `json:"summaryError,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Failed reports whether the session ended in an error.
func (o *Outcome) Failed() bool {
	return o.Err != nil
}

// Summarized reports whether a summary was produced.
func (o *Outcome) Summarized() bool {
	return o.Summary != nil
}

func (o *Outcome) setErrors(err, summaryErr error) {
	o.Err, o.SummaryErr = err, summaryErr
	if err != nil {
		o.Error = err.Error()
	}
	if summaryErr != nil {
		o.SummaryError = summaryErr.Error()
	}
}
