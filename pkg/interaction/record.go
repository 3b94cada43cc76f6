// Package interaction persists finished calls so agents can review them
// later.
package interaction

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-callassist/pkg/session"
	"github.com/teslashibe/go-callassist/pkg/summary"
)

// Record is one stored interaction.
type Record struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	SessionID       string    `gorm:"index;size:36" json:"sessionId"`
	ClientName      string    `gorm:"index" json:"clientName"`
	Kind            string    `gorm:"size:32" json:"kind"`
	Transcript      string    `gorm:"type:text" json:"transcript"`
	SummaryJSON     string    `gorm:"type:text" json:"summary,omitempty"`
	StartedAt       time.Time `gorm:"index" json:"startedAt"`
	DurationSeconds float64   `json:"durationSeconds"`
	EndedBy         string    `gorm:"size:16" json:"endedBy"`
	Failed          bool      `json:"failed"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// TableName implements gorm's tabler.
func (Record) TableName() string {
	return "interactions"
}

// Summary decodes the stored summary, or returns nil when there is none.
func (r *Record) Summary() (*summary.Summary, error) {
	if r.SummaryJSON == "" {
		return nil, nil
	}
	var s summary.Summary
	if err := json.Unmarshal([]byte(r.SummaryJSON), &s); err != nil {
		return nil, fmt.Errorf("interaction: decode summary: %w", err)
	}
	return &s, nil
}

// FromOutcome builds a record for o.
func FromOutcome(o *session.Outcome, clientName string) (*Record, error) {
	r := &Record{
		ID:              uuid.NewString(),
		SessionID:       o.SessionID,
		ClientName:      clientName,
		Kind:            string(o.Persona),
		Transcript:      o.TranscriptText,
		StartedAt:       o.StartedAt,
		DurationSeconds: o.Duration.Seconds(),
		EndedBy:         string(o.EndedBy),
		Failed:          o.Failed(),
		Error:           o.Error,
	}
	if o.Summary != nil {
		data, err := json.Marshal(o.Summary)
		if err != nil {
			return nil, fmt.Errorf("interaction: encode summary: %w", err)
		}
		r.SummaryJSON = string(data)
	}
	return r, nil
}
