// Package summary turns a finished call transcript into a structured
// summary for the CRM record.
package summary

import (
	"context"
	"strings"
)

// Summary is the structured result of summarizing a conversation.
type Summary struct {
	ProfileSummary         string   `json:"profileSummary"`
	IdentifiedNeeds        []string `json:"identifiedNeeds"`
	NextSteps              []string `json:"nextSteps"`
	ProductRecommendations []string `json:"productRecommendations,omitempty"`
}

// Request describes a summarization job.
type Request struct {
	// Transcript is the concatenated "Label: text" transcript.
	Transcript string

	// Instructions replaces the default prompt preamble when set.
	Instructions string

	// WantRecommendations asks for product recommendations as well.
	WantRecommendations bool
}

// Summarizer produces summaries.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (*Summary, error)
}

// Validate checks that there is something to summarize.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Transcript) == "" {
		return ErrEmptyTranscript
	}
	return nil
}
