package summary

import (
	"encoding/json"
	"errors"
	"strings"
)

const defaultInstructions = `You are an assistant for an insurance agency CRM. Summarize the call ` +
	`transcript below. Describe the client in a short paragraph, list their ` +
	`identified needs, and list concrete next steps for the agent.`

const recommendationInstructions = ` Also list insurance products that would fit the client.`

// BuildPrompt renders the prompt for req.
func BuildPrompt(req Request) string {
	var b strings.Builder
	if req.Instructions != "" {
		b.WriteString(req.Instructions)
	} else {
		b.WriteString(defaultInstructions)
	}
	if req.WantRecommendations {
		b.WriteString(recommendationInstructions)
	}
	b.WriteString("\nRespond with JSON only.\n\nTranscript:\n")
	b.WriteString(req.Transcript)
	return b.String()
}

// Parse decodes a model response into a Summary. Markdown code fences
// around the JSON are tolerated.
func Parse(raw string) (*Summary, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ErrEmptyResponse
	}
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	var s Summary
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	if strings.TrimSpace(s.ProfileSummary) == "" {
		return nil, &ParseError{Raw: raw, Err: errors.New("missing profileSummary")}
	}
	return &s, nil
}
