// Package persona defines the conversational roles the assistant can play
// and renders their system instructions from CRM client context.
package persona

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/teslashibe/go-callassist/pkg/transcript"
)

// Kind is a conversational role.
type Kind string

const (
	// KindFollowUpCall is the AI call-assistant: the model helps an agent on
	// a follow-up call with an existing client.
	KindFollowUpCall Kind = "followup"

	// KindSimulatedClient is AI onboarding: the model plays a prospective
	// client so a new agent can practice a discovery call.
	KindSimulatedClient Kind = "onboarding"
)

// ParseKind parses a kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindFollowUpCall, "follow-up", "call":
		return KindFollowUpCall, nil
	case KindSimulatedClient, "simulated", "client":
		return KindSimulatedClient, nil
	default:
		return "", fmt.Errorf("persona: unknown kind %q", s)
	}
}

// ClientContext is what the CRM knows about the client.
type ClientContext struct {
	Name       string   `yaml:"name" json:"name"`
	Occupation string   `yaml:"occupation" json:"occupation"`
	Policies   []string `yaml:"policies" json:"policies"`
	Notes      string   `yaml:"notes" json:"notes"`
}

// Persona is a fully rendered role.
type Persona struct {
	Kind              Kind
	Name              string
	Voice             string
	SystemInstruction string
	Labels            transcript.Labels
	// WantRecommendations asks the summarizer for product recommendations.
	WantRecommendations bool
}

var funcs = template.FuncMap{"join": strings.Join}

var followUpTmpl = template.Must(template.New("followup").Funcs(funcs).Parse(
	`You are a helpful assistant on a follow-up phone call between an insurance agent and their client` +
		`{{with .Name}} {{.}}{{end}}. Keep answers short and conversational.` +
		`{{with .Occupation}} The client works as {{.}}.{{end}}` +
		`{{if .Policies}} Current policies: {{join .Policies ", "}}.{{end}}` +
		`{{with .Notes}} Agent notes: {{.}}{{end}}`))

var simulatedTmpl = template.Must(template.New("onboarding").Funcs(funcs).Parse(
	`You are role-playing a prospective insurance client{{with .Name}} named {{.}}{{end}} on a first call ` +
		`with a new agent. Answer as the client would, reveal your needs gradually and only when asked ` +
		`good discovery questions. Never break character.` +
		`{{with .Occupation}} You work as {{.}}.{{end}}` +
		`{{if .Policies}} You already hold: {{join .Policies ", "}}.{{end}}` +
		`{{with .Notes}} Background: {{.}}{{end}}`))

// FollowUpCall returns the call-assistant persona for c.
func FollowUpCall(c ClientContext) (Persona, error) {
	instr, err := render(followUpTmpl, c)
	if err != nil {
		return Persona{}, err
	}
	return Persona{
		Kind:              KindFollowUpCall,
		Name:              "Call assistant",
		Voice:             "Puck",
		SystemInstruction: instr,
		Labels: transcript.Labels{
			transcript.SpeakerLocal:  "Agent",
			transcript.SpeakerRemote: "Assistant",
		},
	}, nil
}

// SimulatedClient returns the onboarding persona for c.
func SimulatedClient(c ClientContext) (Persona, error) {
	instr, err := render(simulatedTmpl, c)
	if err != nil {
		return Persona{}, err
	}
	name := c.Name
	if name == "" {
		name = "Client"
	}
	return Persona{
		Kind:              KindSimulatedClient,
		Name:              "Simulated client",
		Voice:             "Kore",
		SystemInstruction: instr,
		Labels: transcript.Labels{
			transcript.SpeakerLocal:  "Agent",
			transcript.SpeakerRemote: name,
		},
		WantRecommendations: true,
	}, nil
}

// ForKind builds the persona of kind k.
func ForKind(k Kind, c ClientContext) (Persona, error) {
	switch k {
	case KindFollowUpCall:
		return FollowUpCall(c)
	case KindSimulatedClient:
		return SimulatedClient(c)
	default:
		return Persona{}, fmt.Errorf("persona: unknown kind %q", k)
	}
}

func render(t *template.Template, c ClientContext) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, c); err != nil {
		return "", fmt.Errorf("persona: render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
