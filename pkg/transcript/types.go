package transcript

import "time"

// Speaker identifies who said something.
type Speaker int

const (
	// SpeakerLocal is the person at the microphone.
	SpeakerLocal Speaker = iota
	// SpeakerRemote is the AI counterpart.
	SpeakerRemote
)

// String returns a stable identifier for the speaker.
func (s Speaker) String() string {
	switch s {
	case SpeakerLocal:
		return "local"
	case SpeakerRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Valid reports whether s is a known speaker.
func (s Speaker) Valid() bool {
	return s == SpeakerLocal || s == SpeakerRemote
}

// MarshalText implements encoding.TextMarshaler.
func (s Speaker) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Fragment is an incremental piece of transcription.
type Fragment struct {
	Speaker Speaker
	Text    string
	// Final marks a fragment the provider will not revise. Fragments are
	// appended regardless; the flag is informational.
	Final bool
	// TurnID is the provider's turn identifier, if any.
	TurnID string
}

// Utterance is one speaker's complete contribution to a turn.
type Utterance struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	Turn    int       `json:"turn"`
	At      time.Time `json:"at"`
}

// Labels maps speakers to display names.
type Labels map[Speaker]string

// DefaultLabels returns the labels used for a follow-up call.
func DefaultLabels() Labels {
	return Labels{
		SpeakerLocal:  "Agent",
		SpeakerRemote: "Assistant",
	}
}

// Label returns the display name for s, falling back to s.String().
func (l Labels) Label(s Speaker) string {
	if name, ok := l[s]; ok && name != "" {
		return name
	}
	return s.String()
}
