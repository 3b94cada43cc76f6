package transcript

import (
	"strings"
	"sync"
)

// Log is the ordered, append-only transcript of a session.
type Log struct {
	mu         sync.RWMutex
	utterances []Utterance
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append adds utterances in order.
func (l *Log) Append(u ...Utterance) {
	if len(u) == 0 {
		return
	}
	l.mu.Lock()
	l.utterances = append(l.utterances, u...)
	l.mu.Unlock()
}

// Utterances returns a copy of the log.
func (l *Log) Utterances() []Utterance {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Utterance, len(l.utterances))
	copy(out, l.utterances)
	return out
}

// Len returns the number of utterances.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.utterances)
}

// Text renders the log as "Label: text" lines.
func (l *Log) Text(labels Labels) string {
	return Format(l.Utterances(), labels)
}

// Format renders utterances as "Label: text" lines.
func Format(utterances []Utterance, labels Labels) string {
	var b strings.Builder
	for i, u := range utterances {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(labels.Label(u.Speaker))
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(u.Text))
	}
	return b.String()
}
