package transcript

import (
	"strings"
	"sync"
	"time"
)

// Aggregator accumulates fragments per speaker until the turn completes.
// It is safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	buffers map[Speaker]*strings.Builder
	order   []Speaker
	turn    int
	now     func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock sets the clock used to timestamp utterances.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// NewAggregator creates an empty aggregator.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		buffers: make(map[Speaker]*strings.Builder),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OnFragment appends the fragment text to its speaker's pending buffer.
// Nothing is emitted.
func (a *Aggregator) OnFragment(f Fragment) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buffers[f.Speaker]
	if !ok {
		b = &strings.Builder{}
		a.buffers[f.Speaker] = b
		a.order = append(a.order, f.Speaker)
	}
	b.WriteString(f.Text)
}

// OnTurnComplete flushes every non-empty buffer as an utterance, ordered by
// when each speaker's first fragment of the turn arrived, and resets the
// buffers. The turn index advances even when nothing was said.
func (a *Aggregator) OnTurnComplete() []Utterance {
	a.mu.Lock()
	defer a.mu.Unlock()

	at := a.now()
	var out []Utterance
	for _, s := range a.order {
		text := a.buffers[s].String()
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, Utterance{
			Speaker: s,
			Text:    text,
			Turn:    a.turn,
			At:      at,
		})
	}

	a.turn++
	a.buffers = make(map[Speaker]*strings.Builder)
	a.order = a.order[:0]
	return out
}

// Pending returns the text accumulated for s in the current turn.
func (a *Aggregator) Pending(s Speaker) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if b, ok := a.buffers[s]; ok {
		return b.String()
	}
	return ""
}

// HasPending reports whether any speaker has non-blank text waiting.
func (a *Aggregator) HasPending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, b := range a.buffers {
		if strings.TrimSpace(b.String()) != "" {
			return true
		}
	}
	return false
}

// Turn returns the index the next completed turn will carry.
func (a *Aggregator) Turn() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.turn
}

// Reset discards pending text and restarts turn numbering.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.buffers = make(map[Speaker]*strings.Builder)
	a.order = a.order[:0]
	a.turn = 0
}
