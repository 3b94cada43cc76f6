package playback

import (
	"log/slog"
	"sync/atomic"
)

// Stopper silences all scheduled playback.
type Stopper interface {
	StopAll() int
}

// Trigger says what caused an interruption.
type Trigger string

const (
	// TriggerSignal is a barge-in reported by the remote session.
	TriggerSignal Trigger = "signal"
	// TriggerManual is a user-initiated interruption.
	TriggerManual Trigger = "manual"
)

// Interrupter turns interruption signals into immediate silence.
type Interrupter struct {
	stopper Stopper
	logger  *slog.Logger
	onAck   func(stopped int)
	onStop  func(trigger Trigger, stopped int)

	signals atomic.Int64
	manual  atomic.Int64
}

// InterrupterOption configures an Interrupter.
type InterrupterOption func(*Interrupter)

// WithAck sets the callback fired after a manual interruption, used to
// acknowledge the action to the user.
func WithAck(fn func(stopped int)) InterrupterOption {
	return func(i *Interrupter) {
		i.onAck = fn
	}
}

// WithObserver sets a callback fired after every interruption.
func WithObserver(fn func(trigger Trigger, stopped int)) InterrupterOption {
	return func(i *Interrupter) {
		i.onStop = fn
	}
}

// NewInterrupter creates an interrupter over s.
func NewInterrupter(s Stopper, logger *slog.Logger, opts ...InterrupterOption) *Interrupter {
	if logger == nil {
		logger = slog.Default()
	}
	i := &Interrupter{
		stopper: s,
		logger:  logger.With("component", "interrupter"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// OnInterruptSignal handles a barge-in reported by the remote session.
func (i *Interrupter) OnInterruptSignal() int {
	n := i.stopper.StopAll()
	i.signals.Add(1)
	i.logger.Info("remote interruption", "stopped", n)
	if i.onStop != nil {
		i.onStop(TriggerSignal, n)
	}
	return n
}

// OnManualInterrupt handles a user-initiated interruption and acknowledges it.
func (i *Interrupter) OnManualInterrupt() int {
	n := i.stopper.StopAll()
	i.manual.Add(1)
	i.logger.Info("manual interruption", "stopped", n)
	if i.onStop != nil {
		i.onStop(TriggerManual, n)
	}
	if i.onAck != nil {
		i.onAck(n)
	}
	return n
}

// Counts returns how many interruptions of each kind were handled.
func (i *Interrupter) Counts() (signals, manual int64) {
	return i.signals.Load(), i.manual.Load()
}
