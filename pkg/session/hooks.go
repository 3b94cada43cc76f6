package session

import (
	"sync"
	"time"

	"github.com/teslashibe/go-callassist/pkg/transcript"
)

// NoticeKind classifies a user-visible notice.
type NoticeKind string

const (
	// NoticeFailure reports a fatal error that ended the session.
	NoticeFailure NoticeKind = "failure"
	// NoticeDecodeSkipped reports an inbound chunk that could not be played.
	NoticeDecodeSkipped NoticeKind = "decode_skipped"
	// NoticeInterruptAck acknowledges a manual interruption.
	NoticeInterruptAck NoticeKind = "interrupt_ack"
	// NoticeSummaryFailed reports that no summary could be produced.
	NoticeSummaryFailed NoticeKind = "summary_failed"
	// NoticeMuted reports a change of the mute flag.
	NoticeMuted NoticeKind = "muted"
)

// Notice is a message meant for the user.
type Notice struct {
	SessionID string     `json:"sessionId"`
	Kind      NoticeKind `json:"kind"`
	Message   string     `json:"message"`
	Err       error      `json:"-"`
}

// Hooks are callbacks for observers of the engine. Every field is
// optional. Hooks run on a single notifier goroutine in the order the
// engine produced them; they must not block for long.
type Hooks struct {
	OnStateChange func(sessionID string, from, to State)
	OnUtterance   func(sessionID string, u transcript.Utterance)
	OnNotice      func(n Notice)
	OnTick        func(sessionID string, elapsed time.Duration)
	// OnComplete receives every final outcome, failed sessions included.
	OnComplete func(o *Outcome)
}

// notifier delivers hook calls in order on its own goroutine.
type notifier struct {
	mu     sync.RWMutex
	closed bool
	queue  chan func()
	done   chan struct{}
}

func newNotifier(size int) *notifier {
	n := &notifier{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *notifier) run() {
	defer close(n.done)
	for fn := range n.queue {
		fn()
	}
}

// post queues fn. Calls posted after close are dropped.
func (n *notifier) post(fn func()) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	n.queue <- fn
}

// close drains pending calls and stops the goroutine.
func (n *notifier) close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	<-n.done
}
