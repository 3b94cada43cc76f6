package live

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// stream holds the queueing and ordering rules shared by every Session
// implementation: a bounded inbound event channel that enforces Opened
// first and Closed last, and a bounded outbound chunk queue drained by a
// single writer.
type stream struct {
	logger *slog.Logger

	events chan Event
	out    chan MediaChunk

	// abort is closed by a local Close so blocked emitters give up.
	abort     chan struct{}
	abortOnce sync.Once

	// done is closed once the stream has terminated for any reason.
	done chan struct{}

	mu       sync.Mutex
	opened   bool
	closed   bool
	inflight sync.WaitGroup

	chunksSent    atomic.Int64
	chunksDropped atomic.Int64
	eventsDropped atomic.Int64
}

func newStream(eventQueue, sendQueue int, logger *slog.Logger) *stream {
	return &stream{
		logger: logger,
		events: make(chan Event, eventQueue),
		out:    make(chan MediaChunk, sendQueue),
		abort:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Events implements Session.
func (s *stream) Events() <-chan Event {
	return s.events
}

// Send implements Session.
func (s *stream) Send(chunk MediaChunk) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.out <- chunk:
		return nil
	default:
		s.chunksDropped.Add(1)
		return ErrSendQueueFull
	}
}

// emit delivers a non-terminal event, blocking while the event channel is
// full. Opened is delivered once; data events before Opened are dropped.
func (s *stream) emit(ev Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	switch ev.(type) {
	case Opened:
		if s.opened {
			s.mu.Unlock()
			return false
		}
		s.opened = true
	case Error:
	case Closed:
		s.mu.Unlock()
		s.terminate(ev.(Closed).Reason)
		return true
	default:
		if !s.opened {
			s.mu.Unlock()
			s.eventsDropped.Add(1)
			s.logger.Warn("dropping event received before open", "event", ev.Kind())
			return false
		}
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	select {
	case s.events <- ev:
		return true
	case <-s.abort:
		s.eventsDropped.Add(1)
		return false
	}
}

// fail emits an Error and then the terminal Closed.
func (s *stream) fail(err error, reason string) {
	s.emit(Error{Err: err})
	s.terminate(reason)
}

// terminate delivers Closed once and closes the event channel. After a
// local Close the Closed event is delivered only if the channel has room.
func (s *stream) terminate(reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.inflight.Wait()

	ev := Closed{Reason: reason}
	select {
	case s.events <- ev:
	default:
		select {
		case s.events <- ev:
		case <-s.abort:
			s.eventsDropped.Add(1)
		}
	}
	close(s.events)
}

// shutdown aborts blocked emitters and terminates locally.
func (s *stream) shutdown(reason string) {
	s.abortOnce.Do(func() { close(s.abort) })
	s.terminate(reason)
}

// isOpened reports whether Opened has been emitted.
func (s *stream) isOpened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// Done is closed once the stream has terminated.
func (s *stream) Done() <-chan struct{} {
	return s.done
}

// Stats returns per-session counters.
func (s *stream) Stats() Stats {
	return Stats{
		ChunksSent:    s.chunksSent.Load(),
		ChunksDropped: s.chunksDropped.Load(),
		EventsDropped: s.eventsDropped.Load(),
	}
}
