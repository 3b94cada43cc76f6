package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-callassist/pkg/audioio"
	"github.com/teslashibe/go-callassist/pkg/live"
	"github.com/teslashibe/go-callassist/pkg/persona"
	"github.com/teslashibe/go-callassist/pkg/playback"
	"github.com/teslashibe/go-callassist/pkg/transcript"
)

// Session is one conversation and everything it holds. Its resources are
// attached as they are acquired and released together by release.
type Session struct {
	ID        string
	Persona   persona.Persona
	StartedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	agg    *transcript.Aggregator
	log    *transcript.Log
	labels transcript.Labels

	mu          sync.Mutex
	live        live.Session
	encoder     *audioio.Encoder
	chunks      <-chan audioio.AudioChunk
	scheduler   *playback.Scheduler
	interrupter *playback.Interrupter
	released    bool

	// setup is closed once the connect phase has stopped acquiring
	// resources.
	setup chan struct{}

	active   atomic.Bool
	muted    atomic.Bool
	activeAt atomic.Int64

	releaseOnce sync.Once
	releaseErr  error

	// ending is guarded by the engine mutex.
	ending  bool
	done    chan struct{}
	outcome *Outcome
}

func newSession(id string, p persona.Persona, labels transcript.Labels, now func() time.Time) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:        id,
		Persona:   p,
		StartedAt: now(),
		ctx:       ctx,
		cancel:    cancel,
		agg:       transcript.NewAggregator(transcript.WithClock(now)),
		log:       transcript.NewLog(),
		labels:    labels,
		setup:     make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (s *Session) attachLive(ls live.Session) bool {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		_ = ls.Close()
		return false
	}
	s.live = ls
	s.mu.Unlock()
	return true
}

func (s *Session) attachCapture(enc *audioio.Encoder, chunks <-chan audioio.AudioChunk) bool {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		_ = enc.Stop()
		return false
	}
	s.encoder = enc
	s.chunks = chunks
	s.mu.Unlock()
	return true
}

func (s *Session) attachPlayback(sched *playback.Scheduler, intr *playback.Interrupter) bool {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		_ = sched.Close()
		return false
	}
	s.scheduler = sched
	s.interrupter = intr
	s.mu.Unlock()
	return true
}

func (s *Session) capture() (*audioio.Encoder, <-chan audioio.AudioChunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encoder, s.chunks
}

func (s *Session) liveSession() live.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

func (s *Session) player() (*playback.Scheduler, *playback.Interrupter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler, s.interrupter
}

// release stops capture, closes the live session, silences playback and
// stops timers. It waits for the connect phase so nothing acquired late
// survives it. Only the first call does any work.
func (s *Session) release() error {
	s.releaseOnce.Do(func() {
		s.active.Store(false)
		s.cancel()
		<-s.setup

		s.mu.Lock()
		s.released = true
		enc, ls, sched := s.encoder, s.live, s.scheduler
		s.mu.Unlock()

		var errs []error
		if enc != nil {
			errs = append(errs, enc.Stop())
		}
		if ls != nil {
			errs = append(errs, ls.Close())
		}
		if sched != nil {
			sched.StopAll()
			errs = append(errs, sched.Close())
		}
		s.releaseErr = errors.Join(errs...)
	})
	return s.releaseErr
}

// Elapsed returns the time spent in the active conversation.
func (s *Session) Elapsed(now time.Time) time.Duration {
	at := s.activeAt.Load()
	if at == 0 {
		return 0
	}
	return now.Sub(time.Unix(0, at))
}

// Utterances returns the transcript so far.
func (s *Session) Utterances() []transcript.Utterance {
	return s.log.Utterances()
}

// Muted reports whether outbound audio is paused.
func (s *Session) Muted() bool {
	return s.muted.Load()
}

// finish records the outcome and wakes anyone waiting on it.
func (s *Session) finish(o *Outcome) {
	s.outcome = o
	close(s.done)
}
