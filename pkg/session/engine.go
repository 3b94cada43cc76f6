// Package session runs one voice conversation at a time: it dials the live
// session, wires the microphone and speaker to it, keeps the transcript and
// produces an Outcome when the call ends.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-callassist/pkg/audioio"
	"github.com/teslashibe/go-callassist/pkg/live"
	"github.com/teslashibe/go-callassist/pkg/persona"
	"github.com/teslashibe/go-callassist/pkg/playback"
	"github.com/teslashibe/go-callassist/pkg/summary"
	"github.com/teslashibe/go-callassist/pkg/transcript"
)

// errAborted marks a connect phase cut short by the session ending.
var errAborted = errors.New("session: aborted")

// Engine is the session state machine.
type Engine struct {
	cfg     Config
	deps    Dependencies
	hooks   Hooks
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
	notify  *notifier

	mu      sync.Mutex
	state   State
	current *Session
	last    *Outcome
	closed  bool

	closeOnce sync.Once
}

// Snapshot is a point-in-time view of the engine.
type Snapshot struct {
	SessionID     string        `json:"sessionId,omitempty"`
	State         State         `json:"state"`
	Persona       persona.Kind  `json:"persona,omitempty"`
	Elapsed       time.Duration `json:"elapsed"`
	Utterances    int           `json:"utterances"`
	ActiveBuffers int           `json:"activeBuffers"`
	Muted         bool          `json:"muted"`
}

// New creates an engine in the Idle state.
func New(cfg Config, deps Dependencies, hooks Hooks, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session: invalid config: %w", err)
	}
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("session: invalid dependencies: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:    cfg,
		deps:   deps,
		hooks:  hooks,
		logger: logger.With("component", "session"),
		now:    time.Now,
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	e.notify = newNotifier(1024)
	return e, nil
}

// Start begins a session with the configured persona and returns its id.
func (e *Engine) Start(ctx context.Context) (string, error) {
	return e.StartWith(ctx, e.cfg.Persona)
}

// StartWith begins a session playing p. It fails with ErrSessionActive
// unless the engine is Idle or Complete. Connecting continues in the
// background; progress is reported through the hooks.
func (e *Engine) StartWith(ctx context.Context, p persona.Persona) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return "", ErrEngineClosed
	}
	if e.state == StateComplete {
		e.setStateLocked(nil, StateIdle)
	}
	if e.state != StateIdle {
		return "", ErrSessionActive
	}

	s := newSession(uuid.NewString(), p, e.labelsFor(p), e.now)
	e.current = s
	e.setStateLocked(s, StateDialing)
	e.metrics.SessionsStarted.Inc()
	e.metrics.ActiveSessions.Inc()

	e.logger.InfoContext(ctx, "session starting", "session_id", s.ID, "persona", p.Kind)
	go e.connect(s)
	return s.ID, nil
}

func (e *Engine) labelsFor(p persona.Persona) transcript.Labels {
	switch {
	case e.cfg.Labels != nil:
		return e.cfg.Labels
	case p.Labels != nil:
		return p.Labels
	default:
		return transcript.DefaultLabels()
	}
}

func (e *Engine) liveConfig(p persona.Persona) live.Config {
	cfg := e.cfg.Live
	if p.SystemInstruction != "" {
		cfg.SystemInstruction = p.SystemInstruction
	}
	if p.Voice != "" {
		cfg.Voice = p.Voice
	}
	cfg.InputSampleRate = e.cfg.Encoder.SampleRate
	cfg.OutputSampleRate = e.cfg.Playback.SampleRate
	if cfg.Logger == nil {
		cfg.Logger = e.logger
	}
	return cfg
}

// connect runs a session from Dialing until its live session ends.
func (e *Engine) connect(s *Session) {
	err := e.setup(s)
	close(s.setup)

	switch {
	case errors.Is(err, errAborted):
		return
	case err != nil:
		e.fail(s, err)
		return
	}

	enc, chunks := s.capture()
	go e.pump(s, enc, chunks)
	e.loop(s, s.liveSession())
}

// setup waits out the dial delay, then acquires the microphone, the
// speaker and the live session concurrently.
func (e *Engine) setup(s *Session) error {
	if d := e.cfg.DialDelay; d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-s.ctx.Done():
			return errAborted
		case <-t.C:
		}
	}
	if !e.advance(s, StateDialing, StateConnecting, nil) {
		return errAborted
	}

	liveCfg := e.liveConfig(s.Persona)
	logger := e.logger.With("session_id", s.ID)

	g, gctx := errgroup.WithContext(s.ctx)

	g.Go(func() error {
		src, err := e.deps.Source()
		if err != nil {
			return &CaptureDeniedError{Cause: err}
		}
		enc := audioio.NewEncoder(e.cfg.Encoder, logger)
		chunks, err := enc.Start(s.ctx, src)
		if err != nil {
			return &CaptureDeniedError{Cause: err}
		}
		s.attachCapture(enc, chunks)
		return nil
	})

	g.Go(func() error {
		out, err := e.deps.Output()
		if err != nil {
			return fmt.Errorf("session: open audio output: %w", err)
		}
		sched := playback.NewScheduler(out, e.cfg.Playback, logger)
		intr := playback.NewInterrupter(sched, logger,
			playback.WithObserver(func(trigger playback.Trigger, stopped int) {
				e.metrics.Interruptions.WithLabelValues(string(trigger)).Inc()
			}),
			playback.WithAck(func(stopped int) {
				e.notice(Notice{
					SessionID: s.ID,
					Kind:      NoticeInterruptAck,
					Message:   fmt.Sprintf("interrupted, %d buffers silenced", stopped),
				})
			}),
		)
		s.attachPlayback(sched, intr)
		return nil
	})

	g.Go(func() error {
		ls, err := e.deps.Dialer.Open(gctx, liveCfg)
		if err != nil {
			return &ConnectionError{Cause: err}
		}
		s.attachLive(ls)
		return nil
	})

	if err := g.Wait(); err != nil {
		if s.ctx.Err() != nil {
			return errAborted
		}
		return err
	}
	if s.ctx.Err() != nil {
		return errAborted
	}
	return nil
}

// pump forwards captured chunks in capture order while the session is
// active and not muted.
func (e *Engine) pump(s *Session, enc *audioio.Encoder, chunks <-chan audioio.AudioChunk) {
	mime := e.cfg.Encoder.MIMEType()
	logger := e.logger.With("session_id", s.ID)

	for chunk := range chunks {
		if !s.active.Load() || s.muted.Load() {
			continue
		}
		ls := s.liveSession()
		if ls == nil {
			continue
		}
		err := ls.Send(live.MediaChunk{Data: chunk.Data, MIMEType: mime})
		switch {
		case err == nil:
			e.metrics.ChunksSent.Inc()
		case errors.Is(err, live.ErrSendQueueFull):
			e.metrics.ChunksDropped.Inc()
		case live.IsClosed(err):
			// The event loop sees the close.
		default:
			logger.Warn("failed to send audio chunk", "seq", chunk.Seq, "error", err)
		}
	}

	if err := enc.Err(); errors.Is(err, audioio.ErrCaptureRevoked) && s.ctx.Err() == nil {
		e.fail(s, &CaptureDeniedError{Cause: err})
	}
}

// loop is the single consumer of the live session's events.
func (e *Engine) loop(s *Session, ls live.Session) {
	events := ls.Events()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				e.remoteClosed(s, "event stream closed")
				return
			}
			if e.handle(s, ev) {
				return
			}
		}
	}
}

// handle applies one event. It reports true when the session is over.
func (e *Engine) handle(s *Session, ev live.Event) bool {
	switch ev := ev.(type) {
	case live.Opened:
		opened := func() {
			s.activeAt.Store(e.now().UnixNano())
			s.active.Store(true)
		}
		if e.advance(s, StateConnecting, StateActive, opened) {
			go e.tick(s)
		}
	case live.PartialTranscript:
		s.agg.OnFragment(ev.Fragment())
	case live.TurnComplete:
		e.appendUtterances(s, s.agg.OnTurnComplete())
	case live.AudioChunk:
		e.play(s, ev.Data)
	case live.Interrupted:
		if _, intr := s.player(); intr != nil {
			intr.OnInterruptSignal()
		}
	case live.Error:
		e.fail(s, &ConnectionError{Cause: ev.Err})
		return true
	case live.Closed:
		e.remoteClosed(s, ev.Reason)
		return true
	default:
		e.logger.Warn("unhandled live event", "session_id", s.ID, "kind", ev.Kind())
	}
	return false
}

func (e *Engine) play(s *Session, pcm []byte) {
	sched, _ := s.player()
	if sched == nil {
		return
	}
	h, err := sched.Schedule(pcm)
	switch {
	case err == nil:
		e.metrics.AudioScheduled.Inc()
		e.logger.Debug("audio scheduled", "session_id", s.ID, "start", h.Start, "duration", h.Duration)
	case playback.IsDecodeError(err):
		e.metrics.DecodeErrors.Inc()
		e.logger.Warn("skipping undecodable audio", "session_id", s.ID, "error", err)
		e.notice(Notice{SessionID: s.ID, Kind: NoticeDecodeSkipped, Message: "skipped an unplayable audio chunk", Err: err})
	case errors.Is(err, playback.ErrClosed):
	default:
		e.logger.Warn("playback failed", "session_id", s.ID, "error", err)
	}
}

func (e *Engine) tick(s *Session) {
	t := time.NewTicker(e.cfg.TickInterval)
	defer t.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			if fn := e.hooks.OnTick; fn != nil {
				id, elapsed := s.ID, s.Elapsed(e.now())
				e.notify.post(func() { fn(id, elapsed) })
			}
		}
	}
}

func (e *Engine) appendUtterances(s *Session, us []transcript.Utterance) {
	if len(us) == 0 {
		return
	}
	s.log.Append(us...)
	for _, u := range us {
		e.metrics.Utterances.WithLabelValues(u.Speaker.String()).Inc()
		if fn := e.hooks.OnUtterance; fn != nil {
			id, u := s.ID, u
			e.notify.post(func() { fn(id, u) })
		}
	}
}

func (e *Engine) notice(n Notice) {
	if fn := e.hooks.OnNotice; fn != nil {
		e.notify.post(func() { fn(n) })
	}
}

// setStateLocked moves the engine to the given state. e.mu must be held.
func (e *Engine) setStateLocked(s *Session, to State) bool {
	from := e.state
	if !CanTransition(from, to) {
		e.logger.Warn("illegal state transition", "from", from, "to", to)
		return false
	}
	e.state = to
	e.metrics.StateTransitions.WithLabelValues(from.String(), to.String()).Inc()

	var id string
	if s != nil {
		id = s.ID
	}
	e.logger.Info("state changed", "session_id", id, "from", from, "to", to)
	if fn := e.hooks.OnStateChange; fn != nil {
		e.notify.post(func() { fn(id, from, to) })
	}
	return true
}

// advance moves from → to if s is still the running session. enter, if
// set, runs under the lock just before the state changes.
func (e *Engine) advance(s *Session, from, to State, enter func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != s || s.ending || e.state != from {
		return false
	}
	if enter != nil {
		enter()
	}
	return e.setStateLocked(s, to)
}

// claim marks s as ending. Only the first caller wins.
func (e *Engine) claim(s *Session) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != s || s.ending {
		return false
	}
	s.ending = true
	return true
}

// flush turns leftover partial text into a final turn.
func (e *Engine) flush(s *Session) {
	if s.agg.HasPending() {
		e.appendUtterances(s, s.agg.OnTurnComplete())
	}
}

func (e *Engine) buildOutcome(s *Session, by EndReason) *Outcome {
	now := e.now()
	utts := s.log.Utterances()
	return &Outcome{
		SessionID:      s.ID,
		Persona:        s.Persona.Kind,
		StartedAt:      s.StartedAt,
		EndedAt:        now,
		Duration:       s.Elapsed(now),
		Transcript:     utts,
		TranscriptText: transcript.Format(utts, s.labels),
		EndedBy:        by,
	}
}

// fail ends s after a fatal error: Error, cleanup, then Idle.
func (e *Engine) fail(s *Session, err error) {
	if !e.claim(s) {
		return
	}
	logger := e.logger.With("session_id", s.ID)

	e.mu.Lock()
	e.setStateLocked(s, StateError)
	e.mu.Unlock()

	logger.Error("session failed", "error", err)
	if relErr := s.release(); relErr != nil {
		logger.Warn("cleanup reported errors", "error", relErr)
	}

	e.flush(s)
	o := e.buildOutcome(s, EndedByError)
	if !e.cfg.RetainTranscriptOnError {
		o.Transcript = nil
		o.TranscriptText = ""
	}
	o.setErrors(err, nil)

	e.notice(Notice{SessionID: s.ID, Kind: NoticeFailure, Message: err.Error(), Err: err})

	e.mu.Lock()
	e.last = o
	e.current = nil
	e.setStateLocked(s, StateIdle)
	e.mu.Unlock()

	e.recordEnd(o)
	s.finish(o)
	if fn := e.hooks.OnComplete; fn != nil {
		e.notify.post(func() { fn(o) })
	}
}

func (e *Engine) remoteClosed(s *Session, reason string) {
	if !e.claim(s) {
		return
	}
	e.logger.Info("live session closed by remote", "session_id", s.ID, "reason", reason)
	e.complete(context.Background(), s, false, EndedByRemote)
}

// EndSession hangs up. With shouldSummarize and a non-empty transcript the
// transcript is summarized before the session completes. Calling it again,
// or concurrently, returns the same outcome.
func (e *Engine) EndSession(ctx context.Context, shouldSummarize bool) (*Outcome, error) {
	e.mu.Lock()
	s := e.current
	if s == nil {
		last, state := e.last, e.state
		e.mu.Unlock()
		if state == StateComplete && last != nil {
			return last, nil
		}
		return nil, ErrNoSession
	}
	if s.ending {
		e.mu.Unlock()
		select {
		case <-s.done:
			return s.outcome, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.ending = true
	e.mu.Unlock()

	return e.complete(ctx, s, shouldSummarize, EndedByUser), nil
}

// complete releases s, optionally summarizes it and moves to Complete.
func (e *Engine) complete(ctx context.Context, s *Session, shouldSummarize bool, by EndReason) *Outcome {
	logger := e.logger.With("session_id", s.ID)
	if err := s.release(); err != nil {
		logger.Warn("cleanup reported errors", "error", err)
	}

	e.flush(s)
	o := e.buildOutcome(s, by)

	var sumErr error
	if shouldSummarize && s.log.Len() > 0 {
		if e.deps.Summarizer == nil {
			logger.Info("no summarizer configured, skipping summary")
		} else {
			e.mu.Lock()
			ok := e.setStateLocked(s, StateSummarizing)
			e.mu.Unlock()
			if ok {
				o.Summary, sumErr = e.summarize(ctx, s, o.TranscriptText)
			}
		}
	}
	o.setErrors(nil, sumErr)

	e.mu.Lock()
	e.last = o
	e.current = nil
	e.setStateLocked(s, StateComplete)
	e.mu.Unlock()

	e.recordEnd(o)
	s.finish(o)
	if fn := e.hooks.OnComplete; fn != nil {
		e.notify.post(func() { fn(o) })
	}
	logger.Info("session complete",
		"ended_by", o.EndedBy,
		"duration", o.Duration,
		"utterances", len(o.Transcript),
		"summarized", o.Summarized(),
	)
	return o
}

func (e *Engine) summarize(ctx context.Context, s *Session, text string) (*summary.Summary, error) {
	sctx, cancel := context.WithTimeout(ctx, e.cfg.SummaryTimeout)
	defer cancel()

	start := time.Now()
	sum, err := e.deps.Summarizer.Summarize(sctx, summary.Request{
		Transcript:          text,
		WantRecommendations: s.Persona.WantRecommendations,
	})
	e.metrics.SummaryDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		e.metrics.Summaries.WithLabelValues("failure").Inc()
		serr := &SummarizationError{Cause: err}
		e.logger.Warn("summary failed", "session_id", s.ID, "error", err)
		e.notice(Notice{SessionID: s.ID, Kind: NoticeSummaryFailed, Message: "could not summarize the conversation", Err: serr})
		return nil, serr
	}
	e.metrics.Summaries.WithLabelValues("success").Inc()
	return sum, nil
}

func (e *Engine) recordEnd(o *Outcome) {
	e.metrics.ActiveSessions.Dec()
	e.metrics.SessionsEnded.WithLabelValues(string(o.EndedBy)).Inc()
	e.metrics.SessionDuration.Observe(o.Duration.Seconds())
}

// Interrupt silences the assistant immediately. It returns how many
// buffers were stopped.
func (e *Engine) Interrupt() (int, error) {
	e.mu.Lock()
	s, state := e.current, e.state
	e.mu.Unlock()

	if s == nil || state != StateActive {
		return 0, ErrNoSession
	}
	_, intr := s.player()
	if intr == nil {
		return 0, ErrNoSession
	}
	return intr.OnManualInterrupt(), nil
}

// SetMuted pauses or resumes forwarding of microphone audio. The device
// stays open while muted.
func (e *Engine) SetMuted(muted bool) error {
	e.mu.Lock()
	s := e.current
	e.mu.Unlock()

	if s == nil {
		return ErrNoSession
	}
	if s.muted.Swap(muted) == muted {
		return nil
	}
	msg := "microphone unmuted"
	if muted {
		msg = "microphone muted"
	}
	e.logger.Info(msg, "session_id", s.ID)
	e.notice(Notice{SessionID: s.ID, Kind: NoticeMuted, Message: msg})
	return nil
}

// Reset returns a Complete engine to Idle.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateIdle:
		return nil
	case StateComplete:
		e.setStateLocked(nil, StateIdle)
		return nil
	default:
		return ErrSessionActive
	}
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastOutcome returns the outcome of the most recent session, or nil.
func (e *Engine) LastOutcome() *Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Transcript returns the running transcript, or the last session's when
// none is running.
func (e *Engine) Transcript() []transcript.Utterance {
	e.mu.Lock()
	s, last := e.current, e.last
	e.mu.Unlock()

	switch {
	case s != nil:
		return s.Utterances()
	case last != nil:
		return last.Transcript
	default:
		return nil
	}
}

// Snapshot returns the engine status.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	s, state := e.current, e.state
	e.mu.Unlock()

	snap := Snapshot{State: state}
	if s == nil {
		return snap
	}
	snap.SessionID = s.ID
	snap.Persona = s.Persona.Kind
	snap.Elapsed = s.Elapsed(e.now())
	snap.Utterances = s.log.Len()
	snap.Muted = s.Muted()
	if sched, _ := s.player(); sched != nil {
		snap.ActiveBuffers = sched.Active()
	}
	return snap
}

// Close ends any running session without summarizing and stops hook
// delivery.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		s := e.current
		e.mu.Unlock()

		if s != nil {
			if e.claim(s) {
				e.complete(context.Background(), s, false, EndedByUser)
			} else {
				<-s.done
			}
		}
		e.notify.close()
	})
	return nil
}
