// Package app wires the go-callassist components together and manages
// their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-callassist/internal/config"
	"github.com/teslashibe/go-callassist/internal/httpc"
	"github.com/teslashibe/go-callassist/pkg/audioio"
	"github.com/teslashibe/go-callassist/pkg/hub"
	"github.com/teslashibe/go-callassist/pkg/interaction"
	"github.com/teslashibe/go-callassist/pkg/live"
	"github.com/teslashibe/go-callassist/pkg/playback"
	"github.com/teslashibe/go-callassist/pkg/session"
	"github.com/teslashibe/go-callassist/pkg/summary"
	"github.com/teslashibe/go-callassist/pkg/web"
)

const (
	// shutdownTimeout bounds the final summarization and server shutdown.
	shutdownTimeout = 90 * time.Second

	// saveTimeout bounds one interaction write and the wait for pending
	// writes on Shutdown.
	saveTimeout = 10 * time.Second
)

// Options adjust how Run behaves.
type Options struct {
	// AutoStart begins a session as soon as Run is called.
	AutoStart bool
}

// App is the go-callassist application.
type App struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	registry *prometheus.Registry
	events   *hub.Hub
	engine   *session.Engine
	server   *web.Server
	store    *interaction.GormStore
	saver    *interaction.Saver

	completed chan *session.Outcome
	storeOnce sync.Once
}

// Dependencies override the collaborators New would build. Nil fields
// use the real implementations.
type Dependencies struct {
	Dialer     live.Dialer
	Summarizer summary.Summarizer
	Source     func() (audioio.Source, error)
	Output     func() (playback.Output, error)
}

// New builds every component from cfg.
func New(ctx context.Context, cfg *config.Config, opts Options, deps Dependencies, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		cfg:       cfg,
		opts:      opts,
		logger:    logger.With("component", "app"),
		registry:  prometheus.NewRegistry(),
		completed: make(chan *session.Outcome, 1),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.events = hub.New("events", logger)

	sc, err := cfg.SessionConfig()
	if err != nil {
		return nil, err
	}
	sc.Logger = logger

	if deps.Dialer == nil {
		deps.Dialer = live.NewGemini()
	}
	if deps.Source == nil {
		deps.Source = func() (audioio.Source, error) {
			return audioio.NewSource(sc.Audio, logger)
		}
	}
	if deps.Output == nil {
		deps.Output = sinkOutput(sc, logger)
	}
	if deps.Summarizer == nil && cfg.Summary.Enabled {
		deps.Summarizer = a.newSummarizer(ctx)
	}

	if cfg.Store.Enabled {
		a.store, err = interaction.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		a.saver = interaction.NewSaver(a.store, cfg.Persona.Client.Name, saveTimeout, logger)
	}

	a.engine, err = session.New(sc, session.Dependencies{
		Dialer:     deps.Dialer,
		Source:     deps.Source,
		Output:     deps.Output,
		Summarizer: deps.Summarizer,
	}, a.hooks(), session.WithMetrics(session.NewMetrics(a.registry)))
	if err != nil {
		a.closeStore()
		return nil, fmt.Errorf("app: %w", err)
	}

	if cfg.Server.Enabled {
		a.server = web.NewServer(a.engine, a.events,
			web.WithGatherer(a.registry),
			web.WithLogger(logger),
		)
	}
	return a, nil
}

func (a *App) newSummarizer(ctx context.Context) summary.Summarizer {
	s, err := summary.NewGemini(ctx,
		summary.WithAPIKey(a.cfg.APIKey),
		summary.WithModel(a.cfg.Summary.Model),
		summary.WithTimeout(a.cfg.Summary.Timeout),
		summary.WithHTTPClient(httpc.NewClient(a.cfg.Summary.Timeout)),
		summary.WithLogger(a.logger),
	)
	if err != nil {
		a.logger.Warn("summaries disabled", "error", err)
		return nil
	}
	return s
}

// sinkOutput opens the speaker in the inbound audio format.
func sinkOutput(sc session.Config, logger *slog.Logger) func() (playback.Output, error) {
	return func() (playback.Output, error) {
		cfg := sc.Audio
		cfg.SampleRate = sc.Playback.SampleRate
		cfg.Channels = sc.Playback.Channels
		sink, err := audioio.NewSink(cfg, logger)
		if err != nil {
			return nil, err
		}
		out, err := playback.NewSinkOutput(context.Background(), sink, logger)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

func (a *App) hooks() session.Hooks {
	h := web.Hooks(a.events, a.logger)
	publish := h.OnComplete

	h.OnComplete = func(o *session.Outcome) {
		publish(o)
		if a.saver != nil {
			a.saver.Save(o)
		}
		select {
		case a.completed <- o:
		default:
		}
	}
	return h
}

// Engine returns the session engine.
func (a *App) Engine() *session.Engine {
	return a.engine
}

// Run serves until ctx is done, then ends any running session and shuts
// down. Without the control server Run also returns once a session
// completes.
func (a *App) Run(ctx context.Context) error {
	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		a.events.Run(gctx)
		return nil
	})
	if a.server != nil {
		g.Go(func() error {
			return a.server.ListenPort(a.cfg.Server.Port)
		})
	}

	if a.opts.AutoStart {
		id, err := a.engine.Start(ctx)
		if err != nil {
			stop()
			_ = g.Wait()
			return fmt.Errorf("app: start session: %w", err)
		}
		a.logger.Info("session started", "session_id", id, "persona", a.cfg.Persona.Kind)
	}

	var done <-chan *session.Outcome
	if a.server == nil {
		done = a.completed
	}

	select {
	case <-ctx.Done():
	case <-gctx.Done():
	case <-done:
	}

	a.endSession()

	if a.server != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.server.Shutdown(sctx); err != nil {
			a.logger.Warn("server shutdown", "error", err)
		}
		cancel()
	}
	stop()
	return g.Wait()
}

func (a *App) endSession() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	o, err := a.engine.EndSession(ctx, a.cfg.Summary.Enabled)
	switch {
	case errors.Is(err, session.ErrNoSession):
		return
	case err != nil:
		a.logger.Warn("end session", "error", err)
		return
	}
	a.logger.Info("session ended",
		"session_id", o.SessionID,
		"ended_by", o.EndedBy,
		"duration", o.Duration.Round(time.Second),
		"summarized", o.Summarized(),
	)
}

// LastOutcome returns the most recent session outcome, or nil.
func (a *App) LastOutcome() *session.Outcome {
	return a.engine.LastOutcome()
}

// Shutdown releases every component, letting pending interaction writes
// finish before the store closes. It is safe to call more than once.
func (a *App) Shutdown() {
	if err := a.engine.Close(); err != nil {
		a.logger.Warn("engine close", "error", err)
	}
	if a.saver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		if err := a.saver.Wait(ctx); err != nil {
			a.logger.Warn("pending interactions not saved", "error", err)
		}
		cancel()
	}
	a.closeStore()
}

func (a *App) closeStore() {
	if a.store == nil {
		return
	}
	a.storeOnce.Do(func() {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("store close", "error", err)
		}
	})
}
