package session

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-callassist/pkg/audioio"
	"github.com/teslashibe/go-callassist/pkg/live"
	"github.com/teslashibe/go-callassist/pkg/persona"
	"github.com/teslashibe/go-callassist/pkg/playback"
	"github.com/teslashibe/go-callassist/pkg/summary"
	"github.com/teslashibe/go-callassist/pkg/transcript"
)

// Config holds engine settings.
type Config struct {
	// Persona is the role used by Start.
	Persona persona.Persona `yaml:"-" json:"-"`

	// Live configures the streaming session. Persona fields override the
	// system instruction and voice.
	Live live.Config `yaml:"live" json:"live"`

	// Audio configures the microphone.
	Audio audioio.Config `yaml:"audio" json:"audio"`

	// Encoder configures outbound chunking.
	Encoder audioio.EncoderConfig `yaml:"encoder" json:"encoder"`

	// Playback is the inbound audio format.
	Playback playback.Config `yaml:"playback" json:"playback"`

	// DialDelay is how long the engine shows "dialing" before connecting.
	// Default: 1.5s
	DialDelay time.Duration `yaml:"dial_delay" json:"dial_delay"`

	// SummaryTimeout bounds a summarization call.
	// Default: 60s
	SummaryTimeout time.Duration `yaml:"summary_timeout" json:"summary_timeout"`

	// TickInterval is how often OnTick reports elapsed time.
	// Default: 1s
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`

	// RetainTranscriptOnError keeps the transcript in the outcome of a
	// session that failed.
	// Default: true
	RetainTranscriptOnError bool `yaml:"retain_transcript_on_error" json:"retain_transcript_on_error"`

	// Labels overrides the persona's speaker labels.
	Labels transcript.Labels `yaml:"-" json:"-"`

	// Logger is the structured logger to use.
	Logger *slog.Logger `yaml:"-" json:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Live:                    live.DefaultConfig(),
		Audio:                   audioio.DefaultConfig(),
		Encoder:                 audioio.DefaultEncoderConfig(),
		Playback:                playback.DefaultConfig(),
		DialDelay:               1500 * time.Millisecond,
		SummaryTimeout:          60 * time.Second,
		TickInterval:            time.Second,
		RetainTranscriptOnError: true,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.DialDelay < 0 {
		return fmt.Errorf("dial_delay must not be negative, got %v", c.DialDelay)
	}
	if c.SummaryTimeout <= 0 {
		return fmt.Errorf("summary_timeout must be positive, got %v", c.SummaryTimeout)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", c.TickInterval)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if err := c.Encoder.Validate(); err != nil {
		return fmt.Errorf("encoder: %w", err)
	}
	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	if err := c.Live.Validate(); err != nil {
		return fmt.Errorf("live: %w", err)
	}
	return nil
}

// Dependencies are the collaborators an engine drives.
type Dependencies struct {
	// Dialer opens live sessions.
	Dialer live.Dialer

	// Source opens the microphone for a new session.
	Source func() (audioio.Source, error)

	// Output opens the speaker for a new session.
	Output func() (playback.Output, error)

	// Summarizer is optional; without one sessions complete unsummarized.
	Summarizer summary.Summarizer
}

func (d Dependencies) validate() error {
	var errs []error
	if d.Dialer == nil {
		errs = append(errs, errors.New("dialer is required"))
	}
	if d.Source == nil {
		errs = append(errs, errors.New("source is required"))
	}
	if d.Output == nil {
		errs = append(errs, errors.New("output is required"))
	}
	return errors.Join(errs...)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMetrics records engine activity in m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}
