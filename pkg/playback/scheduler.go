package playback

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-callassist/pkg/audioio"
)

// Config holds the format of inbound audio.
type Config struct {
	// SampleRate of inbound PCM16 audio.
	// Default: 24000
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels of inbound PCM16 audio.
	// Default: 1
	Channels int `yaml:"channels" json:"channels"`
}

// DefaultConfig returns the live session output format.
func DefaultConfig() Config {
	return Config{SampleRate: 24000, Channels: 1}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	return nil
}

type entry struct {
	handle Handle
	voice  Voice
}

// Scheduler queues decoded buffers back to back on an Output.
//
// Schedule, natural completion and StopAll all run under one mutex, so the
// active set and the next start cursor are always consistent.
type Scheduler struct {
	out    Output
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	nextStart time.Duration
	active    map[uint64]*entry
	nextID    uint64
	closed    bool

	scheduled atomic.Int64
	stopped   atomic.Int64
	completed atomic.Int64
}

// Stats reports scheduler counters.
type Stats struct {
	Scheduled int64 `json:"scheduled"`
	Completed int64 `json:"completed"`
	Stopped   int64 `json:"stopped"`
	Active    int   `json:"active"`
}

// NewScheduler creates a scheduler that plays on out and owns it.
func NewScheduler(out Output, cfg Config, logger *slog.Logger) *Scheduler {
	def := DefaultConfig()
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Channels == 0 {
		cfg.Channels = def.Channels
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		out:       out,
		cfg:       cfg,
		logger:    logger.With("component", "playback"),
		nextStart: out.Now(),
		active:    make(map[uint64]*entry),
	}
}

// Schedule decodes a PCM16 chunk and queues it right after whatever is
// already scheduled. A chunk that cannot be decoded returns a *DecodeError
// and leaves the schedule untouched.
func (s *Scheduler) Schedule(pcm []byte) (Handle, error) {
	if len(pcm) == 0 {
		return Handle{}, &DecodeError{Err: ErrEmptyAudio}
	}
	samples, err := audioio.PCM16ToFloat32(pcm)
	if err != nil {
		return Handle{}, &DecodeError{Bytes: len(pcm), Err: err}
	}
	buf := Buffer{Samples: samples, SampleRate: s.cfg.SampleRate, Channels: s.cfg.Channels}
	if buf.Duration() == 0 {
		return Handle{}, &DecodeError{Bytes: len(pcm), Err: ErrEmptyAudio}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Handle{}, ErrClosed
	}

	start := s.out.Now()
	if s.nextStart > start {
		start = s.nextStart
	}

	voice, err := s.out.Play(buf, start)
	if err != nil {
		return Handle{}, fmt.Errorf("playback: play: %w", err)
	}

	s.nextID++
	h := Handle{ID: s.nextID, Start: start, Duration: buf.Duration()}
	s.active[h.ID] = &entry{handle: h, voice: voice}
	s.nextStart = h.End()
	s.scheduled.Add(1)

	go s.await(h.ID, voice)

	return h, nil
}

func (s *Scheduler) await(id uint64, v Voice) {
	<-v.Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[id]; ok {
		delete(s.active, id)
		s.completed.Add(1)
	}
}

// StopAll stops every active buffer, empties the active set and resets the
// schedule to the current output time. It returns how many were stopped.
func (s *Scheduler) StopAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Scheduler) stopLocked() int {
	n := len(s.active)
	for id, e := range s.active {
		e.voice.Stop()
		delete(s.active, id)
	}
	s.nextStart = s.out.Now()
	s.stopped.Add(int64(n))

	if n > 0 {
		s.logger.Debug("playback stopped", "buffers", n)
	}
	return n
}

// Active returns the number of buffers scheduled or playing.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Handles returns the active handles ordered by start time.
func (s *Scheduler) Handles() []Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Handle, 0, len(s.active))
	for _, e := range s.active {
		out = append(out, e.handle)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// NextStart returns where the next buffer would be placed if playback had
// not drained.
func (s *Scheduler) NextStart() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

// Now returns the output clock.
func (s *Scheduler) Now() time.Duration {
	return s.out.Now()
}

// Stats returns scheduler counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Scheduled: s.scheduled.Load(),
		Completed: s.completed.Load(),
		Stopped:   s.stopped.Load(),
		Active:    s.Active(),
	}
}

// Close stops all playback and closes the output. Further Schedule calls
// return ErrClosed. Close is idempotent.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopLocked()
	s.mu.Unlock()

	return s.out.Close()
}
