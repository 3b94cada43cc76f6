//go:build portaudio

package audioio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
)

// portaudio.Initialize and Terminate are reference counted by the library,
// but we keep our own count so a sink and source can share one init.
var (
	paMu   sync.Mutex
	paRefs int
)

func paAcquire() error {
	paMu.Lock()
	defer paMu.Unlock()
	if paRefs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return err
		}
	}
	paRefs++
	return nil
}

func paRelease() {
	paMu.Lock()
	defer paMu.Unlock()
	if paRefs == 0 {
		return
	}
	paRefs--
	if paRefs == 0 {
		_ = portaudio.Terminate()
	}
}

func portAudioAvailable() bool { return true }

// PortAudioSource captures from the default input device.
type PortAudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	stream   *portaudio.Stream
	buffer   []float32
	streamCh chan Frame
	stopCh   chan struct{}
	readDone chan struct{}

	framesRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

func newPortAudioSource(cfg Config, logger *slog.Logger) (Source, error) {
	if cfg.Device != "" {
		logger.Warn("portaudio source ignores device name, using default input", "device", cfg.Device)
	}
	return &PortAudioSource{
		cfg:      cfg,
		logger:   logger,
		streamCh: make(chan Frame, 16),
	}, nil
}

// Start opens the default input stream.
func (s *PortAudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.running {
		return nil
	}

	if err := paAcquire(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}

	s.buffer = make([]float32, s.cfg.BufferSize()*s.cfg.Channels)
	stream, err := portaudio.OpenDefaultStream(s.cfg.Channels, 0, float64(s.cfg.SampleRate), s.cfg.BufferSize(), s.buffer)
	if err != nil {
		paRelease()
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		paRelease()
		return fmt.Errorf("start input stream: %w", err)
	}

	s.stream = stream
	s.running = true
	s.streamCh = make(chan Frame, 16)
	s.stopCh = make(chan struct{})
	s.readDone = make(chan struct{})

	go s.readLoop(stream, s.buffer, s.streamCh, s.stopCh, s.readDone)

	s.logger.Info("portaudio source started",
		"sample_rate", s.cfg.SampleRate,
		"channels", s.cfg.Channels,
		"frames_per_buffer", s.cfg.BufferSize(),
	)
	return nil
}

func (s *PortAudioSource) readLoop(stream *portaudio.Stream, buf []float32, out chan Frame, stopCh, done chan struct{}) {
	defer close(done)
	defer close(out)

	for {
		if err := stream.Read(); err != nil {
			select {
			case <-stopCh:
			default:
				s.logger.Warn("portaudio read failed", "error", err)
			}
			return
		}

		samples := make([]float32, len(buf))
		copy(samples, buf)
		frame := Frame{
			Samples:    samples,
			SampleRate: s.cfg.SampleRate,
			Channels:   s.cfg.Channels,
			Captured:   time.Now(),
		}

		select {
		case <-stopCh:
			return
		case out <- frame:
			s.framesRead.Add(1)
			s.samplesRead.Add(int64(len(samples)))
		default:
			s.overruns.Add(1)
		}
	}
}

// Stop halts capture and closes the stream.
func (s *PortAudioSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	stream, done := s.stream, s.readDone
	s.stream = nil
	s.mu.Unlock()

	err := stream.Stop()
	<-done
	if cerr := stream.Close(); err == nil {
		err = cerr
	}
	paRelease()
	s.logger.Info("portaudio source stopped", "frames", s.framesRead.Load())
	return err
}

// Stream returns the frame channel.
func (s *PortAudioSource) Stream() <-chan Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the device configuration.
func (s *PortAudioSource) Config() Config { return s.cfg }

// Name returns "portaudio".
func (s *PortAudioSource) Name() string { return string(BackendPortAudio) }

// Close releases the device.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// Stats returns source statistics.
func (s *PortAudioSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return SourceStats{
		FramesRead:  s.framesRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     s.Name(),
	}
}

var _ SourceWithStats = (*PortAudioSource)(nil)

// PortAudioSink plays to the default output device.
type PortAudioSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	writeMu sync.Mutex
	running bool
	closed  bool
	stream  *portaudio.Stream
	buffer  []float32

	// Bumped by Clear so an in-flight Write abandons its remaining samples.
	generation atomic.Uint64

	framesWritten  atomic.Int64
	samplesWritten atomic.Int64
	clears         atomic.Int64
}

func newPortAudioSink(cfg Config, logger *slog.Logger) (Sink, error) {
	return &PortAudioSink{cfg: cfg, logger: logger}, nil
}

// Start opens the default output stream.
func (s *PortAudioSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.running {
		return nil
	}
	if err := paAcquire(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}

	s.buffer = make([]float32, s.cfg.BufferSize()*s.cfg.Channels)
	stream, err := portaudio.OpenDefaultStream(0, s.cfg.Channels, float64(s.cfg.SampleRate), s.cfg.BufferSize(), s.buffer)
	if err != nil {
		paRelease()
		return fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		paRelease()
		return fmt.Errorf("start output stream: %w", err)
	}
	s.stream = stream
	s.running = true
	s.logger.Info("portaudio sink started", "sample_rate", s.cfg.SampleRate)
	return nil
}

// Write plays a frame, blocking until the device has accepted it.
func (s *PortAudioSink) Write(ctx context.Context, frame Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	stream, running := s.stream, s.running
	s.mu.Unlock()
	if !running {
		return ErrClosed
	}

	gen := s.generation.Load()
	samples := frame.Samples
	for len(samples) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.generation.Load() != gen {
			return nil
		}
		n := copy(s.buffer, samples)
		for i := n; i < len(s.buffer); i++ {
			s.buffer[i] = 0
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("write output stream: %w", err)
		}
		samples = samples[n:]
	}
	s.framesWritten.Add(1)
	s.samplesWritten.Add(int64(len(frame.Samples)))
	return nil
}

// Clear abandons audio still being written.
func (s *PortAudioSink) Clear() error {
	s.generation.Add(1)
	s.clears.Add(1)
	return nil
}

// Stop halts playback.
func (s *PortAudioSink) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	s.generation.Add(1)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := stream.Stop()
	if cerr := stream.Close(); err == nil {
		err = cerr
	}
	paRelease()
	return err
}

// Config returns the device configuration.
func (s *PortAudioSink) Config() Config { return s.cfg }

// Name returns "portaudio".
func (s *PortAudioSink) Name() string { return string(BackendPortAudio) }

// Close releases the device.
func (s *PortAudioSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// Stats returns sink statistics.
func (s *PortAudioSink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return SinkStats{
		FramesWritten:  s.framesWritten.Load(),
		SamplesWritten: s.samplesWritten.Load(),
		Clears:         s.clears.Load(),
		Running:        running,
		Backend:        s.Name(),
	}
}

var _ SinkWithStats = (*PortAudioSink)(nil)
