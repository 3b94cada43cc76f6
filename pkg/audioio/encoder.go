package audioio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Encoder turns captured frames into fixed-size PCM16 chunks.
//
// It owns the Source it was started with: Stop releases the device.
type Encoder struct {
	cfg    EncoderConfig
	logger *slog.Logger

	mu      sync.Mutex
	src     Source
	out     chan AudioChunk
	stopCh  chan struct{}
	done    chan struct{}
	started bool
	stopped bool
	err     error

	// Only touched by the run goroutine.
	pending []float32
	seq     uint64

	framesRead     atomic.Int64
	chunksProduced atomic.Int64
	chunksDropped  atomic.Int64
}

// EncoderStats reports encoder counters.
type EncoderStats struct {
	FramesRead     int64 `json:"frames_read"`
	ChunksProduced int64 `json:"chunks_produced"`
	ChunksDropped  int64 `json:"chunks_dropped"`
}

// NewEncoder creates an encoder. Zero fields in cfg take their defaults.
func NewEncoder(cfg EncoderConfig, logger *slog.Logger) *Encoder {
	def := DefaultEncoderConfig()
	if cfg.FrameSize == 0 {
		cfg.FrameSize = def.FrameSize
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Channels == 0 {
		cfg.Channels = def.Channels
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = def.QueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Encoder{
		cfg:    cfg,
		logger: logger.With("component", "encoder"),
	}
}

// Config returns the effective encoder configuration.
func (e *Encoder) Config() EncoderConfig {
	return e.cfg
}

// Start acquires src and begins producing chunks on the returned channel.
//
// If the device cannot be started the error wraps ErrCaptureDenied, src is
// closed and no chunk is ever produced. The channel is closed after Stop, on
// context cancellation, or when the device stops delivering frames.
func (e *Encoder) Start(ctx context.Context, src Source) (<-chan AudioChunk, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid encoder config: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return nil, ErrClosed
	}
	if e.started {
		return nil, ErrAlreadyStarted
	}

	if err := src.Start(ctx); err != nil {
		_ = src.Close()
		e.logger.Warn("capture device unavailable", "backend", src.Name(), "error", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrCaptureDenied, src.Name(), err)
	}

	e.src = src
	e.out = make(chan AudioChunk, e.cfg.QueueSize)
	e.stopCh = make(chan struct{})
	e.done = make(chan struct{})
	e.started = true

	go e.run(ctx, src.Stream())

	e.logger.Info("capture started",
		"backend", src.Name(),
		"device_rate", src.Config().SampleRate,
		"rate", e.cfg.SampleRate,
		"frame_size", e.cfg.FrameSize,
	)
	return e.out, nil
}

func (e *Encoder) run(ctx context.Context, frames <-chan Frame) {
	defer close(e.done)
	defer close(e.out)

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				select {
				case <-e.stopCh:
				default:
					e.mu.Lock()
					e.err = ErrCaptureRevoked
					e.mu.Unlock()
					e.logger.Warn("capture device stopped delivering audio")
				}
				return
			}
			e.framesRead.Add(1)
			if !e.encode(frame) {
				return
			}
		}
	}
}

// encode appends a frame to the pending buffer and emits every complete
// chunk. It reports false once the encoder is stopping.
func (e *Encoder) encode(frame Frame) bool {
	channels := frame.Channels
	if channels <= 0 {
		channels = 1
	}
	samples := Downmix(frame.Samples, channels, e.cfg.Channels)
	if frame.SampleRate > 0 && frame.SampleRate != e.cfg.SampleRate {
		samples = resampleInterleaved(samples, e.cfg.Channels, frame.SampleRate, e.cfg.SampleRate)
	}
	e.pending = append(e.pending, samples...)

	size := e.cfg.FrameSize * e.cfg.Channels
	for len(e.pending) >= size {
		chunk := AudioChunk{
			Data:       Float32ToPCM16(e.pending[:size]),
			SampleRate: e.cfg.SampleRate,
			Channels:   e.cfg.Channels,
			Seq:        e.seq,
		}
		e.pending = e.pending[size:]
		e.seq++

		select {
		case <-e.stopCh:
			return false
		default:
		}

		select {
		case e.out <- chunk:
			e.chunksProduced.Add(1)
		default:
			e.chunksDropped.Add(1)
			e.logger.Debug("chunk queue full, dropping chunk", "seq", chunk.Seq)
		}
	}

	// Keep the backing array from growing without bound.
	if len(e.pending) == 0 {
		e.pending = e.pending[:0:0]
	}
	return true
}

func resampleInterleaved(samples []float32, channels, from, to int) []float32 {
	if channels == 1 {
		return ResampleFloat32(samples, from, to)
	}
	frames := len(samples) / channels
	var out []float32
	for ch := 0; ch < channels; ch++ {
		mono := make([]float32, frames)
		for i := range mono {
			mono[i] = samples[i*channels+ch]
		}
		r := ResampleFloat32(mono, from, to)
		if out == nil {
			out = make([]float32, len(r)*channels)
		}
		for i, s := range r {
			out[i*channels+ch] = s
		}
	}
	return out
}

// Stop halts capture, releases the device and closes the chunk channel.
// Chunks still queued are discarded. Stop is idempotent.
func (e *Encoder) Stop() error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	close(e.stopCh)
	src, out, done := e.src, e.out, e.done
	e.mu.Unlock()

	<-done
	for range out {
	}

	stopErr := src.Stop()
	closeErr := src.Close()
	e.logger.Info("capture stopped",
		"chunks", e.chunksProduced.Load(),
		"dropped", e.chunksDropped.Load(),
	)
	if stopErr != nil {
		return stopErr
	}
	return closeErr
}

// Err returns ErrCaptureRevoked if the device went away while running.
func (e *Encoder) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Stats returns encoder counters.
func (e *Encoder) Stats() EncoderStats {
	return EncoderStats{
		FramesRead:     e.framesRead.Load(),
		ChunksProduced: e.chunksProduced.Load(),
		ChunksDropped:  e.chunksDropped.Load(),
	}
}
