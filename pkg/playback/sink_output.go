package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-callassist/pkg/audioio"
)

// sinkQueueSize is how many buffers may wait for the device.
const sinkQueueSize = 256

// SinkOutput plays buffers on an audioio.Sink.
//
// Buffers are written to the device by a single goroutine in Play order.
// The clock is wall time since the output was created; each voice is
// considered finished once the clock passes its scheduled end.
type SinkOutput struct {
	sink   audioio.Sink
	logger *slog.Logger
	epoch  time.Time

	queue  chan *sinkVoice
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

type sinkVoice struct {
	out   *SinkOutput
	frame audioio.Frame
	done  chan struct{}
	timer *time.Timer

	once    sync.Once
	mu      sync.Mutex
	stopped bool
}

// NewSinkOutput starts sink and returns an output playing on it.
func NewSinkOutput(ctx context.Context, sink audioio.Sink, logger *slog.Logger) (*SinkOutput, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := sink.Start(ctx); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	o := &SinkOutput{
		sink:   sink,
		logger: logger.With("component", "sink_output", "backend", sink.Name()),
		epoch:  time.Now(),
		queue:  make(chan *sinkVoice, sinkQueueSize),
		ctx:    runCtx,
		cancel: cancel,
	}

	o.wg.Add(1)
	go o.writeLoop()
	return o, nil
}

func (o *SinkOutput) writeLoop() {
	defer o.wg.Done()

	for {
		select {
		case <-o.ctx.Done():
			return
		case v := <-o.queue:
			if v.isStopped() {
				continue
			}
			if err := o.sink.Write(o.ctx, v.frame); err != nil && o.ctx.Err() == nil {
				o.logger.Warn("sink write failed", "error", err)
			}
		}
	}
}

// Now implements Output.
func (o *SinkOutput) Now() time.Duration {
	return time.Since(o.epoch)
}

// Play implements Output. It returns ErrQueueFull without playing
// anything when the device is too far behind.
func (o *SinkOutput) Play(buf Buffer, at time.Duration) (Voice, error) {
	if err := o.ctx.Err(); err != nil {
		return nil, ErrClosed
	}

	v := &sinkVoice{
		out: o,
		frame: audioio.Frame{
			Samples:    buf.Samples,
			SampleRate: buf.SampleRate,
			Channels:   buf.Channels,
		},
		done: make(chan struct{}),
	}

	select {
	case o.queue <- v:
	default:
		return nil, ErrQueueFull
	}

	wait := at + buf.Duration() - o.Now()
	if wait < 0 {
		wait = 0
	}
	v.mu.Lock()
	v.timer = time.AfterFunc(wait, v.finish)
	v.mu.Unlock()
	return v, nil
}

// Close stops the writer and closes the sink.
func (o *SinkOutput) Close() error {
	var err error
	o.closeOnce.Do(func() {
		o.cancel()
		_ = o.sink.Clear()
		o.wg.Wait()
		err = o.sink.Close()
	})
	return err
}

func (v *sinkVoice) Done() <-chan struct{} {
	return v.done
}

func (v *sinkVoice) Stop() {
	v.mu.Lock()
	v.stopped = true
	if v.timer != nil {
		v.timer.Stop()
	}
	v.mu.Unlock()

	_ = v.out.sink.Clear()
	v.finish()
}

func (v *sinkVoice) isStopped() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stopped
}

func (v *sinkVoice) finish() {
	v.once.Do(func() { close(v.done) })
}

var _ Output = (*SinkOutput)(nil)
