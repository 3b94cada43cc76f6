package playback

import (
	"sync"
	"time"
)

// MockOutput is an Output driven by a manual clock. Buffers finish when
// Advance moves the clock past their end.
type MockOutput struct {
	mu      sync.Mutex
	now     time.Duration
	voices  []*MockVoice
	closed  bool
	playErr error
}

// NewMockOutput creates a mock output with its clock at zero.
func NewMockOutput() *MockOutput {
	return &MockOutput{}
}

// MockVoice is a buffer played on a MockOutput.
type MockVoice struct {
	Start    time.Duration
	Duration time.Duration
	Samples  int

	mu      sync.Mutex
	done    chan struct{}
	stopped bool
	ended   bool
}

// Done implements Voice.
func (v *MockVoice) Done() <-chan struct{} {
	return v.done
}

// Stop implements Voice.
func (v *MockVoice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ended {
		return
	}
	v.ended = true
	v.stopped = true
	close(v.done)
}

// Stopped reports whether the voice was stopped before finishing.
func (v *MockVoice) Stopped() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stopped
}

func (v *MockVoice) finish() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ended {
		return
	}
	v.ended = true
	close(v.done)
}

// Now implements Output.
func (m *MockOutput) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Play implements Output.
func (m *MockOutput) Play(buf Buffer, at time.Duration) (Voice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.playErr != nil {
		return nil, m.playErr
	}
	v := &MockVoice{
		Start:    at,
		Duration: buf.Duration(),
		Samples:  len(buf.Samples),
		done:     make(chan struct{}),
	}
	m.voices = append(m.voices, v)
	return v, nil
}

// SetPlayError makes subsequent Play calls fail with err.
func (m *MockOutput) SetPlayError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playErr = err
}

// Advance moves the clock forward and finishes every voice whose end has
// been reached.
func (m *MockOutput) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	now := m.now
	voices := append([]*MockVoice(nil), m.voices...)
	m.mu.Unlock()

	for _, v := range voices {
		if v.Start+v.Duration <= now {
			v.finish()
		}
	}
}

// Voices returns every voice played so far, in Play order.
func (m *MockOutput) Voices() []*MockVoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockVoice(nil), m.voices...)
}

// Close implements Output.
func (m *MockOutput) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockOutput) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ Output = (*MockOutput)(nil)
