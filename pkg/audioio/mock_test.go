package audioio

import (
	"context"
	"testing"
	"time"
)

func TestMockSource_StartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferDuration = 10 * time.Millisecond

	src := NewMockSource(cfg, nil)
	defer src.Close()

	ctx := context.Background()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}
}

func TestMockSource_GeneratesFrames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferDuration = 10 * time.Millisecond

	src := NewMockSource(cfg, nil, WithSineWave(440, 0.5))
	defer src.Close()

	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case frame := <-src.Stream():
		if len(frame.Samples) != cfg.BufferSize()*cfg.Channels {
			t.Errorf("Expected %d samples, got %d", cfg.BufferSize(), len(frame.Samples))
		}
		if frame.SampleRate != cfg.SampleRate {
			t.Errorf("Expected sample rate %d, got %d", cfg.SampleRate, frame.SampleRate)
		}
		if frame.Duration() != cfg.BufferDuration {
			t.Errorf("Expected duration %v, got %v", cfg.BufferDuration, frame.Duration())
		}
		if CalculateRMS(frame.Samples) == 0 {
			t.Error("Expected non-silent sine frame")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestMockSource_StreamClosedOnStop(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil, WithManualFrames())
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	stream := src.Stream()
	src.Stop()

	if _, ok := <-stream; ok {
		t.Error("Expected closed stream after Stop")
	}
	if src.Emit([]float32{0}) {
		t.Error("Emit should fail after Stop")
	}
}

func TestMockSource_ClosedCannotStart(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil)
	src.Close()
	if err := src.Start(context.Background()); err == nil {
		t.Error("Expected error starting closed source")
	}
}

func TestMockSink(t *testing.T) {
	sink := NewMockSink(OutputConfig(), nil)
	ctx := context.Background()

	if err := sink.Write(ctx, Frame{Samples: []float32{0}}); err == nil {
		t.Error("Expected error writing before Start")
	}
	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := sink.Write(ctx, Frame{Samples: []float32{0.1, 0.2}}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	stats := sink.Stats()
	if stats.FramesWritten != 1 || stats.BufferedSamples != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}

	sink.Clear()
	if len(sink.Frames()) != 0 {
		t.Error("Expected no frames after Clear")
	}
	if sink.Stats().Clears != 1 {
		t.Error("Expected clear to be counted")
	}

	sink.Close()
	if err := sink.Write(ctx, Frame{}); err == nil {
		t.Error("Expected error writing after Close")
	}
}

func TestNewSource_Mock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock

	src, err := NewSource(cfg, nil)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	if src.Name() != "mock" {
		t.Errorf("Expected mock backend, got %s", src.Name())
	}
}

func TestNewSource_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 0
	if _, err := NewSource(cfg, nil); err == nil {
		t.Error("Expected error for invalid config")
	}
}

func TestNewSource_UnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "alsa"
	if _, err := NewSource(cfg, nil); err == nil {
		t.Error("Expected error for unsupported backend")
	}
}

func TestConfig_BufferSize(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BufferSize() != 320 {
		t.Errorf("Expected 320 samples per 20ms at 16kHz, got %d", cfg.BufferSize())
	}
	if cfg.BufferBytes() != 640 {
		t.Errorf("Expected 640 bytes, got %d", cfg.BufferBytes())
	}
}
