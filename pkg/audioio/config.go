// Package audioio captures microphone audio and plays synthesized speech.
//
// Capture devices deliver normalized float32 frames through a Source. The
// Encoder re-chunks those frames into fixed-size PCM16 little-endian chunks
// ready to stream to a live session. Playback devices implement Sink.
//
// Backends:
//   - PortAudio - real microphone and speaker (build with -tags portaudio)
//   - Mock - CI/Testing without hardware
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects PortAudio when compiled in, otherwise the mock.
	BackendAuto Backend = "auto"
	// BackendPortAudio uses PortAudio for cross-platform audio I/O.
	BackendPortAudio Backend = "portaudio"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds device configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto"
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the device sample rate in Hz.
	// Default: 16000 (live session input rate)
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of device channels.
	// Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is the size of one device callback buffer.
	// Default: 20ms
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// Device is a backend specific device name. Empty selects the default.
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig returns a capture Config matching the live session input format.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
	}
}

// OutputConfig returns a playback Config matching the live session output format.
func OutputConfig() Config {
	cfg := DefaultConfig()
	cfg.SampleRate = 24000
	return cfg
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of sample frames per device buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes returns the PCM16 size of one device buffer in bytes.
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}

// EncoderConfig controls how captured frames are turned into chunks.
type EncoderConfig struct {
	// FrameSize is the number of samples per emitted chunk (per channel).
	// Default: 4096
	FrameSize int `yaml:"frame_size" json:"frame_size"`

	// SampleRate is the rate chunks are emitted at. Captured frames at a
	// different rate are resampled.
	// Default: 16000
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the channel count of emitted chunks.
	// Default: 1
	Channels int `yaml:"channels" json:"channels"`

	// QueueSize bounds the chunk channel. A full queue drops the newest chunk.
	// Default: 32
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

// DefaultEncoderConfig returns the encoder defaults.
func DefaultEncoderConfig() EncoderConfig {
	return EncoderConfig{
		FrameSize:  4096,
		SampleRate: 16000,
		Channels:   1,
		QueueSize:  32,
	}
}

// Validate checks that the encoder configuration is valid.
func (c *EncoderConfig) Validate() error {
	if c.FrameSize <= 0 {
		return fmt.Errorf("frame_size must be positive, got %d", c.FrameSize)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("queue_size must not be negative, got %d", c.QueueSize)
	}
	return nil
}

// MIMEType returns the media type advertised for emitted chunks.
func (c *EncoderConfig) MIMEType() string {
	return fmt.Sprintf("audio/pcm;rate=%d", c.SampleRate)
}
