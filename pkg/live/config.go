package live

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Modality is the kind of response the remote side produces.
type Modality string

// ModalityAudio requests synthesized speech only.
const ModalityAudio Modality = "AUDIO"

const (
	// DefaultEndpoint is the Gemini Live websocket endpoint.
	DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// DefaultModel is the default Gemini Live model.
	DefaultModel = "models/gemini-2.0-flash-exp"

	// DefaultVoice is the default prebuilt voice.
	DefaultVoice = "Puck"
)

// Config configures a live session.
type Config struct {
	// Model is the target model identifier.
	Model string `yaml:"model" json:"model"`

	// ResponseModality must be ModalityAudio.
	ResponseModality Modality `yaml:"response_modality" json:"response_modality"`

	// InputTranscription requests transcripts of the microphone audio.
	InputTranscription bool `yaml:"input_transcription" json:"input_transcription"`

	// OutputTranscription requests transcripts of the synthesized audio.
	OutputTranscription bool `yaml:"output_transcription" json:"output_transcription"`

	// SystemInstruction describes the conversational role.
	SystemInstruction string `yaml:"system_instruction" json:"system_instruction"`

	// Voice is the prebuilt voice name.
	Voice string `yaml:"voice" json:"voice"`

	// InputSampleRate is the rate of audio passed to Send.
	InputSampleRate int `yaml:"input_sample_rate" json:"input_sample_rate"`

	// OutputSampleRate is the rate of inbound audio chunks.
	OutputSampleRate int `yaml:"output_sample_rate" json:"output_sample_rate"`

	// Endpoint overrides the websocket URL.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// APIKey authenticates the session.
	APIKey string `yaml:"-" json:"-"`

	// HandshakeTimeout bounds the websocket handshake.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" json:"handshake_timeout"`

	// EventQueue is the capacity of the inbound event channel.
	EventQueue int `yaml:"event_queue" json:"event_queue"`

	// SendQueue is the capacity of the outbound chunk queue.
	SendQueue int `yaml:"send_queue" json:"send_queue"`

	// PingInterval is how often keepalive pings are sent. Zero disables.
	PingInterval time.Duration `yaml:"ping_interval" json:"ping_interval"`

	// Logger is the structured logger to use.
	Logger *slog.Logger `yaml:"-" json:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Model:               DefaultModel,
		ResponseModality:    ModalityAudio,
		InputTranscription:  true,
		OutputTranscription: true,
		Voice:               DefaultVoice,
		InputSampleRate:     16000,
		OutputSampleRate:    24000,
		Endpoint:            DefaultEndpoint,
		HandshakeTimeout:    10 * time.Second,
		EventQueue:          128,
		SendQueue:           64,
		PingInterval:        20 * time.Second,
	}
}

// Option is a functional option for configuring a session.
type Option func(*Config)

// WithModel sets the model.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithSystemInstruction sets the conversational role.
func WithSystemInstruction(s string) Option {
	return func(c *Config) {
		c.SystemInstruction = s
	}
}

// WithVoice sets the prebuilt voice.
func WithVoice(voice string) Option {
	return func(c *Config) {
		c.Voice = voice
	}
}

// WithTranscription toggles inbound and outbound transcription.
func WithTranscription(input, output bool) Option {
	return func(c *Config) {
		c.InputTranscription = input
		c.OutputTranscription = output
	}
}

// WithEndpoint overrides the websocket URL.
func WithEndpoint(url string) Option {
	return func(c *Config) {
		c.Endpoint = url
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// Apply applies options to a config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Model == "" {
		return ErrMissingModel
	}
	if c.ResponseModality != "" && c.ResponseModality != ModalityAudio {
		return fmt.Errorf("%w: %s", ErrUnsupportedModality, c.ResponseModality)
	}
	if c.InputSampleRate < 0 || c.OutputSampleRate < 0 {
		return fmt.Errorf("live: sample rates must not be negative")
	}
	return nil
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ResponseModality == "" {
		c.ResponseModality = def.ResponseModality
	}
	if c.Voice == "" {
		c.Voice = def.Voice
	}
	if c.InputSampleRate == 0 {
		c.InputSampleRate = def.InputSampleRate
	}
	if c.OutputSampleRate == 0 {
		c.OutputSampleRate = def.OutputSampleRate
	}
	if c.Endpoint == "" {
		c.Endpoint = def.Endpoint
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.EventQueue <= 0 {
		c.EventQueue = def.EventQueue
	}
	if c.SendQueue <= 0 {
		c.SendQueue = def.SendQueue
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// modelPath returns the model with the "models/" prefix the API expects.
func (c Config) modelPath() string {
	if strings.HasPrefix(c.Model, "models/") {
		return c.Model
	}
	return "models/" + c.Model
}

// InputMIMEType is the media type of outbound audio.
func (c Config) InputMIMEType() string {
	rate := c.InputSampleRate
	if rate == 0 {
		rate = DefaultConfig().InputSampleRate
	}
	return fmt.Sprintf("audio/pcm;rate=%d", rate)
}
