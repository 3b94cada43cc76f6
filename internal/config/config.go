// Package config loads go-callassist settings from a YAML file, a .env
// file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-callassist/pkg/audioio"
	"github.com/teslashibe/go-callassist/pkg/persona"
	"github.com/teslashibe/go-callassist/pkg/session"
)

// Defaults for the local control server and store.
const (
	DefaultPort     = 8181
	DefaultDBPath   = "callassist.db"
	DefaultLogLevel = "info"
)

// Config is the complete application configuration.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// APIKey authenticates both the live session and the summarizer. It is
	// only read from the environment.
	APIKey string `yaml:"-"`

	Persona PersonaConfig  `yaml:"persona"`
	Session session.Config `yaml:"session"`
	Summary SummaryConfig  `yaml:"summary"`
	Server  ServerConfig   `yaml:"server"`
	Store   StoreConfig    `yaml:"store"`
}

// PersonaConfig selects the conversational role.
type PersonaConfig struct {
	Kind   string                `yaml:"kind"`
	Client persona.ClientContext `yaml:"client"`
}

// SummaryConfig configures end-of-call summarization.
type SummaryConfig struct {
	Enabled bool          `yaml:"enabled"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// ServerConfig configures the local control server.
type ServerConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// StoreConfig configures interaction persistence.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:  DefaultLogLevel,
		LogFormat: "text",
		Persona:   PersonaConfig{Kind: string(persona.KindFollowUpCall)},
		Session:   session.DefaultConfig(),
		Summary: SummaryConfig{
			Enabled: true,
			Model:   "gemini-2.0-flash",
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{Enabled: true, Port: DefaultPort},
		Store:  StoreConfig{Enabled: true, Path: DefaultDBPath},
	}
}

// Load reads path (optional), then .env, then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.APIKey = Env("GOOGLE_API_KEY", Env("GEMINI_API_KEY", c.APIKey))
	c.LogLevel = Env("CALLASSIST_LOG_LEVEL", c.LogLevel)
	c.LogFormat = Env("CALLASSIST_LOG_FORMAT", c.LogFormat)
	c.Persona.Kind = Env("CALLASSIST_PERSONA", c.Persona.Kind)
	c.Persona.Client.Name = Env("CALLASSIST_CLIENT", c.Persona.Client.Name)
	c.Session.Live.Model = Env("CALLASSIST_MODEL", c.Session.Live.Model)
	c.Session.Live.Voice = Env("CALLASSIST_VOICE", c.Session.Live.Voice)
	c.Session.Audio.Backend = audioio.Backend(Env("CALLASSIST_AUDIO_BACKEND", string(c.Session.Audio.Backend)))
	c.Store.Path = Env("CALLASSIST_DB", c.Store.Path)

	var err error
	if c.Server.Port, err = EnvInt("CALLASSIST_PORT", c.Server.Port); err != nil {
		return err
	}
	if c.Session.DialDelay, err = EnvDuration("CALLASSIST_DIAL_DELAY", c.Session.DialDelay); err != nil {
		return err
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := persona.ParseKind(c.Persona.Kind); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Store.Enabled && c.Store.Path == "" {
		return errors.New("config: store path is required when the store is enabled")
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("config: session: %w", err)
	}
	return nil
}

// BuildPersona renders the configured persona.
func (c *Config) BuildPersona() (persona.Persona, error) {
	kind, err := persona.ParseKind(c.Persona.Kind)
	if err != nil {
		return persona.Persona{}, err
	}
	return persona.ForKind(kind, c.Persona.Client)
}

// SessionConfig returns the engine configuration with the API key and
// persona filled in.
func (c *Config) SessionConfig() (session.Config, error) {
	p, err := c.BuildPersona()
	if err != nil {
		return session.Config{}, err
	}
	sc := c.Session
	sc.Persona = p
	sc.Live.APIKey = c.APIKey
	if c.Summary.Timeout > 0 {
		sc.SummaryTimeout = c.Summary.Timeout
	}
	return sc, nil
}

// Env returns the value of key, or def when unset.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvInt returns key parsed as an int, or def when unset.
func EnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

// EnvDuration returns key parsed as a duration, or def when unset.
func EnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
