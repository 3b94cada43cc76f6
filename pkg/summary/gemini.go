package summary

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// Config holds summarizer configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// DefaultConfig returns the summarizer defaults.
func DefaultConfig() Config {
	return Config{
		Model:       "gemini-2.0-flash",
		Temperature: 0.2,
		Timeout:     30 * time.Second,
		Logger:      slog.Default(),
	}
}

// Option is a functional option for configuring the summarizer.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithModel sets the model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *Config) { cfg.HTTPClient = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// Gemini summarizes with the Gemini API using a JSON response schema.
type Gemini struct {
	cfg    Config
	client *genai.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini summarizer.
func NewGemini(ctx context.Context, opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("summary: create client: %w", err)
	}

	return &Gemini{
		cfg:    cfg,
		client: client,
		logger: cfg.Logger.With("component", "summary", "model", cfg.Model),
	}, nil
}

// Summarize implements Summarizer.
func (g *Gemini) Summarize(ctx context.Context, req Request) (*Summary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	temp := g.cfg.Temperature
	config := &genai.GenerateContentConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(req.WantRecommendations),
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(BuildPrompt(req)), config)
	if err != nil {
		return nil, fmt.Errorf("summary: generate: %w", err)
	}

	s, err := Parse(resp.Text())
	if err != nil {
		g.logger.Warn("summary response rejected", "error", err)
		return nil, err
	}
	g.logger.Info("transcript summarized",
		"latency_ms", time.Since(start).Milliseconds(),
		"needs", len(s.IdentifiedNeeds),
		"next_steps", len(s.NextSteps),
	)
	return s, nil
}

func responseSchema(withRecommendations bool) *genai.Schema {
	list := func(desc string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeArray,
			Description: desc,
			Items:       &genai.Schema{Type: genai.TypeString},
		}
	}

	s := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"profileSummary":  {Type: genai.TypeString, Description: "Short paragraph describing the client."},
			"identifiedNeeds": list("Needs the client expressed or implied."),
			"nextSteps":       list("Concrete follow-up actions for the agent."),
		},
		Required: []string{"profileSummary", "identifiedNeeds", "nextSteps"},
	}
	if withRecommendations {
		s.Properties["productRecommendations"] = list("Products that fit the client.")
		s.Required = append(s.Required, "productRecommendations")
	}
	return s
}

var _ Summarizer = (*Gemini)(nil)
