// callassist runs a real-time voice conversation with a Gemini Live model:
// an AI assistant on a follow-up client call, or a simulated client for
// agent onboarding. A local control server exposes status, transcript and
// session controls.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-callassist/internal/app"
	"github.com/teslashibe/go-callassist/internal/config"
	logx "github.com/teslashibe/go-callassist/internal/log"
	"github.com/teslashibe/go-callassist/pkg/audioio"
)

func main() {
	cfg, opts := parseFlags()

	logx.InitFormat(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = logx.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, opts, app.Dependencies{}, logx.L())
	if err != nil {
		log.Fatalf("initialization failed: %v", err)
	}

	if err := a.Run(ctx); err != nil {
		log.Printf("runtime error: %v", err)
		a.Shutdown()
		_ = logx.Sync()
		os.Exit(1)
	}
	a.Shutdown()

	if o := a.LastOutcome(); o != nil {
		out, err := json.MarshalIndent(o, "", "  ")
		if err == nil {
			fmt.Println(string(out))
		}
	}
}

// parseFlags loads the configuration and applies command line overrides.
func parseFlags() (*config.Config, app.Options) {
	configPath := flag.String("config", config.Env("CALLASSIST_CONFIG", ""), "Path to a YAML config file")
	personaKind := flag.String("persona", "", "Persona: followup or onboarding")
	client := flag.String("client", "", "Client name for the persona")
	port := flag.Int("port", 0, "Control server port")
	backend := flag.String("backend", "", "Audio backend: auto, mock, portaudio")
	summarize := flag.Bool("summarize", true, "Summarize the conversation when the session ends")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	serveOnly := flag.Bool("serve-only", false, "Start the control server without starting a session")
	noServer := flag.Bool("no-server", false, "Disable the control server")
	flag.Parse()

	summarizeSet := false
	flag.Visit(func(f *flag.Flag) { summarizeSet = summarizeSet || f.Name == "summarize" })

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	if *personaKind != "" {
		cfg.Persona.Kind = *personaKind
	}
	if *client != "" {
		cfg.Persona.Client.Name = *client
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *backend != "" {
		cfg.Session.Audio.Backend = audioio.Backend(*backend)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if summarizeSet {
		cfg.Summary.Enabled = *summarize
	}
	if *noServer {
		cfg.Server.Enabled = false
	}
	if *serveOnly && !cfg.Server.Enabled {
		log.Fatal("configuration error: -serve-only needs the control server")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	if cfg.APIKey == "" {
		fmt.Fprintln(os.Stderr, "warning: GOOGLE_API_KEY is not set; sessions will fail to connect")
	}

	return cfg, app.Options{AutoStart: !*serveOnly}
}
