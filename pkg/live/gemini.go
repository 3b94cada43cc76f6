package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-callassist/pkg/transcript"
)

// Gemini dials sessions on the Gemini Live API.
type Gemini struct {
	// Header is sent with the websocket handshake.
	Header http.Header
}

// NewGemini creates a Gemini Live dialer.
func NewGemini() *Gemini {
	return &Gemini{}
}

// Open implements Dialer.
func (g *Gemini) Open(ctx context.Context, cfg Config) (Session, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	logger := cfg.Logger.With("component", "live", "provider", "gemini")

	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("live: invalid endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("key", cfg.APIKey)
	endpoint.RawQuery = q.Encode()

	header := make(http.Header)
	for k, v := range g.Header {
		header[k] = v
	}

	if err := ctx.Err(); err != nil {
		return nil, NewConnectionError("dial", err, false)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return nil, NewConnectionError("handshake", NewAPIError(resp.StatusCode, ""), resp.StatusCode >= 500)
		}
		return nil, NewConnectionError("dial", err, ctx.Err() == nil)
	}

	s := &geminiSession{
		stream: newStream(cfg.EventQueue, cfg.SendQueue, logger),
		conn:   conn,
		cfg:    cfg,
		logger: logger,
	}

	if err := s.writeJSON(newSetupMessage(cfg)); err != nil {
		_ = conn.Close()
		return nil, NewConnectionError("setup", err, true)
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()

	logger.Info("live session connecting", "model", cfg.modelPath(), "voice", cfg.Voice)
	return s, nil
}

type geminiSession struct {
	*stream

	conn   *websocket.Conn
	wsMu   sync.Mutex
	cfg    Config
	logger *slog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
	closing   atomic.Bool
}

// Close implements Session.
func (s *geminiSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closing.Store(true)

		s.wsMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.wsMu.Unlock()

		err = s.conn.Close()
		s.shutdown("client closed")
		s.wg.Wait()
		s.logger.Info("live session closed", "chunks_sent", s.chunksSent.Load())
	})
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *geminiSession) writeJSON(v any) error {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *geminiSession) writeLoop() {
	defer s.wg.Done()

	var ping <-chan time.Time
	if s.cfg.PingInterval > 0 {
		t := time.NewTicker(s.cfg.PingInterval)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case <-s.done:
			return
		case chunk := <-s.out:
			if err := s.writeJSON(newRealtimeInput(chunk)); err != nil {
				if !s.closing.Load() {
					s.fail(NewConnectionError("send", err, true), "connection lost")
				}
				return
			}
			s.chunksSent.Add(1)
		case <-ping:
			s.wsMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			s.wsMu.Unlock()
			if err != nil && !s.closing.Load() {
				s.logger.Warn("keepalive ping failed", "error", err)
			}
		}
	}
}

func (s *geminiSession) readLoop() {
	defer s.wg.Done()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.handleReadError(err)
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("failed to parse server message", "error", err)
			continue
		}
		if stop := s.dispatch(msg); stop {
			return
		}
	}
}

func (s *geminiSession) handleReadError(err error) {
	if s.closing.Load() {
		s.terminate("client closed")
		return
	}

	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		if ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway {
			s.terminate(closeReason(ce))
			return
		}
		apiErr := &APIError{Code: ce.Code, Message: ce.Text, Retryable: ce.Code == websocket.CloseTryAgainLater}
		s.fail(NewConnectionError("remote closed", apiErr, apiErr.Retryable), closeReason(ce))
		return
	}

	s.fail(NewConnectionError("read", err, true), "connection lost")
}

func closeReason(ce *websocket.CloseError) string {
	if ce.Text != "" {
		return ce.Text
	}
	return fmt.Sprintf("remote closed (%d)", ce.Code)
}

// dispatch translates one server message into events. It reports true when
// the message ends the session.
func (s *geminiSession) dispatch(msg serverMessage) bool {
	if msg.SetupComplete != nil {
		s.emit(Opened{})
		s.logger.Info("live session ready")
	}

	if sc := msg.ServerContent; sc != nil {
		if t := sc.InputTranscription; t != nil && t.Text != "" {
			s.emit(PartialTranscript{Speaker: transcript.SpeakerLocal, Text: t.Text})
		}
		if t := sc.OutputTranscription; t != nil && t.Text != "" {
			s.emit(PartialTranscript{Speaker: transcript.SpeakerRemote, Text: t.Text})
		}
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part.InlineData == nil || !strings.HasPrefix(part.InlineData.MIMEType, "audio/") {
					continue
				}
				pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					s.logger.Warn("undecodable audio payload", "error", err)
					pcm = nil
				}
				s.emit(AudioChunk{Data: pcm, MIMEType: part.InlineData.MIMEType})
			}
		}
		if sc.Interrupted {
			s.emit(Interrupted{})
		}
		if sc.TurnComplete {
			s.emit(TurnComplete{})
		}
	}

	if msg.GoAway != nil {
		s.logger.Info("server going away", "time_left", msg.GoAway.TimeLeft)
		s.terminate("server going away")
		return true
	}
	return false
}

// Wire types. Outbound messages use the snake_case field names; inbound
// messages arrive in camelCase.

type setupMessage struct {
	Setup setupBody `json:"setup"`
}

type setupBody struct {
	Model                    string           `json:"model"`
	GenerationConfig         generationConfig `json:"generation_config"`
	SystemInstruction        *instruction     `json:"system_instruction,omitempty"`
	InputAudioTranscription  *struct{}        `json:"input_audio_transcription,omitempty"`
	OutputAudioTranscription *struct{}        `json:"output_audio_transcription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"response_modalities"`
	SpeechConfig       speechConfig `json:"speech_config"`
}

type speechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voice_name"`
		} `json:"prebuilt_voice_config"`
	} `json:"voice_config"`
}

type instruction struct {
	Parts []textPart `json:"parts"`
}

type textPart struct {
	Text string `json:"text"`
}

func newSetupMessage(cfg Config) setupMessage {
	body := setupBody{
		Model: cfg.modelPath(),
		GenerationConfig: generationConfig{
			ResponseModalities: []string{string(cfg.ResponseModality)},
		},
	}
	body.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = cfg.Voice
	if cfg.SystemInstruction != "" {
		body.SystemInstruction = &instruction{Parts: []textPart{{Text: cfg.SystemInstruction}}}
	}
	if cfg.InputTranscription {
		body.InputAudioTranscription = &struct{}{}
	}
	if cfg.OutputTranscription {
		body.OutputAudioTranscription = &struct{}{}
	}
	return setupMessage{Setup: body}
}

type realtimeInput struct {
	RealtimeInput struct {
		MediaChunks []mediaBlob `json:"media_chunks"`
	} `json:"realtime_input"`
}

type mediaBlob struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}

func newRealtimeInput(chunk MediaChunk) realtimeInput {
	var msg realtimeInput
	msg.RealtimeInput.MediaChunks = []mediaBlob{{
		Data:     base64.StdEncoding.EncodeToString(chunk.Data),
		MIMEType: chunk.MIMEType,
	}}
	return msg
}

type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete"`
	ServerContent *serverContent `json:"serverContent"`
	GoAway        *goAway        `json:"goAway"`
}

type serverContent struct {
	ModelTurn           *modelTurn     `json:"modelTurn"`
	TurnComplete        bool           `json:"turnComplete"`
	Interrupted         bool           `json:"interrupted"`
	InputTranscription  *transcription `json:"inputTranscription"`
	OutputTranscription *transcription `json:"outputTranscription"`
}

type modelTurn struct {
	Parts []struct {
		Text       string      `json:"text"`
		InlineData *inlineData `json:"inlineData"`
	} `json:"parts"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type transcription struct {
	Text string `json:"text"`
}

type goAway struct {
	TimeLeft string `json:"timeLeft"`
}

var _ Dialer = (*Gemini)(nil)
var _ Session = (*geminiSession)(nil)
