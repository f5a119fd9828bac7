// Package gemini connects live sessions to the Gemini Live API over its
// bidirectional websocket protocol.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/realtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	DefaultModel    = "gemini-2.5-flash-native-audio-preview-09-2025"

	defaultSetupTimeout = 15 * time.Second
	closeWriteTimeout   = time.Second
)

var ErrMissingAPIKey = errors.New("gemini api key not configured")

type Connector struct {
	apiKey       string
	endpoint     string
	dialer       *websocket.Dialer
	setupTimeout time.Duration
}

type Option func(*Connector)

func WithEndpoint(endpoint string) Option {
	return func(c *Connector) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Connector) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

// WithSetupTimeout bounds how long Connect waits for the setup to be
// acknowledged.
func WithSetupTimeout(timeout time.Duration) Option {
	return func(c *Connector) {
		if timeout > 0 {
			c.setupTimeout = timeout
		}
	}
}

func NewConnector(apiKey string, opts ...Option) *Connector {
	c := &Connector{
		apiKey:       apiKey,
		endpoint:     DefaultEndpoint,
		dialer:       websocket.DefaultDialer,
		setupTimeout: defaultSetupTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the endpoint, sends the session setup and waits for it to
// be acknowledged. Every failure wraps [realtime.ErrConnect] and leaves no
// socket open.
func (c *Connector) Connect(ctx context.Context, config realtime.SessionConfig) (realtime.Connection, error) {
	ctx, span := tracer.Start(ctx, "connect live session")
	defer span.End()
	span.SetAttributes(attribute.String("gemini.model", modelName(config.Model)))

	conn, err := c.connect(ctx, config)
	if err != nil {
		err = fmt.Errorf("%w: %w", realtime.ErrConnect, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return conn, nil
}

func (c *Connector) connect(ctx context.Context, config realtime.SessionConfig) (*Connection, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", c.endpoint, err)
	}
	query := endpoint.Query()
	query.Set("key", c.apiKey)
	endpoint.RawQuery = query.Encode()

	ws, resp, err := c.dialer.DialContext(ctx, endpoint.String(), http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to open socket connection to gemini (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("failed to open socket connection to gemini: %w", err)
	}

	if err := ws.WriteJSON(newSetupMessage(config)); err != nil {
		ws.Close()
		return nil, fmt.Errorf("failed to send setup: %w", err)
	}

	if err := awaitSetupComplete(ctx, ws, c.setupTimeout); err != nil {
		ws.Close()
		return nil, err
	}

	return &Connection{ws: ws}, nil
}

func awaitSetupComplete(ctx context.Context, ws *websocket.Conn, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := ws.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set read deadline: %w", err)
	}
	defer ws.SetReadDeadline(time.Time{})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Errorf("setup rejected: %d %s", closeErr.Code, closeErr.Text)
			}
			return fmt.Errorf("failed waiting for setup to complete: %w", err)
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("failed to decode setup response: %w", err)
		}
		if msg.SetupComplete != nil {
			return nil
		}
	}
}

func newSetupMessage(config realtime.SessionConfig) clientSetupMessage {
	s := setup{Model: modelName(config.Model)}

	if len(config.ResponseModalities) > 0 || config.VoiceName != "" {
		s.GenerationConfig = &generationConfig{}
		for _, modality := range config.ResponseModalities {
			s.GenerationConfig.ResponseModalities = append(s.GenerationConfig.ResponseModalities, string(modality))
		}
		if config.VoiceName != "" {
			s.GenerationConfig.SpeechConfig = &speechConfig{
				VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: config.VoiceName}},
			}
		}
	}
	if config.SystemInstruction != "" {
		s.SystemInstruction = &content{Parts: []part{{Text: config.SystemInstruction}}}
	}
	if len(config.Tools) > 0 {
		declarations := make([]functionDeclaration, 0, len(config.Tools))
		for _, declaration := range config.Tools {
			declarations = append(declarations, functionDeclaration{
				Name:                 declaration.Name,
				Description:          declaration.Description,
				ParametersJSONSchema: declaration.Parameters,
			})
		}
		s.Tools = []tool{{FunctionDeclarations: declarations}}
	}
	if config.InputAudioTranscription {
		s.InputAudioTranscription = &struct{}{}
	}
	if config.OutputAudioTranscription {
		s.OutputAudioTranscription = &struct{}{}
	}

	return clientSetupMessage{Setup: s}
}

func modelName(model string) string {
	if model == "" {
		model = DefaultModel
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	return model
}

// Connection is an open live session socket. Writes are serialized; a
// single goroutine is expected to call Listen.
type Connection struct {
	ws *websocket.Conn

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
}

func (c *Connection) SendRealtimeAudio(ctx context.Context, chunk audio.Chunk) error {
	err := c.writeJSON(clientRealtimeInputMessage{
		RealtimeInput: realtimeInput{Audio: &blob{
			MIMEType: chunk.MIMEType(),
			Data:     base64.StdEncoding.EncodeToString(chunk.Bytes()),
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}

	sentFramesCounter.Add(ctx, 1)
	return nil
}

func (c *Connection) SendToolResponse(ctx context.Context, results []realtime.ToolResult) error {
	_, span := tracer.Start(ctx, "send tool response")
	defer span.End()
	span.SetAttributes(attribute.Int("tool.results", len(results)))

	responses := make([]functionResponse, 0, len(results))
	for _, result := range results {
		responses = append(responses, functionResponse{
			ID:       result.ID,
			Name:     result.Name,
			Response: functionResponseResult{Result: result.Result},
		})
	}

	if err := c.writeJSON(clientToolResponseMessage{ToolResponse: toolResponse{FunctionResponses: responses}}); err != nil {
		err = fmt.Errorf("failed to send tool response: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (c *Connection) writeJSON(v any) error {
	if c.closed.Load() {
		return realtime.ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(v); err != nil {
		if c.closed.Load() {
			return realtime.ErrClosed
		}
		return fmt.Errorf("%w: %w", realtime.ErrTransport, err)
	}
	return nil
}

// Listen reads until the socket ends. Messages that cannot be decoded are
// logged and skipped.
func (c *Connection) Listen(ctx context.Context, onMessage func(realtime.ServerMessage)) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			return c.readError(err)
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		receivedCounter.Add(ctx, 1)
		message, err := decodeServerMessage(data)
		if err != nil {
			logger.Warn("failed to decode gemini message", "error", err)
			continue
		}
		if message.IsEmpty() {
			continue
		}

		onMessage(message)
	}
}

func (c *Connection) readError(err error) error {
	if c.closed.Load() {
		return nil
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		var closeErr *websocket.CloseError
		errors.As(err, &closeErr)
		return fmt.Errorf("%w: %d %s", realtime.ErrRemoteClosed, closeErr.Code, closeErr.Text)
	}

	return fmt.Errorf("%w: %w", realtime.ErrTransport, err)
}

func decodeServerMessage(data []byte) (realtime.ServerMessage, error) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return realtime.ServerMessage{}, err
	}

	var out realtime.ServerMessage
	if sc := msg.ServerContent; sc != nil {
		if sc.InputTranscription != nil {
			out.InputTranscript = sc.InputTranscription.Text
		}
		if sc.OutputTranscription != nil {
			out.OutputTranscript = sc.OutputTranscription.Text
		}
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p.InlineData != nil && p.InlineData.Data != "" {
					out.Audio = append(out.Audio, realtime.AudioPayload{MIMEType: p.InlineData.MIMEType, Data: p.InlineData.Data})
				}
			}
		}
		out.Interrupted = sc.Interrupted
		out.TurnComplete = sc.TurnComplete
	}

	if msg.ToolCall != nil {
		for _, call := range msg.ToolCall.FunctionCalls {
			out.ToolCalls = append(out.ToolCalls, realtime.ToolCall{ID: call.ID, Name: call.Name, Args: call.Args})
		}
	}

	if msg.ToolCallCancellation != nil {
		logger.Info("gemini cancelled tool calls", "ids", msg.ToolCallCancellation.IDs)
	}

	if msg.GoAway != nil {
		timeLeft, err := time.ParseDuration(msg.GoAway.TimeLeft)
		if err != nil {
			timeLeft = 0
		}
		out.GoAway = &timeLeft
	}

	return out, nil
}

// Close sends a normal close frame and releases the socket. It is safe to
// call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWriteTimeout))
		c.writeMu.Unlock()

		err = c.ws.Close()
	})
	return err
}
