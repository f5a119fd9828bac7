// Package realtime describes the streaming conversational endpoint a live
// session talks to, independent of any particular provider's wire format.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/koscakluka/ema-live/core/audio"
)

var (
	// ErrRemoteClosed is returned from [Connection.Listen] when the endpoint
	// closed the session normally.
	ErrRemoteClosed = errors.New("remote closed the session")
	// ErrTransport wraps any other failure of an open connection.
	ErrTransport = errors.New("transport failure")
	// ErrConnect wraps handshake and dial failures.
	ErrConnect = errors.New("failed to connect")
	// ErrClosed is returned when sending on a connection that was closed
	// locally.
	ErrClosed = errors.New("connection closed")
)

type Modality string

const (
	ModalityAudio Modality = "AUDIO"
	ModalityText  Modality = "TEXT"
)

type FunctionDeclaration struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

type SessionConfig struct {
	Model                    string
	SystemInstruction        string
	ResponseModalities       []Modality
	InputAudioTranscription  bool
	OutputAudioTranscription bool
	Tools                    []FunctionDeclaration
	// VoiceName selects a prebuilt voice; empty keeps the endpoint default.
	VoiceName string
}

type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

type ToolResult struct {
	ID     string
	Name   string
	Result string
}

// AudioPayload is still encoded as received. Decoding happens in the
// session so malformed payloads are reported in one place.
type AudioPayload struct {
	MIMEType string
	Data     string
}

// ServerMessage is one inbound message. Any combination of fields may be
// set.
type ServerMessage struct {
	InputTranscript  string
	OutputTranscript string
	Audio            []AudioPayload
	Interrupted      bool
	TurnComplete     bool
	ToolCalls        []ToolCall
	// GoAway is set when the endpoint announced it will close the
	// connection after the given time.
	GoAway *time.Duration
}

func (m ServerMessage) IsEmpty() bool {
	return m.InputTranscript == "" && m.OutputTranscript == "" && len(m.Audio) == 0 &&
		!m.Interrupted && !m.TurnComplete && len(m.ToolCalls) == 0 && m.GoAway == nil
}

// HasModelOutput reports whether the message carries anything the model
// produced.
func (m ServerMessage) HasModelOutput() bool {
	return m.OutputTranscript != "" || len(m.Audio) > 0 || len(m.ToolCalls) > 0
}

type Connection interface {
	SendRealtimeAudio(ctx context.Context, chunk audio.Chunk) error
	SendToolResponse(ctx context.Context, results []ToolResult) error
	// Listen delivers inbound messages in arrival order until the
	// connection ends. It returns an error wrapping [ErrRemoteClosed] or
	// [ErrTransport], or nil if the connection was closed locally.
	Listen(ctx context.Context, onMessage func(ServerMessage)) error
	Close() error
}

type Connector interface {
	Connect(ctx context.Context, config SessionConfig) (Connection, error)
}
