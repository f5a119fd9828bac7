package live

import (
	"context"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/playback"
	"github.com/koscakluka/ema-live/core/realtime"
	"github.com/koscakluka/ema-live/core/tools"
	"github.com/koscakluka/ema-live/core/transcripts"
	"github.com/koscakluka/ema-live/core/travel"
)

const (
	DefaultSystemInstruction = "You are a friendly and helpful AI travel assistant. " +
		"Keep the conversation going until the traveler explicitly says they are done. " +
		"Gather key preferences by asking follow-up questions about departure/arrival times, budget, cabin class, " +
		"one-way vs. round trip, and any other constraints before finalizing results. " +
		"You can create itineraries and search for flights. " +
		"When a user asks for flights, use the 'find_and_show_flights' tool. " +
		"For itineraries, use 'show_itinerary'. " +
		"Always be proactive and assist with travel-related queries."

	DefaultGreeting = "Hello! Where would you like to go today?"
)

type ControllerOption func(*Controller)

func WithConnector(connector realtime.Connector) ControllerOption {
	return func(c *Controller) { c.connector = connector }
}

type AudioInput interface {
	audioInputBase
}

// AudioInputFine is implemented by inputs that can start and stop capture
// without blocking.
type AudioInputFine interface {
	StartCapture(ctx context.Context, onSamples func(samples []float32)) error
	StopCapture() error
}

// PermissionChecker is implemented by inputs that can probe the microphone
// before a session starts.
type PermissionChecker interface {
	CheckPermission() error
}

func WithAudioInput(client AudioInput) ControllerOption {
	return func(c *Controller) { c.audioInput.Set(client) }
}

// WithPlaybackOutput sets the timeline inbound speech is scheduled on. The
// same output, and the scheduler built on it, is reused by every session.
func WithPlaybackOutput(output playback.Output) ControllerOption {
	return func(c *Controller) {
		if output != nil {
			c.scheduler = playback.NewScheduler(output)
		}
	}
}

func WithFlightSearcher(searcher tools.FlightSearcher) ControllerOption {
	return func(c *Controller) { c.flights = searcher }
}

func WithModel(model string) ControllerOption {
	return func(c *Controller) { c.config.Model = model }
}

func WithVoice(voice string) ControllerOption {
	return func(c *Controller) { c.config.VoiceName = voice }
}

func WithSystemInstruction(instruction string) ControllerOption {
	return func(c *Controller) { c.config.SystemInstruction = instruction }
}

// WithGreeting replaces the line the assistant opens every session with. An
// empty greeting starts sessions with an empty transcript.
func WithGreeting(greeting string) ControllerOption {
	return func(c *Controller) { c.greeting = greeting }
}

type SessionOptions struct {
	onTranscript    func(entries []transcripts.Entry)
	onVisualPayload func(payload travel.VisualPayload)
	onViewMode      func(mode travel.ViewMode)
	onThinking      func(thinking bool)
	onStateChanged  func(state State, err error)
	onSessionEnded  func(err error)
	onInputAudio    func(chunk audio.Chunk)
	onEvent         func(event events.Event)
}

type SessionOption func(*SessionOptions)

// WithTranscriptCallback registers a callback for transcript snapshots.
//
// Every snapshot is the full transcript and is never modified afterwards.
func WithTranscriptCallback(callback func(entries []transcripts.Entry)) SessionOption {
	return func(o *SessionOptions) { o.onTranscript = callback }
}

// WithVisualPayloadCallback registers a callback for itinerary and flight
// results produced by tool calls. Ownership of the payload passes to the
// callback.
func WithVisualPayloadCallback(callback func(payload travel.VisualPayload)) SessionOption {
	return func(o *SessionOptions) { o.onVisualPayload = callback }
}

func WithViewModeCallback(callback func(mode travel.ViewMode)) SessionOption {
	return func(o *SessionOptions) { o.onViewMode = callback }
}

// WithThinkingCallback registers a callback for the waiting indicator shown
// while a tool batch runs.
func WithThinkingCallback(callback func(thinking bool)) SessionOption {
	return func(o *SessionOptions) { o.onThinking = callback }
}

func WithStateCallback(callback func(state State, err error)) SessionOption {
	return func(o *SessionOptions) { o.onStateChanged = callback }
}

// WithSessionEndedCallback registers a callback fired once when the
// session is over. err is nil for a local close.
func WithSessionEndedCallback(callback func(err error)) SessionOption {
	return func(o *SessionOptions) { o.onSessionEnded = callback }
}

// WithInputAudioCallback registers a callback for every encoded microphone
// frame. It runs inline on the capture path and should not block.
func WithInputAudioCallback(callback func(chunk audio.Chunk)) SessionOption {
	return func(o *SessionOptions) { o.onInputAudio = callback }
}

// WithEventCallback registers a callback receiving every event the session
// emits, including those routed to the more specific callbacks.
func WithEventCallback(callback func(event events.Event)) SessionOption {
	return func(o *SessionOptions) { o.onEvent = callback }
}

type audioInputBase interface {
	EncodingInfo() audio.EncodingInfo
	Stream(ctx context.Context, onSamples func(samples []float32)) error
	Close()
}
