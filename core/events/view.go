package events

import "github.com/koscakluka/ema-live/core/travel"

const (
	// KindViewThinkingChanged identifies the waiting indicator toggling.
	KindViewThinkingChanged Kind = "view.thinking_changed"
	// KindViewModeChanged identifies a change of the visual panel mode.
	KindViewModeChanged Kind = "view.mode_changed"
	// KindViewPayloadUpdated identifies new content for the visual panel.
	KindViewPayloadUpdated Kind = "view.payload_updated"
)

// ViewThinkingChanged carries the waiting indicator state.
type ViewThinkingChanged struct {
	Base
	Thinking bool
}

// NewViewThinkingChanged creates a view thinking changed event.
func NewViewThinkingChanged(thinking bool) ViewThinkingChanged {
	return ViewThinkingChanged{Base: NewBase(KindViewThinkingChanged), Thinking: thinking}
}

// ViewModeChanged carries the new panel mode.
type ViewModeChanged struct {
	Base
	Mode travel.ViewMode
}

// NewViewModeChanged creates a view mode changed event.
func NewViewModeChanged(mode travel.ViewMode) ViewModeChanged {
	return ViewModeChanged{Base: NewBase(KindViewModeChanged), Mode: mode}
}

// ViewPayloadUpdated carries panel content. Ownership passes to the receiver.
type ViewPayloadUpdated struct {
	Base
	Payload travel.VisualPayload
}

// NewViewPayloadUpdated creates a view payload updated event.
func NewViewPayloadUpdated(payload travel.VisualPayload) ViewPayloadUpdated {
	return ViewPayloadUpdated{Base: NewBase(KindViewPayloadUpdated), Payload: payload}
}
