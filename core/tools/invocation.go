package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/koscakluka/ema-live/core/realtime"
)

const (
	ShowItineraryName      = "show_itinerary"
	FindAndShowFlightsName = "find_and_show_flights"
)

// Invocation is one tool call with its arguments decoded into the record of
// the tool it names. It is one of [ShowItinerary], [FindAndShowFlights] or
// [UnknownTool].
type Invocation interface {
	Call() realtime.ToolCall
	isInvocation()
}

type ShowItinerary struct {
	call realtime.ToolCall
	Args ShowItineraryArgs
}

func (i ShowItinerary) Call() realtime.ToolCall { return i.call }
func (ShowItinerary) isInvocation()             {}

type FindAndShowFlights struct {
	call realtime.ToolCall
	Args FindAndShowFlightsArgs
}

func (i FindAndShowFlights) Call() realtime.ToolCall { return i.call }
func (FindAndShowFlights) isInvocation()             {}

// UnknownTool is a call to a tool this client does not declare. It is
// acknowledged without doing anything.
type UnknownTool struct {
	call realtime.ToolCall
}

func (i UnknownTool) Call() realtime.ToolCall { return i.call }
func (UnknownTool) isInvocation()             {}

// Parse decodes and validates the arguments of call. Arguments of unknown
// tools are not inspected.
func Parse(call realtime.ToolCall) (Invocation, error) {
	switch call.Name {
	case ShowItineraryName:
		var args ShowItineraryArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return nil, err
		}
		if err := args.Validate(); err != nil {
			return nil, err
		}
		return ShowItinerary{call: call, Args: args}, nil

	case FindAndShowFlightsName:
		var args FindAndShowFlightsArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return nil, err
		}
		if err := args.Validate(); err != nil {
			return nil, err
		}
		return FindAndShowFlights{call: call, Args: args}, nil

	default:
		return UnknownTool{call: call}, nil
	}
}

func decodeArgs(raw json.RawMessage, target any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	return nil
}
