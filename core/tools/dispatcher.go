package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/realtime"
	"github.com/koscakluka/ema-live/core/travel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ErrToolExecution wraps any failure of an individual tool invocation.
var ErrToolExecution = errors.New("tool execution failed")

var ErrNoFlightSearcher = errors.New("no flight searcher configured")

const (
	displayedMessage  = "ok, I'm displaying that for you now."
	failureMessage    = "Sorry, I ran into an error trying to find that information."
	unknownToolFormat = "ok, there is nothing to display for %s."
)

type FlightSearcher interface {
	SearchFlights(ctx context.Context, params travel.FlightSearchParams) ([]travel.FlightOffer, error)
}

// View receives the visual side effects of a batch.
type View interface {
	SetThinking(thinking bool)
	SetViewMode(mode travel.ViewMode)
	ShowPayload(payload travel.VisualPayload)
}

// Responder sends the results of a batch back to the endpoint.
type Responder interface {
	SendToolResponse(ctx context.Context, results []realtime.ToolResult) error
}

type BatchState string

const (
	BatchReceived  BatchState = "received"
	BatchExecuting BatchState = "executing"
	BatchCompleted BatchState = "completed"
	BatchFailed    BatchState = "failed"
)

type Batch struct {
	ID        string
	State     BatchState
	Results   []realtime.ToolResult
	Errors    []error
	FinalMode travel.ViewMode
}

type Dispatcher struct {
	flights FlightSearcher
	view    View
	emit    func(events.Event)
}

type DispatcherOption func(*Dispatcher)

func WithFlightSearcher(searcher FlightSearcher) DispatcherOption {
	return func(d *Dispatcher) { d.flights = searcher }
}

func WithView(view View) DispatcherOption {
	return func(d *Dispatcher) {
		if view != nil {
			d.view = view
		}
	}
}

func WithEventCallback(callback func(events.Event)) DispatcherOption {
	return func(d *Dispatcher) {
		if callback != nil {
			d.emit = callback
		}
	}
}

func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{view: noopView{}, emit: func(events.Event) {}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs every call of a batch in order and sends exactly one result
// per call in a single response. A failing call never cancels its
// siblings. The panel ends on the mode of the last call that produced a
// visual, or on previousMode when none did. Results carry the call IDs as
// received, empty ones included.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []realtime.ToolCall, previousMode travel.ViewMode, responder Responder) (Batch, error) {
	ctx, span := tracer.Start(ctx, "dispatch tool batch")
	defer span.End()

	batch := Batch{ID: uuid.NewString(), State: BatchReceived}
	span.SetAttributes(attribute.String("batch.id", batch.ID), attribute.Int("batch.calls", len(calls)))
	d.emit(events.NewToolBatchStateChanged(events.KindToolBatchReceived, batch.ID, len(calls), 0))

	if previousMode == "" || previousMode == travel.ViewModeLoading {
		previousMode = travel.ViewModeSearch
	}

	d.view.SetThinking(true)
	d.view.SetViewMode(travel.ViewModeLoading)

	batch.State = BatchExecuting
	d.emit(events.NewToolBatchStateChanged(events.KindToolBatchExecuting, batch.ID, len(calls), 0))

	finalMode := previousMode
	for _, call := range calls {
		payload, message, err := d.execute(ctx, batch.ID, call)
		if err != nil {
			batch.Errors = append(batch.Errors, err)
			message = failureMessage
		} else if !payload.IsZero() {
			d.view.ShowPayload(payload)
			d.view.SetViewMode(payload.Mode())
			finalMode = payload.Mode()
		}

		batch.Results = append(batch.Results, realtime.ToolResult{ID: call.ID, Name: call.Name, Result: message})
	}

	batch.FinalMode = finalMode
	d.view.SetViewMode(finalMode)

	var sendErr error
	if responder != nil {
		if err := responder.SendToolResponse(ctx, batch.Results); err != nil {
			sendErr = fmt.Errorf("failed to send tool response: %w", err)
			span.RecordError(sendErr)
			span.SetStatus(codes.Error, sendErr.Error())
		}
	}

	d.view.SetThinking(false)

	batch.State = BatchCompleted
	kind := events.KindToolBatchCompleted
	if len(batch.Errors) > 0 {
		batch.State = BatchFailed
		kind = events.KindToolBatchFailed
	}
	d.emit(events.NewToolBatchStateChanged(kind, batch.ID, len(calls), len(batch.Errors)))

	return batch, sendErr
}

func (d *Dispatcher) execute(ctx context.Context, batchID string, call realtime.ToolCall) (travel.VisualPayload, string, error) {
	ctx, span := tracer.Start(ctx, "execute tool", trace.WithAttributes(
		attribute.String("batch.id", batchID),
		attribute.String("tool.name", call.Name),
		attribute.String("tool.id", call.ID),
	))
	defer span.End()

	d.emit(events.NewToolCallStarted(batchID, call.ID, call.Name, string(call.Args)))

	payload, message, err := d.run(ctx, call)
	outcome := "completed"
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrToolExecution, call.Name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("tool call failed", "tool", call.Name, "id", call.ID, "error", err)
		d.emit(events.NewToolCallFailed(batchID, call.ID, call.Name, err.Error()))
		outcome = "failed"
	} else {
		d.emit(events.NewToolCallCompleted(batchID, call.ID, call.Name, message))
	}

	toolCallCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("outcome", outcome),
	))
	return payload, message, err
}

func (d *Dispatcher) run(ctx context.Context, call realtime.ToolCall) (travel.VisualPayload, string, error) {
	invocation, err := Parse(call)
	if err != nil {
		return travel.VisualPayload{}, "", err
	}

	switch invocation := invocation.(type) {
	case ShowItinerary:
		itinerary, err := invocation.Args.Itinerary()
		if err != nil {
			return travel.VisualPayload{}, "", err
		}
		return travel.VisualPayload{Itinerary: itinerary}, displayedMessage, nil

	case FindAndShowFlights:
		if d.flights == nil {
			return travel.VisualPayload{}, "", ErrNoFlightSearcher
		}

		params, err := invocation.Args.SearchParams()
		if err != nil {
			return travel.VisualPayload{}, "", err
		}

		offers, err := d.flights.SearchFlights(ctx, params)
		if err != nil {
			return travel.VisualPayload{}, "", err
		}
		if offers == nil {
			offers = []travel.FlightOffer{}
		}
		return travel.VisualPayload{Flights: offers}, flightsMessage(params, len(offers)), nil

	case UnknownTool:
		logger.Info("acknowledging unknown tool", "tool", call.Name, "id", call.ID)
		return travel.VisualPayload{}, fmt.Sprintf(unknownToolFormat, call.Name), nil
	}

	return travel.VisualPayload{}, "", fmt.Errorf("unhandled invocation %T", invocation)
}

func flightsMessage(params travel.FlightSearchParams, offers int) string {
	if offers == 0 {
		return fmt.Sprintf("I couldn't find any flights from %s to %s for those dates.", params.Origin, params.Destination)
	}
	return fmt.Sprintf("I found some flights from %s to %s. Here they are.", params.Origin, params.Destination)
}

type noopView struct{}

func (noopView) SetThinking(bool)                 {}
func (noopView) SetViewMode(travel.ViewMode)      {}
func (noopView) ShowPayload(travel.VisualPayload) {}
