package live

import (
	"context"

	"github.com/koscakluka/ema-live/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type eventEmitter func(events.Event)

func newCallbackEventEmitter(opts SessionOptions) eventEmitter {
	return func(event events.Event) {
		eventsCounter.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("event.namespace", event.Kind().Namespace()),
		))
		logger.Debug("session event", "kind", string(event.Kind()))

		switch typedEvent := event.(type) {
		case events.TranscriptUpdated:
			if opts.onTranscript != nil {
				opts.onTranscript(typedEvent.Entries)
			}
		case events.ViewPayloadUpdated:
			if opts.onVisualPayload != nil {
				opts.onVisualPayload(typedEvent.Payload)
			}
		case events.ViewModeChanged:
			if opts.onViewMode != nil {
				opts.onViewMode(typedEvent.Mode)
			}
		case events.ViewThinkingChanged:
			if opts.onThinking != nil {
				opts.onThinking(typedEvent.Thinking)
			}
		case events.SessionStateChanged:
			if opts.onStateChanged != nil {
				opts.onStateChanged(parseState(typedEvent.To), typedEvent.Err)
			}
		case events.SessionEnded:
			if opts.onSessionEnded != nil {
				opts.onSessionEnded(typedEvent.Err)
			}
		}

		if opts.onEvent != nil {
			opts.onEvent(event)
		}
	}
}
