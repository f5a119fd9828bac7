package live

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-live/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	sessionCounter, _       = meter.Int64Counter("live.sessions", metric.WithDescription("Sessions started, by outcome"))
	framesSentCounter, _    = meter.Int64Counter("live.audio.frames_sent", metric.WithDescription("Microphone frames handed to the endpoint"))
	decodeFailureCounter, _ = meter.Int64Counter("live.audio.decode_failures", metric.WithDescription("Inbound audio payloads dropped as malformed"))
	eventsCounter, _        = meter.Int64Counter("live.events", metric.WithDescription("Session events emitted, by namespace"))
)
