package gemini

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-live/core/gemini"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	sentFramesCounter, _ = meter.Int64Counter("gemini.audio.frames_sent", metric.WithDescription("Realtime audio frames written to the socket"))
	receivedCounter, _   = meter.Int64Counter("gemini.messages.received", metric.WithDescription("Server messages read from the socket"))
)
