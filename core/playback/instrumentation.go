package playback

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-live/core/playback"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	scheduledCounter, _   = meter.Int64Counter("playback.buffers.scheduled", metric.WithDescription("Audio buffers placed on the playback timeline"))
	interruptedCounter, _ = meter.Int64Counter("playback.sources.interrupted", metric.WithDescription("Active sources stopped by an interruption"))
)
