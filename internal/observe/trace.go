package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the voxway tracer.
const tracerName = "github.com/voxway/voxway"

// StartSpan starts a span on the globally registered TracerProvider. The
// caller must call span.End() when done. Turn execution wraps its ASR, LLM,
// and TTS stages in spans so per-stage latency can be read off one trace.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}
