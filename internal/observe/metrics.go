// Package observe provides voxway's observability primitives: OpenTelemetry
// metrics and tracing, with a Prometheus exporter bridge so metrics can be
// scraped from the standard /metrics endpoint.
//
// A package-level default [Metrics] instance is not provided on purpose —
// main wires one Metrics through the server so tests can use [NewMetrics]
// with a private MeterProvider and avoid cross-test pollution.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all voxway metrics.
const meterName = "github.com/voxway/voxway"

// Metrics holds all OpenTelemetry metric instruments for the server. All
// fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// ASRDuration tracks speech recognition latency per drained segment.
	ASRDuration metric.Float64Histogram

	// LLMDuration tracks time from LLM stream start to stream end.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks per-sentence synthesis latency.
	TTSDuration metric.Float64Histogram

	// TurnDuration tracks a full turn: final transcript to final text event.
	TurnDuration metric.Float64Histogram

	// --- Counters ---

	// EventsSent counts server→client events. Attribute: "type".
	EventsSent metric.Int64Counter

	// Interruptions counts barge-in interruptions.
	Interruptions metric.Int64Counter

	// CapabilityErrors counts capability failures after the retry budget.
	// Attribute: "role".
	CapabilityErrors metric.Int64Counter

	// ProtocolErrors counts malformed or out-of-order client frames.
	ProtocolErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// MeterProvider. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ASRDuration, err = m.Float64Histogram("voxway.asr.duration",
		metric.WithDescription("Latency of speech recognition per segment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("voxway.llm.duration",
		metric.WithDescription("Latency of one LLM response stream."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("voxway.tts.duration",
		metric.WithDescription("Latency of per-sentence speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("voxway.turn.duration",
		metric.WithDescription("End-to-end latency of one conversation turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EventsSent, err = m.Int64Counter("voxway.events.sent",
		metric.WithDescription("Server-to-client events sent."),
	); err != nil {
		return nil, err
	}
	if met.Interruptions, err = m.Int64Counter("voxway.interruptions",
		metric.WithDescription("Barge-in interruptions."),
	); err != nil {
		return nil, err
	}
	if met.CapabilityErrors, err = m.Int64Counter("voxway.capability.errors",
		metric.WithDescription("Capability failures after retry budget."),
	); err != nil {
		return nil, err
	}
	if met.ProtocolErrors, err = m.Int64Counter("voxway.protocol.errors",
		metric.WithDescription("Malformed or out-of-order client frames."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxway.sessions.active",
		metric.WithDescription("Live sessions."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// ObserveASR records one recognition call.
func (m *Metrics) ObserveASR(ctx context.Context, d time.Duration, err error) {
	m.ASRDuration.Record(ctx, d.Seconds())
	if err != nil {
		m.CapabilityErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("role", "asr")))
	}
}

// ObserveLLM records one response stream.
func (m *Metrics) ObserveLLM(ctx context.Context, d time.Duration, err error) {
	m.LLMDuration.Record(ctx, d.Seconds())
	if err != nil {
		m.CapabilityErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("role", "llm")))
	}
}

// ObserveTTS records one sentence synthesis.
func (m *Metrics) ObserveTTS(ctx context.Context, d time.Duration, err error) {
	m.TTSDuration.Record(ctx, d.Seconds())
	if err != nil {
		m.CapabilityErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("role", "tts")))
	}
}

// EventSent counts one outbound event by type.
func (m *Metrics) EventSent(ctx context.Context, eventType string) {
	m.EventsSent.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}
