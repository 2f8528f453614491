// Package observe provides application-wide observability primitives for
// echovox: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all echovox metrics.
const meterName = "github.com/echovox/echovox"

// deliveryBuckets defines histogram bucket boundaries (in seconds) sized for
// sink delivery latency — typically sub-second for short spoken sentences.
var deliveryBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// FaultsReceived counts every fault handed to HandleFault, regardless of
	// outcome. Use with attribute.String("kind", ...).
	FaultsReceived metric.Int64Counter

	// UtterancesAdmitted counts utterances Policy admitted.
	UtterancesAdmitted metric.Int64Counter

	// UtterancesDropped counts utterances Policy (or the engine's own
	// always-ignore, humanization and sink-readiness checks) dropped. Use with
	// attribute.String("reason", ...) — one of "disabled", "duplicate",
	// "global_cooldown", "key_cooldown", "ignore_filter", "kind_filter",
	// "allowlist", "always_ignore", "humanize_failed", "sink_not_ready".
	UtterancesDropped metric.Int64Counter

	// SinkDeliveryDuration tracks the latency of a single sink Deliver call,
	// from dispatch to completion callback.
	SinkDeliveryDuration metric.Float64Histogram

	// SinkFailures counts sink completions that reported a non-nil error.
	SinkFailures metric.Int64Counter

	// QueueDepth tracks the number of pending (not in-flight) utterances.
	QueueDepth metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time for the
	// health/readiness/metrics server. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FaultsReceived, err = m.Int64Counter("echovox.faults.received",
		metric.WithDescription("Total faults handed to HandleFault, by kind."),
	); err != nil {
		return nil, err
	}
	if met.UtterancesAdmitted, err = m.Int64Counter("echovox.utterances.admitted",
		metric.WithDescription("Total utterances admitted by policy."),
	); err != nil {
		return nil, err
	}
	if met.UtterancesDropped, err = m.Int64Counter("echovox.utterances.dropped",
		metric.WithDescription("Total utterances dropped, by reason."),
	); err != nil {
		return nil, err
	}
	if met.SinkDeliveryDuration, err = m.Float64Histogram("echovox.sink.delivery.duration",
		metric.WithDescription("Latency of a single sink Deliver call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(deliveryBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SinkFailures, err = m.Int64Counter("echovox.sink.failures",
		metric.WithDescription("Total sink delivery failures."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("echovox.queue.depth",
		metric.WithDescription("Number of utterances currently pending in the queue."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("echovox.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordFaultReceived records a faults-received counter increment.
func (m *Metrics) RecordFaultReceived(ctx context.Context, kind string) {
	m.FaultsReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordAdmitted records an utterance-admitted counter increment.
func (m *Metrics) RecordAdmitted(ctx context.Context) {
	m.UtterancesAdmitted.Add(ctx, 1)
}

// RecordDropped records an utterance-dropped counter increment with reason.
func (m *Metrics) RecordDropped(ctx context.Context, reason string) {
	m.UtterancesDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordSinkDelivery records a sink delivery's duration and, on failure,
// increments SinkFailures.
func (m *Metrics) RecordSinkDelivery(ctx context.Context, seconds float64, err error) {
	m.SinkDeliveryDuration.Record(ctx, seconds)
	if err != nil {
		m.SinkFailures.Add(ctx, 1)
	}
}

// SetQueueDepth adjusts the queue depth gauge by delta (positive or negative).
func (m *Metrics) SetQueueDepth(ctx context.Context, delta int64) {
	m.QueueDepth.Add(ctx, delta)
}
