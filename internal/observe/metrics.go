// Package observe provides application-wide observability primitives for
// Voxhall: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all Voxhall metrics.
const meterName = "github.com/voxhall/voxhall"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Room fabric ---

	// FramesForwarded counts audio frame deliveries on the fan-out path.
	FramesForwarded metric.Int64Counter

	// FramesDropped counts frames discarded before delivery. Use with
	// attribute.String("reason", ...): "queue_full", "stale", "decode".
	FramesDropped metric.Int64Counter

	// DeliveryFailures counts failed per-recipient deliveries. Use with
	// attribute.String("room", ...).
	DeliveryFailures metric.Int64Counter

	// FanoutDuration tracks how long one broadcast takes to enqueue a frame
	// to every recipient.
	FanoutDuration metric.Float64Histogram

	// --- Gauges ---

	// ActiveRooms tracks the number of live rooms.
	ActiveRooms metric.Int64UpDownCounter

	// ActiveParticipants tracks connected participants across all rooms,
	// agents included.
	ActiveParticipants metric.Int64UpDownCounter

	// ActiveAgents tracks the number of live agent loops.
	ActiveAgents metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for realtime audio paths.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.FramesForwarded, err = m.Int64Counter("voxhall.frames.forwarded",
		metric.WithDescription("Total audio frame deliveries on the fan-out path."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("voxhall.frames.dropped",
		metric.WithDescription("Total frames discarded before delivery, by reason."),
	); err != nil {
		return nil, err
	}
	if met.DeliveryFailures, err = m.Int64Counter("voxhall.delivery.failures",
		metric.WithDescription("Total failed per-recipient deliveries."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.FanoutDuration, err = m.Float64Histogram("voxhall.fanout.duration",
		metric.WithDescription("Duration of one frame broadcast across all recipients."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	// Gauges (UpDownCounters).
	if met.ActiveRooms, err = m.Int64UpDownCounter("voxhall.active_rooms",
		metric.WithDescription("Number of live rooms."),
	); err != nil {
		return nil, err
	}
	if met.ActiveParticipants, err = m.Int64UpDownCounter("voxhall.active_participants",
		metric.WithDescription("Number of connected participants across all rooms."),
	); err != nil {
		return nil, err
	}
	if met.ActiveAgents, err = m.Int64UpDownCounter("voxhall.active_agents",
		metric.WithDescription("Number of live agent loops."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxhall.http.request.duration",
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

// RecordDeliveryFailure records one failed delivery in the given room.
func (m *Metrics) RecordDeliveryFailure(ctx context.Context, roomID string) {
	m.DeliveryFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("room", roomID)),
	)
}

// RecordFrameDrop records one discarded frame with the given reason.
func (m *Metrics) RecordFrameDrop(ctx context.Context, reason string) {
	m.FramesDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}
