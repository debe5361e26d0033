// Package observe provides the observability primitives shared by the
// kirbyam commands: OpenTelemetry metrics, tracing helpers, trace-aware
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// installs a Prometheus exporter so they can be scraped from /metrics. A
// package-level [Metrics] instance ([DefaultMetrics]) is provided for
// convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all kirbyam metrics.
const meterName = "github.com/MrWong99/kirbyam"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Generation ---

	// StageDuration tracks the duration of one world build stage. Use with
	// attribute.String("stage", ...).
	StageDuration metric.Float64Histogram

	// EntitiesLoaded counts loaded data rows. Use with
	// attribute.String("kind", ...).
	EntitiesLoaded metric.Int64Counter

	// IDsAllocated counts allocated ids. Use with
	// attribute.String("namespace", ...).
	IDsAllocated metric.Int64Counter

	// IDCollisions counts allocation failures caused by hash collisions.
	IDCollisions metric.Int64Counter

	// WorldsBuilt counts player world builds. Use with
	// attribute.String("status", ...).
	WorldsBuilt metric.Int64Counter

	// PoolPadding counts padding items added to fill pool deficits.
	PoolPadding metric.Int64Counter

	// --- Bridge ---

	// ItemsDelivered counts items written into the game's mailbox.
	ItemsDelivered metric.Int64Counter

	// ChecksSent counts location checks reported to the server.
	ChecksSent metric.Int64Counter

	// ActiveBridges tracks the number of running bridge loops.
	ActiveBridges metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// stageBuckets are histogram boundaries (in seconds) for build stages,
// which finish in well under a second for the shipped data.
var stageBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("kirbyam.build.stage.duration",
		metric.WithDescription("Duration of one world build stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}

	if met.EntitiesLoaded, err = m.Int64Counter("kirbyam.data.entities",
		metric.WithDescription("Total data rows loaded by kind."),
	); err != nil {
		return nil, err
	}
	if met.IDsAllocated, err = m.Int64Counter("kirbyam.ids.allocated",
		metric.WithDescription("Total ids allocated by namespace."),
	); err != nil {
		return nil, err
	}
	if met.IDCollisions, err = m.Int64Counter("kirbyam.ids.collisions",
		metric.WithDescription("Total id allocations rejected because of a hash collision."),
	); err != nil {
		return nil, err
	}
	if met.WorldsBuilt, err = m.Int64Counter("kirbyam.worlds.built",
		metric.WithDescription("Total player world builds by status."),
	); err != nil {
		return nil, err
	}
	if met.PoolPadding, err = m.Int64Counter("kirbyam.pool.padding",
		metric.WithDescription("Total padding items added to item pools."),
	); err != nil {
		return nil, err
	}

	if met.ItemsDelivered, err = m.Int64Counter("kirbyam.bridge.items_delivered",
		metric.WithDescription("Total items written into the game's mailbox."),
	); err != nil {
		return nil, err
	}
	if met.ChecksSent, err = m.Int64Counter("kirbyam.bridge.checks_sent",
		metric.WithDescription("Total location checks reported to the server."),
	); err != nil {
		return nil, err
	}
	if met.ActiveBridges, err = m.Int64UpDownCounter("kirbyam.bridge.active",
		metric.WithDescription("Number of running bridge loops."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("kirbyam.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStage records the duration of one build stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordEntities records n loaded rows of the given kind.
func (m *Metrics) RecordEntities(ctx context.Context, kind string, n int) {
	m.EntitiesLoaded.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordIDs records n ids allocated in namespace.
func (m *Metrics) RecordIDs(ctx context.Context, namespace string, n int) {
	m.IDsAllocated.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String("namespace", namespace)),
	)
}

// RecordWorldBuilt records the outcome of one player world build.
func (m *Metrics) RecordWorldBuilt(ctx context.Context, status string) {
	m.WorldsBuilt.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
