// Package observe provides application-wide observability primitives for
// vesper: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [Init] bridges
// them to a Prometheus registry scraped on /metrics. A package-level default
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

// meterName is the instrumentation scope name used for all vesper metrics.
const meterName = "github.com/MrWong99/vesper"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// ClassifyDuration tracks end-to-end intent classification latency. Use
	// with attribute.String("path", "remote"|"local").
	ClassifyDuration metric.Float64Histogram

	// LLMDuration tracks classification backend round trips.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks time to first synthesized audio chunk.
	TTSDuration metric.Float64Histogram

	// DispatchDuration tracks orchestrator execution time per intent kind.
	DispatchDuration metric.Float64Histogram

	// --- Counters ---

	// Intents counts classified intents. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("path", ...)
	Intents metric.Int64Counter

	// ClassifyFallbacks counts remote classification failures that fell back
	// to the local rules. Use with attribute.String("reason", ...).
	ClassifyFallbacks metric.Int64Counter

	// DispatchFailures counts handler panics and errors converted into the
	// apology response. Use with attribute.String("kind", ...).
	DispatchFailures metric.Int64Counter

	// RecognitionRestarts counts automatic session restarts. Use with
	// attribute.String("session", ...).
	RecognitionRestarts metric.Int64Counter

	// RecognitionErrors counts recognition error events. Use with attributes:
	//   attribute.String("session", ...), attribute.String("code", ...)
	RecognitionErrors metric.Int64Counter

	// WakeDetections counts wake phrase detections.
	WakeDetections metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveDevices tracks the number of connected gateway devices.
	ActiveDevices metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Recorded by
	// [Middleware] with "method", "route" and "status" attributes.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) tuned for
// interactive voice latencies.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histogram := func(name, desc string) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
	}

	// Histograms.
	if met.ClassifyDuration, err = histogram("vesper.classify.duration",
		"Latency of intent classification."); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = histogram("vesper.llm.duration",
		"Latency of classification backend calls."); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = histogram("vesper.tts.duration",
		"Time to first synthesized audio chunk."); err != nil {
		return nil, err
	}
	if met.DispatchDuration, err = histogram("vesper.dispatch.duration",
		"Latency of intent execution."); err != nil {
		return nil, err
	}

	// Counters.
	if met.Intents, err = m.Int64Counter("vesper.intents",
		metric.WithDescription("Classified intents by kind and classification path."),
	); err != nil {
		return nil, err
	}
	if met.ClassifyFallbacks, err = m.Int64Counter("vesper.classify.fallbacks",
		metric.WithDescription("Remote classification failures answered by local rules."),
	); err != nil {
		return nil, err
	}
	if met.DispatchFailures, err = m.Int64Counter("vesper.dispatch.failures",
		metric.WithDescription("Intent executions that failed and returned the apology."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionRestarts, err = m.Int64Counter("vesper.recognition.restarts",
		metric.WithDescription("Automatic recognition session restarts by session."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionErrors, err = m.Int64Counter("vesper.recognition.errors",
		metric.WithDescription("Recognition error events by session and code."),
	); err != nil {
		return nil, err
	}
	if met.WakeDetections, err = m.Int64Counter("vesper.wake.detections",
		metric.WithDescription("Wake phrase detections."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("vesper.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("vesper.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveDevices, err = m.Int64UpDownCounter("vesper.active_devices",
		metric.WithDescription("Number of connected gateway devices."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("vesper.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordIntent records one classified intent.
func (m *Metrics) RecordIntent(ctx context.Context, kind, path string) {
	m.Intents.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("path", path),
		),
	)
}

// RecordClassifyFallback records a remote classification failure.
func (m *Metrics) RecordClassifyFallback(ctx context.Context, reason string) {
	m.ClassifyFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordDispatchFailure records an execution that ended in the apology.
func (m *Metrics) RecordDispatchFailure(ctx context.Context, kind string) {
	m.DispatchFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordRecognitionRestart records an automatic session restart.
func (m *Metrics) RecordRecognitionRestart(ctx context.Context, session string) {
	m.RecognitionRestarts.Add(ctx, 1, metric.WithAttributes(attribute.String("session", session)))
}

// RecordRecognitionError records a recognition error event.
func (m *Metrics) RecordRecognitionError(ctx context.Context, session, code string) {
	m.RecognitionErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("session", session),
			attribute.String("code", code),
		),
	)
}
