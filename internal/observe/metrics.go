// Package observe provides the observability primitives for cueline:
// OpenTelemetry metrics, tracing helpers, and HTTP middleware that ties them
// together with structured logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API and scraped via
// the Prometheus handler returned by [InitProvider]. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all cueline metrics.
const meterName = "github.com/MrWong99/cueline"

// Match outcomes recorded on [Metrics.MatchResults].
const (
	OutcomeMatched = "matched"
	OutcomeNoMatch = "no_match"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// The underlying OTel types handle their own synchronisation.
type Metrics struct {
	// STTDuration tracks transcription latency as seen by the proxy. Use with
	// attributes: provider, status.
	STTDuration metric.Float64Histogram

	// MatchDuration tracks the time to score one query against its candidates.
	MatchDuration metric.Float64Histogram

	// MatchScore records the best score (0..100) of every match.
	MatchScore metric.Float64Histogram

	// MatchResults counts matches by outcome (matched / no_match).
	MatchResults metric.Int64Counter

	// ProviderRequests counts STT provider calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts STT provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// ActiveBridges tracks the number of open /ws relays.
	ActiveBridges metric.Int64UpDownCounter

	// UploadBytes records the size of audio accepted by /stt-proxy.
	UploadBytes metric.Int64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...), attribute.Int("status", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Whisper
// round-trips on long takes run into tens of seconds.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// matchBuckets are finer: one match over a full script is sub-millisecond to
// a few milliseconds.
var matchBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

var scoreBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 95, 100}

var sizeBuckets = []float64{
	1 << 10, 16 << 10, 64 << 10, 256 << 10, 1 << 20, 4 << 20, 16 << 20, 64 << 20,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("cueline.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MatchDuration, err = m.Float64Histogram("cueline.match.duration",
		metric.WithDescription("Latency of scoring a transcript against script lines."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(matchBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MatchScore, err = m.Float64Histogram("cueline.match.score",
		metric.WithDescription("Best similarity score per match, 0 to 100."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UploadBytes, err = m.Int64Histogram("cueline.stt.upload.size",
		metric.WithDescription("Size of audio payloads accepted by the STT proxy."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(sizeBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.MatchResults, err = m.Int64Counter("cueline.match.results",
		metric.WithDescription("Total matches by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("cueline.provider.requests",
		metric.WithDescription("Total STT provider requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("cueline.provider.errors",
		metric.WithDescription("Total STT provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveBridges, err = m.Int64UpDownCounter("cueline.ws.bridges",
		metric.WithDescription("Number of open WebSocket relays to the recogniser."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("cueline.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
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

// RecordMatch records one matcher call. It satisfies align.Recorder.
func (m *Metrics) RecordMatch(ctx context.Context, d time.Duration, scorePct float64, matched bool) {
	outcome := OutcomeNoMatch
	if matched {
		outcome = OutcomeMatched
	}
	m.MatchDuration.Record(ctx, d.Seconds())
	m.MatchResults.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if matched {
		m.MatchScore.Record(ctx, scorePct)
	}
}

// RecordTranscription records the latency and outcome of one transcription.
// status is "ok" or an error kind such as "timeout".
func (m *Metrics) RecordTranscription(ctx context.Context, provider, status string, d time.Duration) {
	m.STTDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
	m.RecordProviderRequest(ctx, provider, status)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordUpload records the size of an accepted audio payload.
func (m *Metrics) RecordUpload(ctx context.Context, source string, n int) {
	m.UploadBytes.Record(ctx, int64(n), metric.WithAttributes(attribute.String("source", source)))
}

// BridgeOpened increments the open-bridge gauge and returns a func that
// decrements it.
func (m *Metrics) BridgeOpened(ctx context.Context) (closed func()) {
	m.ActiveBridges.Add(ctx, 1)
	return func() { m.ActiveBridges.Add(context.WithoutCancel(ctx), -1) }
}
