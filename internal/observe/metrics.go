// Package observe holds voicenav's telemetry: OpenTelemetry metric
// instruments, tracing helpers, a trace-aware logger and the HTTP middleware
// that ties them to requests.
//
// Instruments are created from a [metric.MeterProvider]. [InitProvider]
// installs a Prometheus-backed provider globally so /metrics can serve them.
// Tests build their own [Metrics] with [NewMetrics] and a ManualReader.
package observe

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/voicenav"

// Metrics holds every instrument voicenav records. It is safe for
// concurrent use.
type Metrics struct {
	// ResolveDuration is end-to-end utterance resolution latency.
	ResolveDuration metric.Float64Histogram

	// MatchDuration is the latency of one matcher run, by method.
	MatchDuration metric.Float64Histogram

	// MatchScore is the score of accepted matches, by method.
	MatchScore metric.Float64Histogram

	// Resolutions counts resolver outcomes by command, method and status.
	Resolutions metric.Int64Counter

	// Transcripts counts stream transcripts, interim and final.
	Transcripts metric.Int64Counter

	// Announcements counts queued spoken messages by priority.
	Announcements metric.Int64Counter

	// VocabularyBuilds counts phrase-set builds, i.e. cache misses.
	VocabularyBuilds metric.Int64Counter

	// JournalErrors counts journal writes that failed on every backend.
	JournalErrors metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes by backend
	// and target state.
	BreakerTransitions metric.Int64Counter

	// ActiveSessions is the number of open stream sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration is request latency by method and route.
	HTTPRequestDuration metric.Float64Histogram
}

// Matching runs in-process, so latency buckets start at 50µs.
var latencyBuckets = []float64{
	0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.1,
}

// scoreBuckets are dense around the usual thresholds.
var scoreBuckets = []float64{0.5, 0.6, 0.65, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1}

// instruments creates instruments on one meter and keeps the first error of
// each, so NewMetrics can report them together.
type instruments struct {
	m    metric.Meter
	errs []error
}

func (b *instruments) histogram(name, desc, unit string, buckets []float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc)}
	if unit != "" {
		opts = append(opts, metric.WithUnit(unit))
	}
	if buckets != nil {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := b.m.Float64Histogram(name, opts...)
	b.errs = append(b.errs, err)
	return h
}

func (b *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := b.m.Int64Counter(name, metric.WithDescription(desc))
	b.errs = append(b.errs, err)
	return c
}

func (b *instruments) upDown(name, desc string) metric.Int64UpDownCounter {
	c, err := b.m.Int64UpDownCounter(name, metric.WithDescription(desc))
	b.errs = append(b.errs, err)
	return c
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	b := &instruments{m: mp.Meter(meterName)}
	m := &Metrics{
		ResolveDuration: b.histogram("voicenav.resolve.duration",
			"Latency of resolving an utterance to a command.", "s", latencyBuckets),
		MatchDuration: b.histogram("voicenav.match.duration",
			"Latency of a single matcher run.", "s", latencyBuckets),
		MatchScore: b.histogram("voicenav.match.score",
			"Score of accepted matches by method.", "", scoreBuckets),
		Resolutions: b.counter("voicenav.resolutions",
			"Resolver outcomes by command, method and status."),
		Transcripts: b.counter("voicenav.transcripts",
			"Transcripts received on streams."),
		Announcements: b.counter("voicenav.announcements",
			"Spoken feedback messages by priority."),
		VocabularyBuilds: b.counter("voicenav.vocabulary.builds",
			"Phrase-set builds caused by cache misses."),
		JournalErrors: b.counter("voicenav.journal.errors",
			"Journal writes that failed on every backend."),
		BreakerTransitions: b.counter("voicenav.breaker.transitions",
			"Circuit breaker state changes by backend and state."),
		ActiveSessions: b.upDown("voicenav.active_sessions",
			"Open stream sessions."),
		HTTPRequestDuration: b.histogram("voicenav.http.request.duration",
			"HTTP request latency by method and route.", "s", nil),
	}
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide [Metrics] built on the global meter
// provider the first time it is called. Call [InitProvider] first for the
// instruments to reach /metrics.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		if defaultMetrics, err = NewMetrics(otel.GetMeterProvider()); err != nil {
			panic("observe: create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordResolution records a resolver outcome. status is "resolved" or
// "no_match"; command and method are empty for misses.
func (m *Metrics) RecordResolution(ctx context.Context, command, method, status string, seconds float64) {
	m.Resolutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("method", method),
		attribute.String("status", status),
	))
	m.ResolveDuration.Record(ctx, seconds)
}

// RecordMatch records one matcher run and, when it matched, its score.
func (m *Metrics) RecordMatch(ctx context.Context, method string, seconds, score float64, matched bool) {
	attrs := metric.WithAttributes(attribute.String("method", method))
	m.MatchDuration.Record(ctx, seconds, attrs)
	if matched {
		m.MatchScore.Record(ctx, score, attrs)
	}
}

// RecordTranscript records a transcript arriving on a stream.
func (m *Metrics) RecordTranscript(ctx context.Context, final bool) {
	m.Transcripts.Add(ctx, 1, metric.WithAttributes(attribute.Bool("final", final)))
}

// RecordAnnouncement records a queued spoken message.
func (m *Metrics) RecordAnnouncement(ctx context.Context, priority string) {
	m.Announcements.Add(ctx, 1, metric.WithAttributes(attribute.String("priority", priority)))
}

// RecordBreakerTransition records a circuit breaker for backend moving to
// state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, backend, state string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("state", state),
	))
}
