// Package observe wires the gateway's telemetry: OpenTelemetry metric
// instruments exported through Prometheus, tracing spans around remote
// calls, and logging middleware for the admin HTTP listener.
//
// Production code obtains its [Metrics] from [NewMetrics] on the provider
// returned by [InitProvider]. Tests pass a ManualReader-backed provider so
// that recorded values can be read back; [DefaultMetrics] exists for callers
// that configure neither.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/salutespeech-gateway"

// Turn kinds accepted by [Metrics.RecordTurn].
const (
	KindSTT = "stt"
	KindTTS = "tts"
)

// Metrics is the set of instruments the gateway records into. The OTel
// instruments synchronise internally, so a single value is shared by every
// session.
type Metrics struct {
	// STTDuration and TTSDuration measure the remote call of a turn, in
	// seconds. GateWait measures time spent queued behind another turn.
	STTDuration metric.Float64Histogram
	TTSDuration metric.Float64Histogram
	GateWait    metric.Float64Histogram

	// ProviderRequests carries provider, kind and status ("ok" or "error").
	// ProviderErrors carries provider and kind.
	ProviderRequests metric.Int64Counter
	ProviderErrors   metric.Int64Counter

	// AudioBytes carries direction ("in" or "out").
	AudioBytes metric.Int64Counter

	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration carries method, path and status of admin requests.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds. Cloud recognition of
// a long utterance can take several seconds, hence the wide upper range.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics registers every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	b := builder{meter: mp.Meter(meterName)}
	m := &Metrics{
		STTDuration: b.latency("salutegw.stt.duration", "Latency of speech recognition."),
		TTSDuration: b.latency("salutegw.tts.duration", "Latency of speech synthesis."),
		GateWait:    b.latency("salutegw.gate.wait", "Time a turn spent waiting for the remote call gate."),

		ProviderRequests: b.counter("salutegw.provider.requests", "Provider API requests by provider, kind and status.", ""),
		ProviderErrors:   b.counter("salutegw.provider.errors", "Provider API failures by provider and kind.", ""),
		AudioBytes:       b.counter("salutegw.audio.bytes", "PCM bytes received from and sent to clients.", "By"),

		HTTPRequestDuration: b.histogram("salutegw.http.request.duration", "Admin HTTP request latency.",
			metric.WithUnit("s")),
	}
	if b.err == nil {
		m.ActiveSessions, b.err = b.meter.Int64UpDownCounter("salutegw.active_sessions",
			metric.WithDescription("Open client sessions."))
	}
	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

// builder keeps the first instrument creation error so NewMetrics can fill
// the struct in one literal.
type builder struct {
	meter metric.Meter
	err   error
}

func (b *builder) latency(name, desc string) metric.Float64Histogram {
	return b.histogram(name, desc,
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
}

func (b *builder) histogram(name, desc string, opts ...metric.Float64HistogramOption) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name, append([]metric.Float64HistogramOption{metric.WithDescription(desc)}, opts...)...)
	if b.err == nil {
		b.err = err
	}
	return h
}

func (b *builder) counter(name, desc, unit string) metric.Int64Counter {
	opts := []metric.Int64CounterOption{metric.WithDescription(desc)}
	if unit != "" {
		opts = append(opts, metric.WithUnit(unit))
	}
	c, err := b.meter.Int64Counter(name, opts...)
	if b.err == nil {
		b.err = err
	}
	return c
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide [Metrics] on [otel.GetMeterProvider],
// created on first use.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordTurn records one remote call of a session turn: its latency on the
// histogram for kind, a request count labelled ok or error, and an error
// count when err is non-nil. Unknown kinds only count requests.
func (m *Metrics) RecordTurn(ctx context.Context, provider, kind string, d time.Duration, err error) {
	switch kind {
	case KindSTT:
		m.STTDuration.Record(ctx, d.Seconds())
	case KindTTS:
		m.TTSDuration.Record(ctx, d.Seconds())
	}
	base := []attribute.KeyValue{
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	}
	status := "ok"
	if err != nil {
		status = "error"
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(base...))
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(append(base, attribute.String("status", status))...))
}

// RecordAudio adds n bytes in direction ("in" or "out"). Non-positive n is
// ignored.
func (m *Metrics) RecordAudio(ctx context.Context, direction string, n int) {
	if n <= 0 {
		return
	}
	m.AudioBytes.Add(ctx, int64(n), metric.WithAttributes(attribute.String("direction", direction)))
}
