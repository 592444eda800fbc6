package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/tripwise/tripwise/internal/api/middleware"

// Metrics holds the HTTP server instruments.
type Metrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	inFlight metric.Int64UpDownCounter
	size     metric.Int64Histogram
}

// NewMetrics creates the HTTP server instruments on the global meter.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	var m Metrics
	var errs [4]error
	m.duration, errs[0] = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"),
		metric.WithUnit("s"))
	m.requests, errs[1] = meter.Int64Counter("http.server.request.total",
		metric.WithDescription("HTTP server requests served"),
		metric.WithUnit("{request}"))
	m.inFlight, errs[2] = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("HTTP requests being served, including open event streams"),
		metric.WithUnit("{request}"))
	m.size, errs[3] = meter.Int64Histogram("http.server.response.body.size",
		metric.WithDescription("Size of HTTP response bodies"),
		metric.WithUnit("By"))
	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return &m, nil
}

// Middleware records one measurement per request, labelled by method,
// route pattern and status. Open event streams count as active requests
// until the client disconnects.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			method := metric.WithAttributes(attribute.String("http.request.method", r.Method))

			m.inFlight.Add(r.Context(), 1, method)
			defer m.inFlight.Add(r.Context(), -1, method)

			wrapped := wrapWriter(w)
			next.ServeHTTP(wrapped, r)

			attrs := metric.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", routeOrUnmatched(r)),
				attribute.Int("http.response.status_code", wrapped.status),
				attribute.Bool("error", wrapped.failed()),
			)
			m.duration.Record(r.Context(), time.Since(start).Seconds(), attrs)
			m.requests.Add(r.Context(), 1, attrs)
			m.size.Record(r.Context(), wrapped.written, attrs)
		})
	}
}

// SinkMetrics records guarded calls to push and broadcast sinks. It
// satisfies resilience.Recorder.
type SinkMetrics struct {
	duration metric.Float64Histogram
	calls    metric.Int64Counter
}

// NewSinkMetrics creates the sink call instruments.
func NewSinkMetrics() (*SinkMetrics, error) {
	meter := otel.Meter(meterName)

	var m SinkMetrics
	var errs [2]error
	m.duration, errs[0] = meter.Float64Histogram("sink.call.duration",
		metric.WithDescription("Duration of sink calls, including retries"),
		metric.WithUnit("s"))
	m.calls, errs[1] = meter.Int64Counter("sink.call.total",
		metric.WithDescription("Sink calls made"),
		metric.WithUnit("{call}"))
	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordRequest records one guarded sink call.
func (m *SinkMetrics) RecordRequest(sink string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("sink.name", sink),
		attribute.Bool("error", err != nil),
	)
	// Not the caller's context: a call cut short by cancellation still counts.
	ctx := context.Background()
	m.duration.Record(ctx, duration.Seconds(), attrs)
	m.calls.Add(ctx, 1, attrs)
}
