package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/tripwise/tripwise/internal/api/middleware"
)

// setupTestMeter installs a meter provider backed by a manual reader.
func setupTestMeter(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader
}

// sumPoints returns the data points of the named Int64 sum.
func sumPoints(t *testing.T, reader *sdkmetric.ManualReader, name string) []metricdata.DataPoint[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			return sum.DataPoints
		}
	}
	return nil
}

func pointAttr(dp metricdata.DataPoint[int64], key attribute.Key) attribute.Value {
	v, _ := dp.Attributes.Value(key)
	return v
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	reader := setupTestMeter(t)
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Get("/v1/journey/{journeyId}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})

	for _, id := range []string{"jny_1", "jny_2", "jny_3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/journey/"+id, http.NoBody))
	}

	points := sumPoints(t, reader, "http.server.request.total")
	require.Len(t, points, 1)
	assert.Equal(t, int64(3), points[0].Value)
	assert.Equal(t, "/v1/journey/{journeyId}", pointAttr(points[0], "http.route").AsString())
	assert.Equal(t, int64(http.StatusOK), pointAttr(points[0], "http.response.status_code").AsInt64())
	assert.False(t, pointAttr(points[0], "error").AsBool())
}

func TestMetrics_MarksFailedRequests(t *testing.T) {
	reader := setupTestMeter(t)
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	h := metrics.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/journey/jny_1/start", http.NoBody))

	assert.Equal(t, http.StatusConflict, rec.Code)
	points := sumPoints(t, reader, "http.server.request.total")
	require.Len(t, points, 1)
	assert.True(t, pointAttr(points[0], "error").AsBool())
	assert.Equal(t, "unmatched", pointAttr(points[0], "http.route").AsString())
}

func TestMetrics_ActiveRequestsSettle(t *testing.T) {
	reader := setupTestMeter(t)
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	var during int64
	h := metrics.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if points := sumPoints(t, reader, "http.server.active_requests"); len(points) == 1 {
			during = points[0].Value
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/journey/jny_1/events", http.NoBody))

	assert.Equal(t, int64(1), during)
	points := sumPoints(t, reader, "http.server.active_requests")
	require.Len(t, points, 1)
	assert.Zero(t, points[0].Value)
}

func TestSinkMetrics_RecordRequest(t *testing.T) {
	reader := setupTestMeter(t)
	sm, err := middleware.NewSinkMetrics()
	require.NoError(t, err)

	sm.RecordRequest("fcm", 40*time.Millisecond, nil)
	sm.RecordRequest("fcm", time.Second, errors.New("unavailable"))
	sm.RecordRequest("nats", time.Millisecond, nil)

	byKey := map[string]int64{}
	for _, dp := range sumPoints(t, reader, "sink.call.total") {
		key := pointAttr(dp, "sink.name").AsString()
		if pointAttr(dp, "error").AsBool() {
			key += "/error"
		}
		byKey[key] = dp.Value
	}
	assert.Equal(t, map[string]int64{"fcm": 1, "fcm/error": 1, "nats": 1}, byKey)
}
