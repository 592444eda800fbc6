package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tripwise/tripwise/internal/api/middleware"
)

// serveLogged runs h behind Logger and returns the decoded log line.
func serveLogged(t *testing.T, wrap func(http.Handler) http.Handler, h http.HandlerFunc, req *http.Request) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	handler := middleware.Logger(zerolog.New(&buf))(h)
	if wrap != nil {
		handler = wrap(handler)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_LogsRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/v1/journey/jny_1/location", http.NoBody)
	req.Header.Set("User-Agent", "tripwise-android/3.1")

	entry := serveLogged(t, nil, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}, req)

	assert.Equal(t, "request completed", entry["message"])
	assert.Equal(t, "PUT", entry["method"])
	assert.Equal(t, "/v1/journey/jny_1/location", entry["path"])
	assert.Equal(t, "unmatched", entry["route"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(len(`{"ok":true}`)), entry["bytes"])
	assert.Equal(t, "tripwise-android/3.1", entry["user_agent"])
	assert.Contains(t, entry, "duration")
}

func TestLogger_RecordsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(middleware.Logger(zerolog.New(&buf)))
	r.Put("/v1/journey/{journeyId}/location", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/v1/journey/jny_9/location", http.NoBody))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "/v1/journey/{journeyId}/location", entry["route"])
	assert.Equal(t, float64(http.StatusNoContent), entry["status"])
}

func TestLogger_FirstStatusWins(t *testing.T) {
	entry := serveLogged(t, nil, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.WriteHeader(http.StatusInternalServerError)
	}, httptest.NewRequest(http.MethodPost, "/v1/journey", http.NoBody))

	assert.Equal(t, float64(http.StatusAccepted), entry["status"])
	assert.Equal(t, "info", entry["level"])
}

func TestLogger_IncludesRequestID(t *testing.T) {
	entry := serveLogged(t, middleware.RequestID, func(w http.ResponseWriter, _ *http.Request) {},
		httptest.NewRequest(http.MethodGet, "/v1/journey", http.NoBody))

	requestID, ok := entry["request_id"].(string)
	require.True(t, ok)
	assert.Contains(t, requestID, "req_")
}

func TestLogger_IncludesTraceID(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	entry := serveLogged(t, middleware.Tracing("tripwise-api"), func(w http.ResponseWriter, _ *http.Request) {},
		httptest.NewRequest(http.MethodGet, "/v1/journey", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, spans[0].SpanContext().SpanID().String(), entry["span_id"])
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "info"},
		{http.StatusNoContent, "info"},
		{http.StatusNotFound, "warn"},
		{http.StatusConflict, "warn"},
		{http.StatusInternalServerError, "error"},
		{http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			handler := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/journey", http.NoBody))

			var logEntry map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
			assert.Equal(t, tt.level, logEntry["level"])
		})
	}
}

func TestLogger_IncludesAuthenticatedTraveler(t *testing.T) {
	jwtService := testJWTService()
	token, _, err := jwtService.GenerateAccessToken("trv_logged")
	require.NoError(t, err)

	var buf bytes.Buffer
	handler := middleware.Logger(zerolog.New(&buf))(
		middleware.Auth(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})),
	)

	req := httptest.NewRequest(http.MethodGet, "/v1/journey", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "trv_logged", logEntry["traveler_id"])
}

func TestLogger_OmitsTravelerWhenAnonymous(t *testing.T) {
	var buf bytes.Buffer
	handler := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	_, ok := logEntry["traveler_id"]
	assert.False(t, ok)
}
