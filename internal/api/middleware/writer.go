package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// statusWriter records the status code and body size a handler wrote.
// Logging, tracing and metrics each wrap the writer with one.
type statusWriter struct {
	http.ResponseWriter
	status      int
	written     int64
	wroteHeader bool
}

func wrapWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	n, err := sw.ResponseWriter.Write(b)
	sw.written += int64(n)
	return n, err
}

// Flush forwards to the underlying writer so event streams are not buffered.
func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// failed reports whether the response was a client or server error.
func (sw *statusWriter) failed() bool {
	return sw.status >= http.StatusBadRequest
}

// routePattern returns the chi route pattern matched for r. It is only
// complete after the router has served r.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}

// routeOrUnmatched returns the route pattern, or "unmatched" for requests
// no route handled. Raw paths carry journey ids and are never used as labels.
func routeOrUnmatched(r *http.Request) string {
	if pattern := routePattern(r); pattern != "" {
		return pattern
	}
	return "unmatched"
}
