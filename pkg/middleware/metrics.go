// Package middleware holds the HTTP middleware shared by the summarizer and
// analytics services: request IDs, panic recovery, Prometheus metrics and
// request timeouts.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/metrics"
)

// knownPaths are labelled verbatim. Anything else is "other" so that
// scanners probing random URLs cannot grow the label set.
var knownPaths = map[string]bool{
	"/api/v1/process":           true,
	"/api/v1/redact":            true,
	"/api/v1/documents":         true,
	"/api/v1/results":           true,
	"/api/v1/cache/stats":       true,
	"/api/v1/cache/invalidate":  true,
	"/api/v1/analytics":         true,
	"/api/v1/analytics/history": true,
	"/health/live":              true,
	"/health/ready":             true,
}

const resultsPrefix = "/api/v1/results/"

// Metrics records request count, latency and in-flight requests. A nil m
// disables it.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)

			path := normalizePath(r.URL.Path)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.code())).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func (s *statusRecorder) code() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

func normalizePath(path string) string {
	if knownPaths[path] {
		return path
	}
	if id, ok := strings.CutPrefix(path, resultsPrefix); ok && id != "" && !strings.Contains(id, "/") {
		return resultsPrefix + "{id}"
	}
	return "other"
}
