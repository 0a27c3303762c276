package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HTTPRecorder receives per-request measurements.
type HTTPRecorder interface {
	RecordHTTPRequest(method, path string, status int, duration time.Duration)
	IncrementHTTPRequestsInFlight()
	DecrementHTTPRequestsInFlight()
}

// Metrics records request counts, latency and in-flight requests. Paths are
// labelled with the chi route pattern so IDs in URLs do not explode label
// cardinality; unmatched requests are labelled "unmatched".
func Metrics(rec HTTPRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec.IncrementHTTPRequestsInFlight()
			defer rec.DecrementHTTPRequestsInFlight()

			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			path := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					path = p
				}
			}
			rec.RecordHTTPRequest(r.Method, path, ww.status, time.Since(start))
		})
	}
}
