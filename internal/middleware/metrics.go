package middleware

import (
	"net/http"
	"time"

	"github.com/sakif/teamterrain/internal/metrics"
)

// Metrics records request count and latency per route pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := wrap(w)

		next.ServeHTTP(wrapped, r)

		metrics.RecordHTTPRequest(r.Method, routePattern(r), wrapped.statusCode, time.Since(start))
	})
}
