package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware provides Prometheus metrics for HTTP requests
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		ActiveConnections.Inc()
		defer ActiveConnections.Dec()

		next.ServeHTTP(wrapped, r)

		// Use the mux route template so path parameters do not
		// explode label cardinality.
		route := mux.CurrentRoute(r)
		endpoint := "unknown"
		if route != nil {
			if template, err := route.GetPathTemplate(); err == nil {
				endpoint = template
			}
		}

		duration := time.Since(start).Seconds()
		statusCode := strconv.Itoa(wrapped.statusCode)

		RequestsTotal.WithLabelValues(r.Method, endpoint, statusCode).Inc()
		RequestDuration.WithLabelValues(r.Method, endpoint).Observe(duration)
	})
}
