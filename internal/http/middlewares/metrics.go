package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/socialgate/internal/metrics"
)

// WithMetrics registra requests, latencia e in-flight por método y ruta.
func WithMetrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			done := metrics.HTTPStart(r.Method, metrics.NormalizePath(r.URL.Path))
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			done(rec.status)
		})
	}
}
