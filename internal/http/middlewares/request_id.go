package middlewares

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const maxRequestIDLen = 128

// headers aceptados del upstream, en orden de preferencia
var requestIDHeaders = []string{"X-Request-ID", "X-Correlation-ID"}

// WithRequestID propaga el ID del proxy/cliente o genera un UUID.
// IDs con caracteres fuera de [A-Za-z0-9._:-] se descartan: terminan en logs y headers.
func WithRequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := incomingRequestID(r)
			if rid == "" {
				rid = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", rid)
			next.ServeHTTP(w, r.WithContext(setRequestID(r.Context(), rid)))
		})
	}
}

func incomingRequestID(r *http.Request) string {
	for _, h := range requestIDHeaders {
		rid := strings.TrimSpace(r.Header.Get(h))
		if rid != "" && len(rid) <= maxRequestIDLen && safeRequestID(rid) {
			return rid
		}
	}
	return ""
}

func safeRequestID(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == ':', c == '-':
		default:
			return false
		}
	}
	return true
}
