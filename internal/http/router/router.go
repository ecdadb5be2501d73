// Package router arma el árbol de rutas HTTP del servicio.
package router

import (
	"net/http"

	healthctrl "github.com/dropDatabas3/socialgate/internal/http/controllers/health"
	socialctrl "github.com/dropDatabas3/socialgate/internal/http/controllers/social"
	httperrors "github.com/dropDatabas3/socialgate/internal/http/errors"
	mw "github.com/dropDatabas3/socialgate/internal/http/middlewares"
	"github.com/dropDatabas3/socialgate/internal/rate"
	"github.com/go-chi/chi/v5"
)

// Deps contiene las dependencias del router.
type Deps struct {
	Social *socialctrl.Controller
	Health *healthctrl.Controller

	// Auth valida el JWT de sesión en /auth/oauth/connections.
	Auth mw.TokenParser

	// Limiter es opcional; nil desactiva el rate limiting.
	Limiter        rate.Limiter
	InitiatePolicy rate.Policy
	CallbackPolicy rate.Policy

	// Metrics se monta en /metrics si no es nil.
	Metrics http.Handler
	// JWKS devuelve el documento de claves públicas de sesión.
	JWKS func() []byte
}

// New crea el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithMetrics(),
		mw.WithSecurityHeaders(),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// Infra: sin logging por request (muy frecuentes)
	if d.Health != nil {
		r.Get("/healthz", d.Health.Healthz)
		r.Get("/readyz", d.Health.Readyz)
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", mw.Chain(d.Metrics, mw.WithNoStore()))
	}
	if d.JWKS != nil {
		r.Get("/.well-known/jwks.json", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Cache-Control", "public, max-age=300")
			_, _ = w.Write(d.JWKS())
		})
	}

	if d.Social != nil {
		r.Route("/auth/oauth", func(r chi.Router) {
			r.Use(mw.WithLogging(), mw.WithNoStore())

			r.Get("/providers", d.Social.Providers)
			r.With(mw.WithRateLimit(mw.RateLimitConfig{Limiter: d.Limiter, Policy: d.InitiatePolicy})).
				Post("/initiate", d.Social.Initiate)
			r.With(mw.WithRateLimit(mw.RateLimitConfig{Limiter: d.Limiter, Policy: d.CallbackPolicy})).
				Post("/callback", d.Social.Callback)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireAuth(d.Auth))
				r.Get("/connections", d.Social.ListConnections)
				r.Delete("/connections/{provider}", d.Social.Disconnect)
			})
		})
	}

	return r
}
