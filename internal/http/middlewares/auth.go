package middlewares

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/socialgate/internal/http/errors"
	jwtx "github.com/dropDatabas3/socialgate/internal/jwt"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
)

// TokenParser valida un JWT de sesión. *jwt.Issuer lo implementa.
type TokenParser interface {
	ParseEdDSA(token string) (map[string]any, error)
}

// RequireAuth valida Authorization: Bearer <JWT> y guarda las claims en el contexto.
// Si el token es inválido o no está presente, responde 401.
func RequireAuth(parser TokenParser) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := strings.TrimSpace(r.Header.Get("Authorization"))
			if len(ah) < len("Bearer ") || !strings.EqualFold(ah[:len("Bearer ")], "bearer ") {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing bearer token"`)
				errors.WriteError(w, errors.ErrTokenMissing)
				return
			}
			raw := strings.TrimSpace(ah[len("Bearer "):])

			claims, err := parser.ParseEdDSA(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				if stderrors.Is(err, jwtx.ErrExpired) {
					errors.WriteError(w, errors.ErrTokenExpired)
					return
				}
				errors.WriteError(w, errors.ErrTokenInvalid.WithCause(err))
				return
			}

			sub := ClaimString(claims, "sub")
			if sub == "" {
				errors.WriteError(w, errors.ErrTokenInvalid.WithDetail("missing sub"))
				return
			}
			ctx := WithUserID(WithClaims(r.Context(), claims), sub)
			ctx = logger.Enrich(ctx, logger.UserID(sub))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
