package social

import (
	"errors"

	"github.com/dropDatabas3/socialgate/internal/oauth/providers"
)

// Errores del flujo social. Todos se mapean a respuestas 4xx con mensajes genéricos.
var (
	// CSRF state
	ErrCsrfStateInvalid = errors.New("social: state invalid or already used")
	ErrCsrfStateExpired = errors.New("social: state expired")

	// Provider
	ErrProviderNotConfigured  = providers.ErrNotConfigured
	ErrProviderExchangeFailed = providers.ErrExchangeFailed
	ErrProviderUserInfoFailed = providers.ErrUserInfoFailed
	ErrProviderEmailMissing   = errors.New("social: provider did not return an email")
	ErrRedirectURINotAllowed  = errors.New("social: redirect_uri not allowed")

	// Provisioning / linking
	ErrUsernameGenerationExhausted = errors.New("social: could not generate a unique username")
	ErrConnectionConflict          = errors.New("social: connection conflict")
	ErrEmailNotVerified            = errors.New("social: provider email not verified, cannot link existing account")
	ErrUserDisabled                = errors.New("social: user disabled")

	// Connections management
	ErrConnectionNotFound = errors.New("social: connection not found")
	ErrLastLoginMethod    = errors.New("social: cannot remove the last login method")
)
