package social

import (
	"context"
	"errors"

	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	httperrors "github.com/dropDatabas3/socialgate/internal/http/errors"
	socialsvc "github.com/dropDatabas3/socialgate/internal/social"
)

// mapError traduce errores del dominio a AppErrors con mensajes genéricos.
// La causa queda en Err para los logs.
func mapError(err error) *httperrors.AppError {
	var appErr *httperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, socialsvc.ErrCsrfStateInvalid), errors.Is(err, socialsvc.ErrCsrfStateExpired):
		return httperrors.ErrInvalidState.WithCause(err)
	case errors.Is(err, socialsvc.ErrProviderNotConfigured):
		return httperrors.ErrProviderNotConfigured.WithCause(err)
	case errors.Is(err, socialsvc.ErrRedirectURINotAllowed):
		return httperrors.ErrInvalidRedirectURI.WithCause(err)
	case errors.Is(err, socialsvc.ErrProviderExchangeFailed):
		return httperrors.ErrProviderExchangeFailed.WithCause(err)
	case errors.Is(err, socialsvc.ErrProviderUserInfoFailed):
		return httperrors.ErrProviderUserInfoFailed.WithCause(err)
	case errors.Is(err, socialsvc.ErrProviderEmailMissing):
		return httperrors.ErrProviderEmailMissing.WithCause(err)
	case errors.Is(err, socialsvc.ErrUsernameGenerationExhausted):
		return httperrors.ErrUsernameGenerationExhausted.WithCause(err)
	case errors.Is(err, socialsvc.ErrConnectionConflict):
		return httperrors.ErrConnectionConflict.WithCause(err)
	case errors.Is(err, socialsvc.ErrEmailNotVerified):
		return httperrors.ErrEmailNotVerified.WithCause(err)
	case errors.Is(err, socialsvc.ErrUserDisabled):
		return httperrors.ErrAccountDisabled.WithCause(err)
	case errors.Is(err, socialsvc.ErrLastLoginMethod):
		return httperrors.ErrLastLoginMethod.WithCause(err)
	case errors.Is(err, socialsvc.ErrConnectionNotFound):
		return httperrors.ErrConnectionNotFound.WithCause(err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, repository.ErrNoDatabase):
		return httperrors.ErrServiceUnavailable.WithCause(err)
	default:
		return httperrors.ErrInternalServerError.WithCause(err)
	}
}
