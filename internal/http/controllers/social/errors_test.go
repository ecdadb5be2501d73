package social

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	httperrors "github.com/dropDatabas3/socialgate/internal/http/errors"
	socialsvc "github.com/dropDatabas3/socialgate/internal/social"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{socialsvc.ErrCsrfStateExpired, "INVALID_STATE", http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", socialsvc.ErrCsrfStateInvalid), "INVALID_STATE", http.StatusBadRequest},
		{socialsvc.ErrProviderNotConfigured, "PROVIDER_NOT_CONFIGURED", http.StatusBadRequest},
		{socialsvc.ErrEmailNotVerified, "EMAIL_NOT_VERIFIED", http.StatusConflict},
		{socialsvc.ErrUserDisabled, "ACCOUNT_DISABLED", http.StatusForbidden},
		{socialsvc.ErrLastLoginMethod, "LAST_LOGIN_METHOD", http.StatusConflict},
		{socialsvc.ErrConnectionNotFound, "CONNECTION_NOT_FOUND", http.StatusNotFound},
		{context.DeadlineExceeded, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable},
		{repository.ErrNoDatabase, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable},
		{errors.New("boom"), "INTERNAL_SERVER_ERROR", http.StatusInternalServerError},
		{httperrors.ErrBadRequest, "BAD_REQUEST", http.StatusBadRequest},
	}
	for _, tc := range cases {
		got := mapError(tc.err)
		assert.Equal(t, tc.code, got.Code, tc.err.Error())
		assert.Equal(t, tc.status, got.HTTPStatus, tc.err.Error())
	}
}
