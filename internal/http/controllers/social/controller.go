// Package social expone el login social por HTTP.
package social

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	dto "github.com/dropDatabas3/socialgate/internal/http/dto/social"
	httperrors "github.com/dropDatabas3/socialgate/internal/http/errors"
	"github.com/dropDatabas3/socialgate/internal/http/helpers"
	mw "github.com/dropDatabas3/socialgate/internal/http/middlewares"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	socialsvc "github.com/dropDatabas3/socialgate/internal/social"
	"github.com/go-chi/chi/v5"
)

// Service es lo que el controller necesita del orquestador. *socialsvc.Service lo implementa.
type Service interface {
	Initiate(ctx context.Context, provider, redirectURI string) (*socialsvc.InitiateResult, error)
	Callback(ctx context.Context, code, state string) (*socialsvc.CallbackResult, error)
	ListConnections(ctx context.Context, userID string) ([]repository.Connection, error)
	Disconnect(ctx context.Context, userID, provider string) error
	Providers() []string
}

// Controller maneja /auth/oauth/*.
type Controller struct {
	service Service
}

// NewController crea el controller.
func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// Initiate maneja POST /auth/oauth/initiate
func (c *Controller) Initiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SocialController.Initiate"))

	var req dto.InitiateRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	req.Provider = strings.TrimSpace(req.Provider)
	if req.Provider == "" || strings.TrimSpace(req.RedirectURI) == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("provider y redirect_uri son requeridos"))
		return
	}

	res, err := c.service.Initiate(ctx, req.Provider, req.RedirectURI)
	if err != nil {
		appErr := mapError(err)
		log.Warn("initiate failed", logger.Provider(req.Provider), logger.String("code", appErr.Code), logger.Err(err))
		httperrors.WriteError(w, appErr)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.InitiateResponse{
		Provider:         res.Provider,
		AuthorizationURL: res.AuthorizationURL,
		State:            res.State,
	})
}

// Callback maneja POST /auth/oauth/callback
func (c *Controller) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SocialController.Callback"))

	var req dto.CallbackRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	res, err := c.service.Callback(ctx, strings.TrimSpace(req.Code), strings.TrimSpace(req.State))
	if err != nil {
		appErr := mapError(err)
		log.Warn("callback failed", logger.String("code", appErr.Code), logger.Err(err))
		httperrors.WriteError(w, appErr)
		return
	}

	var expiresIn int64
	if !res.ExpiresAt.IsZero() {
		expiresIn = int64(time.Until(res.ExpiresAt).Seconds())
	}
	helpers.WriteJSON(w, http.StatusOK, dto.CallbackResponse{
		AccessToken: res.AccessToken,
		TokenType:   res.TokenType,
		ExpiresIn:   expiresIn,
		UserID:      res.UserID,
		Username:    res.Username,
		Email:       res.Email,
		IsNewUser:   res.IsNewUser,
		Provider:    res.Provider,
	})
}

// ListConnections maneja GET /auth/oauth/connections (requiere sesión)
func (c *Controller) ListConnections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := mw.GetUserID(ctx)
	if userID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	list, err := c.service.ListConnections(ctx, userID)
	if err != nil {
		httperrors.WriteError(w, mapError(err))
		return
	}

	out := dto.ConnectionsResponse{Connections: make([]dto.Connection, 0, len(list))}
	for _, conn := range list {
		out.Connections = append(out.Connections, dto.Connection{
			ID:            conn.ID,
			Provider:      conn.Provider,
			ProviderEmail: conn.ProviderEmail,
			ProviderName:  conn.ProviderName,
			ConnectedAt:   conn.CreatedAt,
			LastUsedAt:    conn.LastUsedAt,
		})
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}

// Disconnect maneja DELETE /auth/oauth/connections/{provider} (requiere sesión)
func (c *Controller) Disconnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SocialController.Disconnect"))

	userID := mw.GetUserID(ctx)
	if userID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	provider := strings.TrimSpace(chi.URLParam(r, "provider"))
	if provider == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("provider requerido"))
		return
	}

	if err := c.service.Disconnect(ctx, userID, provider); err != nil {
		appErr := mapError(err)
		log.Info("disconnect refused", logger.Provider(provider), logger.String("code", appErr.Code))
		httperrors.WriteError(w, appErr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Providers maneja GET /auth/oauth/providers
func (c *Controller) Providers(w http.ResponseWriter, r *http.Request) {
	names := c.service.Providers()
	if names == nil {
		names = []string{}
	}
	helpers.WriteJSON(w, http.StatusOK, dto.ProvidersResponse{Providers: names})
}
