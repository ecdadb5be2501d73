package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/socialgate/internal/audit"
	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	"github.com/dropDatabas3/socialgate/internal/metrics"
	"github.com/dropDatabas3/socialgate/internal/oauth/providers"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/dropDatabas3/socialgate/internal/validation"
	"go.uber.org/zap"
)

// Etapas del callback, en orden.
const (
	StageStateVerified      = "state_verified"
	StageTokenExchanged     = "token_exchanged"
	StageUserResolved       = "user_resolved"
	StageConnectionUpserted = "connection_upserted"
	StageSessionIssued      = "session_issued"
)

// TokenIssuer emite el token de sesión propio tras un login social.
type TokenIssuer interface {
	IssueSessionToken(ctx context.Context, u *repository.User) (string, time.Time, error)
}

// ProviderSource resuelve adapters por nombre. *providers.Registry lo implementa.
type ProviderSource interface {
	Get(name string) (providers.Adapter, error)
	Configured() []string
}

// Deps contiene las dependencias del Service.
type Deps struct {
	Providers   ProviderSource
	States      *StateStore
	Connections *ConnectionStore
	Provisioner *Provisioner
	Users       repository.UserRepository
	Issuer      TokenIssuer

	// AllowedRedirectURIs vacío acepta cualquier URL http(s) absoluta.
	AllowedRedirectURIs []string
	// LinkRequiresVerifiedEmail rechaza vincular una cuenta existente por email
	// si el provider no verificó ese email.
	LinkRequiresVerifiedEmail bool
}

// Service orquesta initiate/callback y la gestión de conexiones.
type Service struct {
	deps    Deps
	allowed map[string]struct{}
}

// NewService valida las dependencias obligatorias.
func NewService(d Deps) (*Service, error) {
	switch {
	case d.Providers == nil:
		return nil, errors.New("social: providers required")
	case d.States == nil:
		return nil, errors.New("social: state store required")
	case d.Connections == nil:
		return nil, errors.New("social: connection store required")
	case d.Provisioner == nil:
		return nil, errors.New("social: provisioner required")
	case d.Users == nil:
		return nil, errors.New("social: user repository required")
	case d.Issuer == nil:
		return nil, errors.New("social: token issuer required")
	}
	s := &Service{deps: d, allowed: make(map[string]struct{}, len(d.AllowedRedirectURIs))}
	for _, u := range d.AllowedRedirectURIs {
		if u = strings.TrimSpace(u); u != "" {
			s.allowed[u] = struct{}{}
		}
	}
	return s, nil
}

// InitiateResult es la respuesta de Initiate.
type InitiateResult struct {
	Provider         string
	AuthorizationURL string
	State            string
	ExpiresAt        time.Time
}

// CallbackResult es la respuesta de un callback exitoso.
type CallbackResult struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	UserID      string
	Username    string
	Email       string
	IsNewUser   bool
	Provider    string
}

// Providers lista los providers utilizables.
func (s *Service) Providers() []string {
	return s.deps.Providers.Configured()
}

func (s *Service) adapter(provider string) (providers.Adapter, error) {
	a, err := s.deps.Providers.Get(provider)
	if err != nil {
		// Desconocido o sin credenciales: mismo error hacia el cliente.
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, provider)
	}
	return a, nil
}

// Initiate emite un state y arma la URL de autorización del vendor.
func (s *Service) Initiate(ctx context.Context, provider, redirectURI string) (*InitiateResult, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	redirectURI = strings.TrimSpace(redirectURI)
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("social.initiate"), logger.Provider(provider))

	a, err := s.adapter(provider)
	if err != nil {
		log.Debug("provider not available", logger.Err(err))
		return nil, err
	}
	if err := s.checkRedirect(redirectURI); err != nil {
		log.Debug("redirect_uri rejected", logger.String("redirect_uri", redirectURI))
		return nil, err
	}

	state, expiresAt, err := s.deps.States.Generate(ctx, provider, redirectURI)
	if err != nil {
		log.Error("state generation failed", logger.Err(err))
		return nil, err
	}
	log.Debug("state issued", zap.Time("expires_at", expiresAt))

	return &InitiateResult{
		Provider:         provider,
		AuthorizationURL: a.AuthCodeURL(state, redirectURI),
		State:            state,
		ExpiresAt:        expiresAt,
	}, nil
}

// Callback completa el flujo: state -> tokens -> usuario -> conexión -> sesión.
// El state queda consumido aunque un paso posterior falle; el cliente debe
// volver a llamar a Initiate.
func (s *Service) Callback(ctx context.Context, code, state string) (*CallbackResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("social.callback"))

	// 1) state
	st, err := s.deps.States.VerifyAndConsume(ctx, state)
	if err != nil {
		s.stageFailed(log, "unknown", StageStateVerified, err)
		return nil, err
	}
	provider := st.Provider
	log = log.With(logger.Provider(provider))
	s.stageDone(log, provider, StageStateVerified)

	a, err := s.adapter(provider)
	if err != nil {
		s.stageFailed(log, provider, StageTokenExchanged, err)
		return nil, err
	}
	if err := s.checkRedirect(st.RedirectURI); err != nil {
		s.stageFailed(log, provider, StageTokenExchanged, err)
		return nil, err
	}

	// 2) code -> tokens, 3) userinfo
	start := time.Now()
	tok, err := a.Exchange(ctx, code, st.RedirectURI)
	metrics.ObserveProvider(provider, "exchange", time.Since(start), err)
	if err != nil {
		s.stageFailed(log, provider, StageTokenExchanged, err)
		return nil, err
	}
	s.stageDone(log, provider, StageTokenExchanged)

	start = time.Now()
	info, err := a.UserInfo(ctx, tok)
	metrics.ObserveProvider(provider, "userinfo", time.Since(start), err)
	if err != nil {
		s.stageFailed(log, provider, StageUserResolved, err)
		return nil, err
	}

	// 4) resolve
	user, how, err := s.resolveUser(ctx, provider, info)
	if err != nil {
		s.stageFailed(log, provider, StageUserResolved, err)
		return nil, err
	}
	isNew := how == resolvedProvisioned
	log = log.With(logger.UserID(user.ID))
	s.stageDone(log, provider, StageUserResolved, logger.Bool("is_new_user", isNew))

	// 5) connection
	if _, err := s.deps.Connections.Upsert(ctx, user.ID, provider, info, tok); err != nil {
		s.stageFailed(log, provider, StageConnectionUpserted, err)
		return nil, err
	}
	s.stageDone(log, provider, StageConnectionUpserted)
	if how == resolvedByEmail {
		log.Info("provider linked to existing account", logger.EmailMasked(info.Email))
		audit.Log(ctx, audit.EventProviderLinked, logger.UserID(user.ID), logger.Provider(provider))
	}

	// 6) session
	access, exp, err := s.deps.Issuer.IssueSessionToken(ctx, user)
	if err != nil {
		s.stageFailed(log, provider, StageSessionIssued, err)
		return nil, fmt.Errorf("issue session: %w", err)
	}
	s.stageDone(log, provider, StageSessionIssued)

	log.Info("social login completed", logger.Username(user.Username), logger.Bool("is_new_user", isNew))
	audit.Log(ctx, audit.EventSocialLogin, logger.UserID(user.ID), logger.Provider(provider), logger.Bool("is_new_user", isNew))
	return &CallbackResult{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresAt:   exp,
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		IsNewUser:   isNew,
		Provider:    provider,
	}, nil
}

// resolution indica por qué camino se resolvió el usuario del callback.
type resolution int

const (
	resolvedByConnection resolution = iota
	resolvedByEmail
	resolvedProvisioned
)

// resolveUser: conexión existente -> usuario por email (linking) -> alta JIT.
// El vínculo por email recién se audita cuando la conexión queda persistida.
func (s *Service) resolveUser(ctx context.Context, provider string, info *providers.UserInfo) (*repository.User, resolution, error) {
	conn, err := s.deps.Connections.FindByProviderSubject(ctx, provider, info.ProviderUserID)
	if err != nil {
		return nil, 0, fmt.Errorf("find connection: %w", err)
	}
	if conn != nil {
		u, err := s.deps.Users.GetByID(ctx, conn.UserID)
		if err != nil {
			return nil, 0, fmt.Errorf("load user: %w", err)
		}
		return u, resolvedByConnection, s.active(ctx, u)
	}

	if strings.TrimSpace(info.Email) == "" {
		return nil, 0, ErrProviderEmailMissing
	}

	u, err := s.linkByEmail(ctx, info)
	if err != nil {
		return nil, 0, err
	}
	if u != nil {
		return u, resolvedByEmail, s.active(ctx, u)
	}

	u, err = s.deps.Provisioner.CreateUserFromOAuth(ctx, info)
	if errors.Is(err, repository.ErrEmailTaken) {
		// Otro callback creó la cuenta con este email entre el lookup y el insert.
		u, err = s.linkByEmail(ctx, info)
		if err == nil && u == nil {
			err = fmt.Errorf("%w: email vanished after conflict", ErrConnectionConflict)
		}
		if err != nil {
			return nil, 0, err
		}
		return u, resolvedByEmail, s.active(ctx, u)
	}
	if err != nil {
		return nil, 0, err
	}
	audit.Log(ctx, audit.EventUserProvisioned, logger.UserID(u.ID), logger.Username(u.Username), logger.Provider(provider))
	return u, resolvedProvisioned, s.active(ctx, u)
}

func (s *Service) linkByEmail(ctx context.Context, info *providers.UserInfo) (*repository.User, error) {
	u, err := s.deps.Connections.FindUserByEmail(ctx, info.Email)
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	if u != nil && s.deps.LinkRequiresVerifiedEmail && !info.EmailVerified {
		audit.Log(ctx, audit.EventLinkRejected, logger.UserID(u.ID), logger.String("reason", "email_not_verified"))
		return nil, ErrEmailNotVerified
	}
	return u, nil
}

func (s *Service) active(ctx context.Context, u *repository.User) error {
	if !u.IsActive {
		audit.Log(ctx, audit.EventDisabledUserDenied, logger.UserID(u.ID))
		return ErrUserDisabled
	}
	return nil
}

// ListConnections lista los providers vinculados al usuario.
func (s *Service) ListConnections(ctx context.Context, userID string) ([]repository.Connection, error) {
	return s.deps.Connections.ListForUser(ctx, userID)
}

// Disconnect desvincula provider del usuario.
func (s *Service) Disconnect(ctx context.Context, userID, provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if err := s.deps.Connections.Delete(ctx, userID, provider); err != nil {
		return err
	}
	logger.From(ctx).Info("provider disconnected",
		logger.Layer("service"), logger.Component("social.connections"),
		logger.UserID(userID), logger.Provider(provider))
	audit.Log(ctx, audit.EventProviderUnlinked, logger.UserID(userID), logger.Provider(provider))
	return nil
}

// checkRedirect exige URL http(s) absoluta y, si hay allowlist, match exacto.
func (s *Service) checkRedirect(raw string) error {
	if !validation.ValidRedirectURI(raw) {
		return ErrRedirectURINotAllowed
	}
	if len(s.allowed) == 0 {
		return nil
	}
	if _, ok := s.allowed[raw]; !ok {
		return ErrRedirectURINotAllowed
	}
	return nil
}

func (s *Service) stageDone(log *zap.Logger, provider, stage string, fields ...zap.Field) {
	metrics.RecordCallbackStage(provider, stage, nil)
	log.Debug("callback stage", append(fields, logger.Stage(stage))...)
}

func (s *Service) stageFailed(log *zap.Logger, provider, stage string, err error) {
	metrics.RecordCallbackStage(provider, stage, err)
	log.Warn("callback failed", logger.Stage(stage), logger.Err(err))
}
