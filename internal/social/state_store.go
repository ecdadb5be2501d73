package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	"github.com/dropDatabas3/socialgate/internal/metrics"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	tokens "github.com/dropDatabas3/socialgate/internal/security/token"
)

// DefaultStateTTL acota la ventana de uso de un state filtrado.
const DefaultStateTTL = 10 * time.Minute

// StateStore emite y consume estados CSRF de un solo uso.
//
// El token que viaja al navegador nunca se persiste: el backend guarda
// sha256(token). VerifyAndConsume es una única operación atómica del backend
// (GETDEL / DELETE ... RETURNING), nunca un read seguido de un delete.
type StateStore struct {
	repo repository.StateRepository
	ttl  time.Duration
	now  func() time.Time
}

// NewStateStore crea el store. ttl <= 0 usa DefaultStateTTL.
func NewStateStore(repo repository.StateRepository, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateStore{repo: repo, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// TTL devuelve la vigencia configurada.
func (s *StateStore) TTL() time.Duration { return s.ttl }

// Generate crea y persiste un state con expiración now+ttl y devuelve el token opaco
// junto con el expires_at guardado.
func (s *StateStore) Generate(ctx context.Context, provider, redirectURI string) (string, time.Time, error) {
	tok, err := tokens.GenerateOpaqueToken(tokens.StateBytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("state: generate token: %w", err)
	}
	now := s.now()
	st := &repository.OAuthState{
		Key:         tokens.SHA256Base64URL(tok),
		Provider:    provider,
		RedirectURI: redirectURI,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	err = s.repo.Save(ctx, st, s.ttl)
	metrics.RecordState("generate", err)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("state: save: %w", err)
	}
	return tok, st.ExpiresAt, nil
}

// VerifyAndConsume valida y consume el state. Éxito exactamente una vez por token:
// desconocido o ya usado => ErrCsrfStateInvalid; vencido => ErrCsrfStateExpired.
// Un state vencido también queda consumido.
func (s *StateStore) VerifyAndConsume(ctx context.Context, token string) (*repository.OAuthState, error) {
	if token == "" {
		metrics.RecordState("consume", ErrCsrfStateInvalid)
		return nil, ErrCsrfStateInvalid
	}
	st, err := s.repo.Consume(ctx, tokens.SHA256Base64URL(token))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		err = ErrCsrfStateInvalid
	case err != nil:
		err = fmt.Errorf("state: consume: %w", err)
	case st.Expired(s.now()):
		err = ErrCsrfStateExpired
	}
	metrics.RecordState("consume", err)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// CleanupExpired borra estados vencidos. Seguro de correr en paralelo con Consume.
func (s *StateStore) CleanupExpired(ctx context.Context) (int, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("state: cleanup: %w", err)
	}
	metrics.RecordStatesSwept(n)
	if n > 0 {
		logger.From(ctx).Debug("expired states removed",
			logger.Layer("service"), logger.Component("social.state"), logger.Count(n))
	}
	return n, nil
}
