package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	"github.com/dropDatabas3/socialgate/internal/oauth/providers"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
)

// TokenSealer cifra los tokens del provider antes de persistirlos.
// *secretbox.Box lo implementa.
type TokenSealer interface {
	Seal(plain string) (string, error)
	Open(sealed string) (string, error)
}

// ConnectionStore gestiona los vínculos usuario <-> (provider, subject).
type ConnectionStore struct {
	users  repository.UserRepository
	conns  repository.ConnectionRepository
	sealer TokenSealer // nil: tokens en claro
	now    func() time.Time
}

func NewConnectionStore(users repository.UserRepository, conns repository.ConnectionRepository, sealer TokenSealer) *ConnectionStore {
	return &ConnectionStore{
		users:  users,
		conns:  conns,
		sealer: sealer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// FindByProviderSubject devuelve la conexión del subject o nil si no existe.
func (s *ConnectionStore) FindByProviderSubject(ctx context.Context, provider, providerUserID string) (*repository.Connection, error) {
	c, err := s.conns.GetByProviderSubject(ctx, provider, providerUserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FindUserByEmail devuelve el usuario con ese email (case-insensitive) o nil.
func (s *ConnectionStore) FindUserByEmail(ctx context.Context, email string) (*repository.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Upsert crea o refresca la conexión (user, provider) con el snapshot del perfil,
// los tokens cacheados y last_used_at. La unicidad la resuelve el storage; ante un
// conflicto se re-lee por subject y se reintenta una vez antes de ErrConnectionConflict.
func (s *ConnectionStore) Upsert(ctx context.Context, userID, provider string, info *providers.UserInfo, tok *providers.TokenSet) (*repository.Connection, error) {
	in, err := s.buildInput(userID, provider, info, tok)
	if err != nil {
		return nil, err
	}

	c, err := s.conns.Upsert(ctx, in)
	if err == nil {
		return c, nil
	}
	if !repository.IsConflict(err) {
		return nil, err
	}

	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("social.connections"))
	log.Info("connection upsert conflict, retrying once", logger.Provider(provider), logger.UserID(userID))

	// Otra request pudo haber creado la fila del mismo subject para este usuario
	// (pestañas duplicadas); si pertenece a otro usuario no hay reintento posible.
	existing, ferr := s.FindByProviderSubject(ctx, provider, info.ProviderUserID)
	if ferr != nil {
		return nil, ferr
	}
	if existing != nil && existing.UserID != userID {
		return nil, fmt.Errorf("%w: %s subject linked to another user", ErrConnectionConflict, provider)
	}
	c, err = s.conns.Upsert(ctx, in)
	if err != nil {
		if repository.IsConflict(err) {
			return nil, fmt.Errorf("%w: %v", ErrConnectionConflict, err)
		}
		return nil, err
	}
	return c, nil
}

func (s *ConnectionStore) buildInput(userID, provider string, info *providers.UserInfo, tok *providers.TokenSet) (repository.UpsertConnectionInput, error) {
	in := repository.UpsertConnectionInput{
		UserID:         userID,
		Provider:       provider,
		ProviderUserID: info.ProviderUserID,
		ProviderEmail:  strings.ToLower(strings.TrimSpace(info.Email)),
		ProviderName:   info.Name,
		UsedAt:         s.now(),
	}
	if tok == nil {
		return in, nil
	}
	at, rt := tok.AccessToken, tok.RefreshToken
	if s.sealer != nil {
		var err error
		if at, err = s.sealer.Seal(at); err != nil {
			return in, fmt.Errorf("seal access token: %w", err)
		}
		if rt, err = s.sealer.Seal(rt); err != nil {
			return in, fmt.Errorf("seal refresh token: %w", err)
		}
	}
	in.AccessToken, in.RefreshToken = at, rt
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		in.TokenExpiresAt = &exp
	}
	return in, nil
}

// ListForUser lista las conexiones del usuario.
func (s *ConnectionStore) ListForUser(ctx context.Context, userID string) ([]repository.Connection, error) {
	return s.conns.ListByUser(ctx, userID)
}

// Delete desvincula el provider. Un usuario sin password no puede quedarse sin
// ninguna conexión: sería una cuenta sin forma de login.
func (s *ConnectionStore) Delete(ctx context.Context, userID, provider string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrConnectionNotFound
		}
		return err
	}
	list, err := s.conns.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	found := false
	for _, c := range list {
		if c.Provider == provider {
			found = true
			break
		}
	}
	if !found {
		return ErrConnectionNotFound
	}
	if !u.HasPassword() && len(list) <= 1 {
		return ErrLastLoginMethod
	}
	if err := s.conns.Delete(ctx, userID, provider); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrConnectionNotFound
		}
		return err
	}
	return nil
}

// OpenTokens devuelve los tokens cacheados en claro.
func (s *ConnectionStore) OpenTokens(c *repository.Connection) (access, refresh string, err error) {
	if s.sealer == nil {
		return c.AccessToken, c.RefreshToken, nil
	}
	if access, err = s.sealer.Open(c.AccessToken); err != nil {
		return "", "", err
	}
	if refresh, err = s.sealer.Open(c.RefreshToken); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}
