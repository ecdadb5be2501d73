// Package memory implementa los repositorios de usuarios y conexiones en proceso.
//
// Apto sólo para una instancia: los índices únicos viven en este proceso.
// Cada escritura valida y muta bajo el mismo lock, igual que un unique index.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	"github.com/google/uuid"
)

// Store guarda usuarios y conexiones con las mismas restricciones que el esquema SQL.
type Store struct {
	mu sync.RWMutex

	users      map[string]*repository.User // id -> user
	byUsername map[string]string           // username -> id
	byEmail    map[string]string           // lower(email) -> id

	conns        map[string]*repository.Connection // id -> conn
	byUserProv   map[string]string                 // user_id|provider -> id
	bySubjectKey map[string]string                 // provider|provider_user_id -> id

	now func() time.Time
}

// New crea un Store vacío.
func New() *Store {
	return &Store{
		users:        make(map[string]*repository.User),
		byUsername:   make(map[string]string),
		byEmail:      make(map[string]string),
		conns:        make(map[string]*repository.Connection),
		byUserProv:   make(map[string]string),
		bySubjectKey: make(map[string]string),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Users devuelve el repositorio de usuarios.
func (s *Store) Users() repository.UserRepository { return (*userRepo)(s) }

// Connections devuelve el repositorio de conexiones.
func (s *Store) Connections() repository.ConnectionRepository { return (*connRepo)(s) }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

func pair(a, b string) string { return a + "|" + b }

// ─── Users ───

type userRepo Store

func (r *userRepo) GetByID(_ context.Context, userID string) (*repository.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r.users[id]
	return &cp, nil
}

func (r *userRepo) UsernameExists(_ context.Context, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUsername[username]
	return ok, nil
}

func (r *userRepo) Create(_ context.Context, in repository.CreateUserInput) (*repository.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUsername[in.Username]; ok {
		return nil, repository.ErrUsernameTaken
	}
	if _, ok := r.byEmail[email]; ok && email != "" {
		return nil, repository.ErrEmailTaken
	}
	now := r.now()
	u := &repository.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        email,
		PasswordHash: in.PasswordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.users[u.ID] = u
	r.byUsername[u.Username] = u.ID
	if email != "" {
		r.byEmail[email] = u.ID
	}
	cp := *u
	return &cp, nil
}

func (r *userRepo) SetActive(_ context.Context, userID string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsActive = active
	u.UpdatedAt = r.now()
	return nil
}

func (r *userRepo) SetPasswordHash(_ context.Context, userID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = r.now()
	return nil
}

// Delete borra el usuario y en cascada sus conexiones (ON DELETE CASCADE).
func (r *userRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.users, userID)
	delete(r.byUsername, u.Username)
	delete(r.byEmail, u.Email)
	for id, c := range r.conns {
		if c.UserID == userID {
			(*Store)(r).dropConn(id, c)
		}
	}
	return nil
}

// ─── Connections ───

type connRepo Store

func (r *connRepo) GetByProviderSubject(_ context.Context, provider, providerUserID string) (*repository.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.bySubjectKey[pair(provider, providerUserID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r.conns[id]
	return &cp, nil
}

// Upsert replica INSERT ... ON CONFLICT (user_id, provider) DO UPDATE.
func (r *connRepo) Upsert(_ context.Context, in repository.UpsertConnectionInput) (*repository.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[in.UserID]; !ok {
		// foreign key
		return nil, repository.ErrNotFound
	}
	subjectKey := pair(in.Provider, in.ProviderUserID)
	if id, ok := r.bySubjectKey[subjectKey]; ok && r.conns[id].UserID != in.UserID {
		return nil, repository.ErrConnectionTaken
	}

	usedAt := in.UsedAt
	if usedAt.IsZero() {
		usedAt = r.now()
	}

	if id, ok := r.byUserProv[pair(in.UserID, in.Provider)]; ok {
		c := r.conns[id]
		if c.ProviderUserID != in.ProviderUserID {
			delete(r.bySubjectKey, pair(c.Provider, c.ProviderUserID))
			r.bySubjectKey[subjectKey] = id
		}
		c.ProviderUserID = in.ProviderUserID
		c.ProviderEmail = in.ProviderEmail
		c.ProviderName = in.ProviderName
		c.AccessToken = in.AccessToken
		c.RefreshToken = in.RefreshToken
		c.TokenExpiresAt = in.TokenExpiresAt
		c.UpdatedAt = r.now()
		c.LastUsedAt = usedAt
		cp := *c
		return &cp, nil
	}

	now := r.now()
	c := &repository.Connection{
		ID:             uuid.NewString(),
		UserID:         in.UserID,
		Provider:       in.Provider,
		ProviderUserID: in.ProviderUserID,
		ProviderEmail:  in.ProviderEmail,
		ProviderName:   in.ProviderName,
		AccessToken:    in.AccessToken,
		RefreshToken:   in.RefreshToken,
		TokenExpiresAt: in.TokenExpiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastUsedAt:     usedAt,
	}
	r.conns[c.ID] = c
	r.byUserProv[pair(c.UserID, c.Provider)] = c.ID
	r.bySubjectKey[subjectKey] = c.ID
	cp := *c
	return &cp, nil
}

func (r *connRepo) ListByUser(_ context.Context, userID string) ([]repository.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]repository.Connection, 0, 4)
	for _, c := range r.conns {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Provider < out[j].Provider
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *connRepo) Delete(_ context.Context, userID, provider string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byUserProv[pair(userID, provider)]
	if !ok {
		return repository.ErrNotFound
	}
	(*Store)(r).dropConn(id, r.conns[id])
	return nil
}

// dropConn requiere mu tomado.
func (s *Store) dropConn(id string, c *repository.Connection) {
	delete(s.conns, id)
	delete(s.byUserProv, pair(c.UserID, c.Provider))
	delete(s.bySubjectKey, pair(c.Provider, c.ProviderUserID))
}
