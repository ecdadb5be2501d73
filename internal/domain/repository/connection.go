package repository

import (
	"context"
	"time"
)

// Connection links a local user to a (provider, provider_user_id) pair.
// Unique on (user_id, provider) and on (provider, provider_user_id).
type Connection struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	ProviderEmail  string
	ProviderName   string

	// Cached provider tokens. Stored sealed when a token encryption key is configured.
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *time.Time

	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastUsedAt time.Time
}

// UpsertConnectionInput contiene los datos para crear/actualizar una conexión.
type UpsertConnectionInput struct {
	UserID         string
	Provider       string
	ProviderUserID string
	ProviderEmail  string
	ProviderName   string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *time.Time
	UsedAt         time.Time
}

// ConnectionRepository define operaciones sobre conexiones OAuth.
type ConnectionRepository interface {
	// GetByProviderSubject busca la conexión de un subject del provider.
	// Retorna ErrNotFound si no existe.
	GetByProviderSubject(ctx context.Context, provider, providerUserID string) (*Connection, error)

	// Upsert inserts the row or, when (user_id, provider) already exists, refreshes
	// the subject, profile snapshot, tokens and last_used_at in the same statement.
	// A (provider, provider_user_id) owned by another user yields ErrConnectionTaken.
	Upsert(ctx context.Context, input UpsertConnectionInput) (*Connection, error)

	// ListByUser lista las conexiones de un usuario ordenadas por created_at.
	ListByUser(ctx context.Context, userID string) ([]Connection, error)

	// Delete elimina la conexión (user_id, provider).
	// Retorna ErrNotFound si no existe.
	Delete(ctx context.Context, userID, provider string) error
}
