package repository

import (
	"context"
	"time"
)

// OAuthState is a pending authorization flow. Key is the SHA-256 digest of the
// opaque token handed to the browser; the token itself is never stored.
type OAuthState struct {
	Key         string    `json:"key"`
	Provider    string    `json:"provider"`
	RedirectURI string    `json:"redirect_uri"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether now is past ExpiresAt.
func (s *OAuthState) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// StateRepository persists OAuth states.
type StateRepository interface {
	// Save stores a new state. ttl bounds how long the backend keeps it.
	Save(ctx context.Context, state *OAuthState, ttl time.Duration) error

	// Consume atomically reads and removes the state in a single operation.
	// Only one of any number of concurrent callers gets the state; the rest
	// get ErrNotFound. Expired rows that are still present are returned so the
	// caller can tell expiry apart in its logs.
	Consume(ctx context.Context, key string) (*OAuthState, error)

	// DeleteExpired removes states whose ExpiresAt is before now and returns how many.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
