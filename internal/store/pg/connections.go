package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type connRepo struct{ pool *pgxpool.Pool }

const connColumns = `id, user_id, provider, provider_user_id, provider_email, provider_name,
	access_token, refresh_token, token_expires_at, created_at, updated_at, last_used_at`

func scanConn(row pgx.Row) (*repository.Connection, error) {
	var c repository.Connection
	var email, name, at, rt *string
	err := row.Scan(&c.ID, &c.UserID, &c.Provider, &c.ProviderUserID, &email, &name,
		&at, &rt, &c.TokenExpiresAt, &c.CreatedAt, &c.UpdatedAt, &c.LastUsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.ProviderEmail, c.ProviderName = deref(email), deref(name)
	c.AccessToken, c.RefreshToken = deref(at), deref(rt)
	return &c, nil
}

func (r *connRepo) GetByProviderSubject(ctx context.Context, provider, providerUserID string) (*repository.Connection, error) {
	const query = `SELECT ` + connColumns + ` FROM oauth_connections WHERE provider = $1 AND provider_user_id = $2`
	return scanConn(r.pool.QueryRow(ctx, query, provider, providerUserID))
}

// Upsert es un único statement: el unique (user_id, provider) resuelve la carrera de
// dos callbacks concurrentes del mismo usuario; el unique (provider, provider_user_id)
// se reporta como ErrConnectionTaken.
func (r *connRepo) Upsert(ctx context.Context, in repository.UpsertConnectionInput) (*repository.Connection, error) {
	const query = `
		INSERT INTO oauth_connections (
			id, user_id, provider, provider_user_id, provider_email, provider_name,
			access_token, refresh_token, token_expires_at, created_at, updated_at, last_used_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW(), $10)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			provider_user_id = EXCLUDED.provider_user_id,
			provider_email   = EXCLUDED.provider_email,
			provider_name    = EXCLUDED.provider_name,
			access_token     = EXCLUDED.access_token,
			refresh_token    = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			updated_at       = NOW(),
			last_used_at     = EXCLUDED.last_used_at
		RETURNING ` + connColumns

	usedAt := in.UsedAt
	if usedAt.IsZero() {
		usedAt = time.Now().UTC()
	}
	c, err := scanConn(r.pool.QueryRow(ctx, query,
		uuid.NewString(), in.UserID, in.Provider, in.ProviderUserID,
		nullIfEmpty(in.ProviderEmail), nullIfEmpty(in.ProviderName),
		nullIfEmpty(in.AccessToken), nullIfEmpty(in.RefreshToken), in.TokenExpiresAt, usedAt,
	))
	if err != nil {
		if name, ok := constraintError(err); ok {
			if name == "oauth_connections_subject_key" {
				return nil, repository.ErrConnectionTaken
			}
			return nil, fmt.Errorf("%w: %s", repository.ErrConflict, name)
		}
		if isForeignKeyViolation(err) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *connRepo) ListByUser(ctx context.Context, userID string) ([]repository.Connection, error) {
	const query = `SELECT ` + connColumns + ` FROM oauth_connections WHERE user_id = $1 ORDER BY created_at, provider`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.Connection
	for rows.Next() {
		c, err := scanConn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *connRepo) Delete(ctx context.Context, userID, provider string) error {
	const query = `DELETE FROM oauth_connections WHERE user_id = $1 AND provider = $2`
	tag, err := r.pool.Exec(ctx, query, userID, provider)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
