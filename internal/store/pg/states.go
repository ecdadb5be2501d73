package pg

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type stateRepo struct{ pool *pgxpool.Pool }

// Save ignora ttl: la fila vive hasta Consume o hasta que el sweeper la borre por expires_at.
func (r *stateRepo) Save(ctx context.Context, st *repository.OAuthState, _ time.Duration) error {
	const query = `
		INSERT INTO oauth_states (state_key, provider, redirect_uri, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, st.Key, st.Provider, st.RedirectURI, st.CreatedAt, st.ExpiresAt)
	if _, dup := constraintError(err); dup {
		return repository.ErrConflict
	}
	return err
}

// Consume: DELETE ... RETURNING es atómico; entre callers concurrentes sólo uno ve la fila.
func (r *stateRepo) Consume(ctx context.Context, key string) (*repository.OAuthState, error) {
	const query = `
		DELETE FROM oauth_states WHERE state_key = $1
		RETURNING state_key, provider, redirect_uri, created_at, expires_at
	`
	var st repository.OAuthState
	err := r.pool.QueryRow(ctx, query, key).Scan(&st.Key, &st.Provider, &st.RedirectURI, &st.CreatedAt, &st.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *stateRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	const query = `DELETE FROM oauth_states WHERE expires_at < $1`
	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
