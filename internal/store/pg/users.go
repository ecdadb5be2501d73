package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type userRepo struct{ pool *pgxpool.Pool }

const userColumns = `id, username, email, password_hash, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	var hash *string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &hash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.PasswordHash = deref(hash)
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, userID string) (*repository.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, repository.ErrNotFound
	}
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, userID))
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	return scanUser(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *userRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`
	var ok bool
	err := r.pool.QueryRow(ctx, query, username).Scan(&ok)
	return ok, err
}

func (r *userRepo) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	const query = `
		INSERT INTO users (id, username, email, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, LOWER($3), $4, TRUE, NOW(), NOW())
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, query,
		uuid.NewString(), in.Username, strings.TrimSpace(in.Email), nullIfEmpty(in.PasswordHash)))
	if err != nil {
		if name, ok := constraintError(err); ok {
			switch name {
			case "users_username_key":
				return nil, repository.ErrUsernameTaken
			case "users_email_lower_key":
				return nil, repository.ErrEmailTaken
			}
			return nil, fmt.Errorf("%w: %s", repository.ErrConflict, name)
		}
		return nil, err
	}
	return u, nil
}

func (r *userRepo) SetActive(ctx context.Context, userID string, active bool) error {
	const query = `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, userID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) SetPasswordHash(ctx context.Context, userID, hash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, userID, nullIfEmpty(hash))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, userID string) error {
	const query = `DELETE FROM users WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
