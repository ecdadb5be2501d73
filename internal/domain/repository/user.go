package repository

import (
	"context"
	"time"
)

// User is the local account a social login resolves to.
// PasswordHash is empty for OAuth-only accounts.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account can log in without a provider.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != ""
}

// CreateUserInput contiene los datos para crear un usuario.
type CreateUserInput struct {
	Username     string
	Email        string
	PasswordHash string
}

// UserRepository define operaciones sobre usuarios.
type UserRepository interface {
	// GetByID busca un usuario por ID.
	// Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, userID string) (*User, error)

	// GetByEmail busca un usuario por email (case-insensitive).
	// Retorna ErrNotFound si no existe.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UsernameExists is a hint for candidate generation only; Create is the
	// authority on uniqueness.
	UsernameExists(ctx context.Context, username string) (bool, error)

	// Create inserts a user. Unique violations come back as ErrUsernameTaken
	// or ErrEmailTaken.
	Create(ctx context.Context, input CreateUserInput) (*User, error)

	// SetActive enables or disables login for the account.
	// Retorna ErrNotFound si no existe.
	SetActive(ctx context.Context, userID string, active bool) error

	// SetPasswordHash guarda un hash argon2id (PHC). Vacío vuelve la cuenta
	// OAuth-only. Retorna ErrNotFound si no existe.
	SetPasswordHash(ctx context.Context, userID, hash string) error

	// Delete removes the user and, through the storage cascade, its connections.
	Delete(ctx context.Context, userID string) error
}
