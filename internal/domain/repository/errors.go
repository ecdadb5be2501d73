package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un conflicto (ej: duplicado, constraint violation).
	ErrConflict = errors.New("conflict")

	// ErrUsernameTaken is a unique violation on users.username.
	ErrUsernameTaken = fmt.Errorf("%w: username taken", ErrConflict)

	// ErrEmailTaken is a unique violation on users.email.
	ErrEmailTaken = fmt.Errorf("%w: email taken", ErrConflict)

	// ErrConnectionTaken is a unique violation on (provider, provider_user_id):
	// the provider subject is already linked to another user.
	ErrConnectionTaken = fmt.Errorf("%w: provider subject linked to another user", ErrConflict)

	// ErrNoDatabase indica que no hay base de datos configurada.
	ErrNoDatabase = errors.New("no database configured")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict (o uno de sus derivados).
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
