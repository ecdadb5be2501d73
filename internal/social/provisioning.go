package social

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	"github.com/dropDatabas3/socialgate/internal/oauth/providers"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	tokens "github.com/dropDatabas3/socialgate/internal/security/token"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 50

	// MaxUsernameAttempts acota el loop de sufijos (candidate, candidate1, ..., candidate999).
	MaxUsernameAttempts = 1000
)

var usernameDisallowed = regexp.MustCompile(`[^a-z0-9_-]+`)

// ExistsFunc reporta si un username ya está tomado.
type ExistsFunc func(ctx context.Context, username string) (bool, error)

// SanitizeUsername normaliza text a [a-z0-9_-] con 3..50 chars.
// Si no queda nada usable devuelve un username aleatorio "user_xxxxxxxx".
func SanitizeUsername(text string) string {
	if s, ok := sanitize(text); ok {
		return s
	}
	return fallbackUsername()
}

// sanitize translitera cada runa no ASCII con slug ("José" -> "jose", "李" -> "li")
// y conserva "-" y "_" del input; el resto de la puntuación se descarta.
func sanitize(text string) (string, bool) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(text) {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		} else {
			b.WriteString(strings.ReplaceAll(slug.Make(string(r)), "-", ""))
		}
		if b.Len() >= 4*maxUsernameLen {
			break
		}
	}
	s := usernameDisallowed.ReplaceAllString(strings.ToLower(b.String()), "")
	if len(s) > maxUsernameLen {
		s = s[:maxUsernameLen]
	}
	return s, len(s) >= minUsernameLen
}

func fallbackUsername() string {
	h, err := tokens.RandomHex(4)
	if err != nil {
		h = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	return "user_" + h
}

// GenerateCandidate prefiere el local-part del email, luego el display name,
// luego un fallback aleatorio.
func GenerateCandidate(email, name string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		if s, ok := sanitize(email[:i]); ok {
			return s
		}
	}
	if s, ok := sanitize(name); ok {
		return s
	}
	return fallbackUsername()
}

// candidateAt devuelve el intento n: n=0 es el candidato tal cual, n>0 agrega
// el sufijo numérico recortando la base para no pasar de 50 chars.
func candidateAt(base string, n int) string {
	if n == 0 {
		return base
	}
	suf := strconv.Itoa(n)
	if len(base)+len(suf) > maxUsernameLen {
		base = base[:maxUsernameLen-len(suf)]
	}
	return base + suf
}

// EnsureUnique prueba candidate, candidate1, candidate2, ... hasta que exists
// reporte libre. Es sólo una pista: la unicidad real la garantiza el storage.
func EnsureUnique(ctx context.Context, candidate string, exists ExistsFunc) (string, error) {
	name, _, err := ensureUniqueFrom(ctx, candidate, 0, exists)
	return name, err
}

// ensureUniqueFrom arranca en el sufijo start y devuelve el nombre libre junto con
// su sufijo, para que el caller retome desde ahí si el insert choca igual.
// El tope de MaxUsernameAttempts cuenta desde 0, no desde start.
func ensureUniqueFrom(ctx context.Context, candidate string, start int, exists ExistsFunc) (string, int, error) {
	for n := start; n < MaxUsernameAttempts; n++ {
		name := candidateAt(candidate, n)
		taken, err := exists(ctx, name)
		if err != nil {
			return "", n, err
		}
		if !taken {
			return name, n, nil
		}
	}
	return "", MaxUsernameAttempts, ErrUsernameGenerationExhausted
}

// Provisioner crea usuarios locales a partir del perfil de un provider.
type Provisioner struct {
	users repository.UserRepository
}

func NewProvisioner(users repository.UserRepository) *Provisioner {
	return &Provisioner{users: users}
}

// CreateUserFromOAuth crea un usuario OAuth-only (sin password) con username único.
//
// Dos altas concurrentes pueden elegir el mismo candidato: el unique index de
// username rechaza a una y esa sigue el loop desde el sufijo siguiente.
// Un email ya registrado devuelve repository.ErrEmailTaken para que el caller
// re-resuelva por email.
func (p *Provisioner) CreateUserFromOAuth(ctx context.Context, info *providers.UserInfo) (*repository.User, error) {
	email := strings.TrimSpace(info.Email)
	if email == "" {
		return nil, ErrProviderEmailMissing
	}
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("social.provisioning"))

	base := GenerateCandidate(email, info.Name)
	for next := 0; ; {
		name, n, err := ensureUniqueFrom(ctx, base, next, p.users.UsernameExists)
		switch {
		case errors.Is(err, ErrUsernameGenerationExhausted):
			log.Warn("username generation exhausted", logger.String("candidate", base))
			return nil, err
		case err != nil:
			return nil, fmt.Errorf("username lookup: %w", err)
		}

		u, err := p.users.Create(ctx, repository.CreateUserInput{
			Username: name,
			Email:    strings.ToLower(email),
		})
		switch {
		case err == nil:
			log.Info("user provisioned",
				logger.UserID(u.ID), logger.Username(u.Username), logger.EmailMasked(u.Email))
			return u, nil
		case errors.Is(err, repository.ErrUsernameTaken):
			log.Debug("username taken on insert, trying next suffix", logger.Username(name))
			next = n + 1
		case errors.Is(err, repository.ErrEmailTaken):
			return nil, err
		default:
			return nil, fmt.Errorf("create user: %w", err)
		}
	}
}
