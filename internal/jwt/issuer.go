package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

const defaultAudience = "socialgate"

// Issuer firma access tokens de sesión con la clave Ed25519 del KeySet.
type Issuer struct {
	Iss       string        // "iss"
	Aud       string        // "aud"
	Keys      *KeySet       // clave activa
	AccessTTL time.Duration // TTL de Access (ej: 15m)

	now func() time.Time
}

func NewIssuer(iss string, keys *KeySet, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Issuer{
		Iss:       iss,
		Aud:       defaultAudience,
		Keys:      keys,
		AccessTTL: ttl,
		now:       time.Now,
	}
}

// Keyfunc devuelve un jwt.Keyfunc que valida el kid del header contra la clave activa.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != "" && kid != i.Keys.KID {
			return nil, errors.New("unknown_kid")
		}
		return i.Keys.Pub, nil
	}
}

// IssueAccess emite un Access Token con claims estándar + std (flat).
func (i *Issuer) IssueAccess(sub string, std map[string]any) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.AccessTTL)

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": sub,
		"aud": i.Aud,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	for k, v := range std {
		claims[k] = v
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = i.Keys.KID
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(i.Keys.Priv)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssueSessionToken emite el token de sesión que recibe el cliente tras el callback OAuth.
func (i *Issuer) IssueSessionToken(_ context.Context, u *repository.User) (string, time.Time, error) {
	return i.IssueAccess(u.ID, map[string]any{
		"preferred_username": u.Username,
		"amr":                []string{"oauth"},
	})
}
