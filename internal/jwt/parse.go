package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid_jwt")
	ErrInvalidIssuer = errors.New("invalid_issuer")
	ErrExpired       = errors.New("expired")
)

// ParseEdDSA valida firma (EdDSA), iss/aud del issuer y exp/nbf con una pequeña tolerancia.
// Devuelve las claims como map[string]any.
func (i *Issuer) ParseEdDSA(token string) (map[string]any, error) {
	tok, err := jwtv5.Parse(token, i.Keyfunc(),
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithLeeway(30*time.Second),
		jwtv5.WithTimeFunc(i.now),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalidToken
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, errors.New("claims_type")
	}
	if iss, _ := claims["iss"].(string); i.Iss != "" && iss != i.Iss {
		return nil, ErrInvalidIssuer
	}
	if aud, _ := claims["aud"].(string); i.Aud != "" && aud != i.Aud {
		return nil, ErrInvalidToken
	}

	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	return out, nil
}
