// Package apple implements Sign in with Apple.
//
// Apple has no userinfo endpoint: identity comes from the RS256 id_token
// returned by the token endpoint, verified against Apple's published JWKS
// (signature, iss, aud = client id, exp). The client secret is either
// configured verbatim or signed here as an ES256 JWT from the team key.
package apple

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/socialgate/internal/oauth/jwks"
	"github.com/dropDatabas3/socialgate/internal/oauth/providers"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const ProviderName = "apple"

const (
	authEndpoint  = "https://appleid.apple.com/auth/authorize"
	tokenEndpoint = "https://appleid.apple.com/auth/token"
	jwksEndpoint  = "https://appleid.apple.com/auth/keys"
	issuer        = "https://appleid.apple.com"

	clientSecretTTL = 5 * time.Minute
	clockSkew       = 30 * time.Second
)

var defaultScopes = []string{"name", "email"}

type Provider struct {
	*providers.Client
	clientID string
	issuer   string
	keys     *jwks.Cache
	now      func() time.Time
}

// Factory creates a new Apple provider.
func Factory(cfg providers.Config) (providers.Adapter, error) {
	return New(cfg)
}

func New(cfg providers.Config) (*Provider, error) {
	p := &Provider{
		Client: providers.NewClient(ProviderName, cfg,
			oauth2.Endpoint{AuthURL: authEndpoint, TokenURL: tokenEndpoint, AuthStyle: oauth2.AuthStyleInParams},
			defaultScopes,
			// Apple rejects query mode when name/email scopes are requested.
			oauth2.SetAuthURLParam("response_mode", "form_post"),
		),
		clientID: cfg.ClientID,
		issuer:   issuer,
		now:      time.Now,
	}
	if cfg.Issuer != "" {
		p.issuer = cfg.Issuer
	}
	jwksURL := jwksEndpoint
	if cfg.JWKSURL != "" {
		jwksURL = cfg.JWKSURL
	}
	p.keys = jwks.New(jwksURL, time.Hour, p.HTTP())

	if cfg.ClientSecret == "" && cfg.PrivateKeyPEM != "" {
		key, err := jwtv5.ParseECPrivateKeyFromPEM([]byte(cfg.PrivateKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("apple: private key: %w", err)
		}
		if cfg.TeamID == "" || cfg.KeyID == "" {
			return nil, fmt.Errorf("apple: team_id and key_id required with private key")
		}
		p.SetSecretSource(func() (string, error) {
			return p.clientSecret(cfg.TeamID, cfg.KeyID, key)
		})
	}
	return p, nil
}

// clientSecret signs the short-lived ES256 client assertion Apple expects.
func (p *Provider) clientSecret(teamID, keyID string, key *ecdsa.PrivateKey) (string, error) {
	now := p.now()
	claims := jwtv5.RegisteredClaims{
		Issuer:    teamID,
		Subject:   p.clientID,
		Audience:  jwtv5.ClaimStrings{issuer},
		IssuedAt:  jwtv5.NewNumericDate(now),
		ExpiresAt: jwtv5.NewNumericDate(now.Add(clientSecretTTL)),
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodES256, claims)
	tk.Header["kid"] = keyID
	return tk.SignedString(key)
}

// UserInfo verifies the id_token; the access token is not used.
func (p *Provider) UserInfo(ctx context.Context, tokens *providers.TokenSet) (*providers.UserInfo, error) {
	if tokens == nil || tokens.IDToken == "" {
		return nil, fmt.Errorf("%w: apple: missing id_token", providers.ErrUserInfoFailed)
	}

	tok, err := jwtv5.Parse(tokens.IDToken, func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("missing kid")
		}
		return p.keys.Key(ctx, kid)
	},
		jwtv5.WithValidMethods([]string{"RS256"}),
		jwtv5.WithIssuer(p.issuer),
		jwtv5.WithAudience(p.clientID),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithLeeway(clockSkew),
		jwtv5.WithTimeFunc(p.now),
	)
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: apple: invalid id_token: %v", providers.ErrUserInfoFailed, err)
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: apple: claims type", providers.ErrUserInfoFailed)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: apple: id_token without sub", providers.ErrUserInfoFailed)
	}
	email, _ := claims["email"].(string)

	return &providers.UserInfo{
		ProviderUserID: sub,
		Email:          email,
		EmailVerified:  flexBool(claims["email_verified"]),
		Raw: map[string]any{
			"is_private_email": flexBool(claims["is_private_email"]),
		},
	}, nil
}

// Apple sends some booleans as "true"/"false" strings.
func flexBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true")
	}
	return false
}
