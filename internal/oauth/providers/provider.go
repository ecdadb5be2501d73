// Package providers defines the social login provider abstraction.
//
// Architecture:
//   - Adapter interface: common methods all vendors implement
//   - Registry: factory map keyed by provider name, built once from config
//   - Vendor implementations: one sub-package per provider (google, microsoft, apple, github)
//
// Adapters never retry. A failed exchange or userinfo call is final for that
// callback; the client restarts the flow with a fresh initiate.
package providers

import (
	"context"
	"errors"
	"time"
)

// Adapter is implemented by every social login vendor.
type Adapter interface {
	// Identity
	Name() string
	Configured() bool
	Scopes() []string

	// Flow
	AuthCodeURL(state, redirectURI string) string
	Exchange(ctx context.Context, code, redirectURI string) (*TokenSet, error)
	// UserInfo receives the full token set: signed-token vendors (Apple) read
	// IDToken, the rest call their userinfo endpoint with AccessToken.
	UserInfo(ctx context.Context, tokens *TokenSet) (*UserInfo, error)
}

// TokenSet contains tokens received from the provider.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	IDToken      string // OIDC only
	TokenType    string
	ExpiresIn    int
	Expiry       time.Time
}

// UserInfo is the normalized identity reported by a provider.
type UserInfo struct {
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string

	// Raw data for extensibility
	Raw map[string]any
}

// Config contains the configuration for a provider instance.
// Endpoint fields are optional overrides; vendors fill in their defaults.
type Config struct {
	ClientID     string
	ClientSecret string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	UserInfoURL string
	EmailsURL   string
	JWKSURL     string
	Issuer      string

	// Microsoft tenant (common, organizations, consumers or a GUID).
	Tenant string

	// Apple: when ClientSecret is empty the adapter signs one with this key.
	TeamID        string
	KeyID         string
	PrivateKeyPEM string

	// Bound for every outbound call. Zero means DefaultHTTPTimeout.
	HTTPTimeout time.Duration
}

// DefaultHTTPTimeout applies to token and userinfo calls.
const DefaultHTTPTimeout = 5 * time.Second

var (
	ErrUnknownProvider = errors.New("providers: unknown provider")
	ErrNotConfigured   = errors.New("providers: provider not configured")
	ErrExchangeFailed  = errors.New("providers: code exchange failed")
	ErrUserInfoFailed  = errors.New("providers: userinfo request failed")
)
