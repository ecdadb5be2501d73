package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	name       string
	configured bool
}

func (s stubAdapter) Name() string { return s.name }

func (s stubAdapter) Configured() bool { return s.configured }

func (s stubAdapter) Scopes() []string { return nil }

func (s stubAdapter) AuthCodeURL(_, _ string) string { return "https://idp.example/auth" }

func (s stubAdapter) Exchange(context.Context, string, string) (*TokenSet, error) {
	return &TokenSet{AccessToken: "at"}, nil
}

func (s stubAdapter) UserInfo(context.Context, *TokenSet) (*UserInfo, error) {
	return &UserInfo{ProviderUserID: "1"}, nil
}

func stubFactory(name string) Factory {
	return func(cfg Config) (Adapter, error) {
		return stubAdapter{name: name, configured: cfg.ClientID != ""}, nil
	}
}

func TestRegistry_BuildAndGet(t *testing.T) {
	r := NewRegistry()
	r.RegisterFactory("google", stubFactory("google"))
	r.RegisterFactory("apple", stubFactory("apple"))
	r.RegisterFactory("github", stubFactory("github"))

	require.NoError(t, r.Build(map[string]Config{
		"google": {ClientID: "gid"},
		"github": {ClientID: "ghid"},
	}))

	a, err := r.Get("google")
	require.NoError(t, err)
	require.Equal(t, "google", a.Name())

	_, err = r.Get("apple")
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = r.Get("myspace")
	require.ErrorIs(t, err, ErrUnknownProvider)

	require.Equal(t, []string{"github", "google"}, r.Configured())
}

func TestRegistry_BuildRejectsUnknownConfig(t *testing.T) {
	r := NewRegistry()
	r.RegisterFactory("google", stubFactory("google"))
	err := r.Build(map[string]Config{"yahoo": {ClientID: "x"}})
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestClient_ExchangeFailsFastWhenNotConfigured(t *testing.T) {
	c := NewClient("google", Config{ClientID: "only-id", TokenURL: "http://127.0.0.1:1/never"}, oauthEndpointForTest(), nil)
	require.False(t, c.Configured())

	_, err := c.Exchange(context.Background(), "code", "https://app/cb")
	require.ErrorIs(t, err, ErrNotConfigured)
}
