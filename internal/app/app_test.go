package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/socialgate/internal/config"
	"github.com/dropDatabas3/socialgate/internal/oauth/providers"
)

func devConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("APP_ENV", "dev")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("CACHE_KIND", "memory")
	t.Setenv("GOOGLE_CLIENT_ID", "google-client")
	t.Setenv("GOOGLE_CLIENT_SECRET", "google-secret")
	t.Setenv("SOCIAL_ALLOWED_REDIRECT_URIS", "https://app.example.com/cb")
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestBuild_MemoryStack(t *testing.T) {
	cfg := devConfig(t)
	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"google"}, a.Service.Providers())

	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	body, _ := json.Marshal(map[string]string{"provider": "google", "redirect_uri": "https://app.example.com/cb"})
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/oauth/initiate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	a.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "google", out["provider"])
	assert.Contains(t, out["authorization_url"], "accounts.google.com")
	assert.NotEmpty(t, out["state"])
}

func TestBuild_UnconfiguredProviderRejected(t *testing.T) {
	cfg := devConfig(t)
	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	body, _ := json.Marshal(map[string]string{"provider": "apple", "redirect_uri": "https://app.example.com/cb"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/oauth/initiate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	a.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStateBackend_Mismatch(t *testing.T) {
	cfg := devConfig(t)
	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	cfg.State.Backend = "postgres"
	_, err = stateBackend(cfg, a.Stores, a.Cache)
	assert.Error(t, err)

	cfg.State.Backend = "redis"
	_, err = stateBackend(cfg, a.Stores, a.Cache)
	assert.Error(t, err)

	cfg.State.Backend = "etcd"
	_, err = stateBackend(cfg, a.Stores, a.Cache)
	assert.Error(t, err)

	cfg.State.Backend = "memory"
	repo, err := stateBackend(cfg, a.Stores, a.Cache)
	assert.NoError(t, err)
	assert.NotNil(t, repo)
}

func TestNewProviderRegistry_OnlyConfigured(t *testing.T) {
	cfg := devConfig(t)
	cfg.Providers.GitHub.ClientID = "gh"
	cfg.Providers.GitHub.ClientSecret = "gh-secret"

	r, err := NewProviderRegistry(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"github", "google"}, r.Configured())

	_, err = r.Get("microsoft")
	assert.ErrorIs(t, err, providers.ErrNotConfigured)
	_, err = r.Get("facebook")
	assert.ErrorIs(t, err, providers.ErrUnknownProvider)
}
