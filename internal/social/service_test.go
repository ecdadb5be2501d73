package social

import (
	"context"
	"net/url"
	"testing"

	"github.com/dropDatabas3/socialgate/internal/audit"
	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	"github.com/dropDatabas3/socialgate/internal/oauth/providers"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewService_RequiresDeps(t *testing.T) {
	_, err := NewService(Deps{})
	assert.Error(t, err)
}

func TestInitiate(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Initiate(context.Background(), "Google", testRedirect)
	require.NoError(t, err)
	assert.Equal(t, "google", res.Provider)
	assert.NotEmpty(t, res.State)

	u, err := url.Parse(res.AuthorizationURL)
	require.NoError(t, err)
	assert.Equal(t, res.State, u.Query().Get("state"))
	assert.Equal(t, testRedirect, u.Query().Get("redirect_uri"))
	assert.Equal(t, "cid", u.Query().Get("client_id"))
}

func TestInitiate_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Initiate(ctx, "apple", testRedirect)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)

	_, err = f.svc.Initiate(ctx, "myspace", testRedirect)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)

	_, err = f.svc.Initiate(ctx, "google", "https://evil.example.com/cb")
	assert.ErrorIs(t, err, ErrRedirectURINotAllowed)
}

func TestInitiate_OpenRedirectPolicy(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.AllowedRedirectURIs = nil })
	ctx := context.Background()

	_, err := f.svc.Initiate(ctx, "google", "https://anything.example.com/cb")
	assert.NoError(t, err)

	for _, bad := range []string{"", "/relative", "javascript:alert(1)", "ftp://x.com/cb", "https://x.com/cb#frag"} {
		_, err = f.svc.Initiate(ctx, "google", bad)
		assert.ErrorIs(t, err, ErrRedirectURINotAllowed, bad)
	}
}

func TestCallback_NewUser(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.login(t, f.google, providers.UserInfo{
		ProviderUserID: "g-42", Email: "new.user@example.com", EmailVerified: true, Name: "New User",
	})
	require.NoError(t, err)
	assert.True(t, res.IsNewUser)
	assert.Equal(t, "newuser", res.Username)
	assert.Equal(t, "new.user@example.com", res.Email)
	assert.Equal(t, "google", res.Provider)
	assert.Equal(t, "Bearer", res.TokenType)
	assert.Equal(t, "session-"+res.UserID, res.AccessToken)

	conns, err := f.svc.ListConnections(context.Background(), res.UserID)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "g-42", conns[0].ProviderUserID)
	assert.Equal(t, "at-code-1", conns[0].AccessToken)
}

func TestCallback_StateReplayRejected(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.google.setInfo(providers.UserInfo{ProviderUserID: "g-1", Email: "a@example.com"})

	started, err := f.svc.Initiate(ctx, "google", testRedirect)
	require.NoError(t, err)
	_, err = f.svc.Callback(ctx, "code", started.State)
	require.NoError(t, err)

	_, err = f.svc.Callback(ctx, "code", started.State)
	assert.ErrorIs(t, err, ErrCsrfStateInvalid)
	assert.Equal(t, 1, f.google.exchanges)

	_, err = f.svc.Callback(ctx, "code", "forged")
	assert.ErrorIs(t, err, ErrCsrfStateInvalid)
}

func TestCallback_ReturningUserIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	info := providers.UserInfo{ProviderUserID: "g-42", Email: "new.user@example.com"}

	first, err := f.login(t, f.google, info)
	require.NoError(t, err)
	second, err := f.login(t, f.google, info)
	require.NoError(t, err)

	assert.False(t, second.IsNewUser)
	assert.Equal(t, first.UserID, second.UserID)
	conns, err := f.svc.ListConnections(context.Background(), first.UserID)
	require.NoError(t, err)
	assert.Len(t, conns, 1)
}

func TestCallback_LinksExistingAccountByEmail(t *testing.T) {
	f := newFixture(t, nil)
	jane := newUser(t, f.store, "jane", "jane@x.com", "argon2id$hash")

	res, err := f.login(t, f.github, providers.UserInfo{ProviderUserID: "gh-9", Email: "Jane@X.com", EmailVerified: true})
	require.NoError(t, err)
	assert.False(t, res.IsNewUser)
	assert.Equal(t, jane.ID, res.UserID)
	assert.Equal(t, "jane", res.Username)

	// el mismo usuario entra luego por Google: segunda conexión
	res, err = f.login(t, f.google, providers.UserInfo{ProviderUserID: "g-9", Email: "jane@x.com", EmailVerified: true})
	require.NoError(t, err)
	assert.Equal(t, jane.ID, res.UserID)
	conns, err := f.svc.ListConnections(context.Background(), jane.ID)
	require.NoError(t, err)
	assert.Len(t, conns, 2)
}

func TestCallback_LinkRequiresVerifiedEmail(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.LinkRequiresVerifiedEmail = true })
	newUser(t, f.store, "jane", "jane@x.com", "hash")

	_, err := f.login(t, f.github, providers.UserInfo{ProviderUserID: "gh-9", Email: "jane@x.com", EmailVerified: false})
	assert.ErrorIs(t, err, ErrEmailNotVerified)

	res, err := f.login(t, f.github, providers.UserInfo{ProviderUserID: "gh-9", Email: "jane@x.com", EmailVerified: true})
	require.NoError(t, err)
	assert.Equal(t, "jane", res.Username)
}

func TestCallback_EmailMissing(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.login(t, f.github, providers.UserInfo{ProviderUserID: "gh-1", Name: "Ghost"})
	assert.ErrorIs(t, err, ErrProviderEmailMissing)

	// una conexión existente sigue entrando aunque el provider deje de mandar email
	first, err := f.login(t, f.github, providers.UserInfo{ProviderUserID: "gh-2", Email: "ghost@x.com"})
	require.NoError(t, err)
	again, err := f.login(t, f.github, providers.UserInfo{ProviderUserID: "gh-2"})
	require.NoError(t, err)
	assert.Equal(t, first.UserID, again.UserID)
}

func TestCallback_ProviderFailures(t *testing.T) {
	f := newFixture(t, nil)

	f.google.exchangeErr = providers.ErrExchangeFailed
	_, err := f.login(t, f.google, providers.UserInfo{ProviderUserID: "g", Email: "g@x.com"})
	assert.ErrorIs(t, err, ErrProviderExchangeFailed)

	f.google.exchangeErr = nil
	f.google.userInfoErr = providers.ErrUserInfoFailed
	_, err = f.login(t, f.google, providers.UserInfo{ProviderUserID: "g", Email: "g@x.com"})
	assert.ErrorIs(t, err, ErrProviderUserInfoFailed)

	// nada quedó persistido
	_, err = f.store.Users().GetByEmail(context.Background(), "g@x.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCallback_ProviderDeconfiguredAfterInitiate(t *testing.T) {
	f := newFixture(t, nil)
	started, err := f.svc.Initiate(context.Background(), "google", testRedirect)
	require.NoError(t, err)

	f.google.configured = false
	_, err = f.svc.Callback(context.Background(), "code", started.State)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
	assert.Equal(t, 0, f.google.exchanges)
}

func TestCallback_DisabledUser(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.login(t, f.google, providers.UserInfo{ProviderUserID: "g-5", Email: "five@x.com"})
	require.NoError(t, err)
	require.NoError(t, f.store.Users().SetActive(context.Background(), res.UserID, false))

	_, err = f.login(t, f.google, providers.UserInfo{ProviderUserID: "g-5", Email: "five@x.com"})
	assert.ErrorIs(t, err, ErrUserDisabled)
}

// linkedEvents cuenta los eventos de auditoría provider_linked.
func linkedEvents(logs *observer.ObservedLogs) int {
	return logs.FilterMessage("audit").FilterField(zap.String("event", audit.EventProviderLinked)).Len()
}

func TestCallback_LinkAuditedOnlyAfterConnectionStored(t *testing.T) {
	f := newFixture(t, nil)
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core))

	mallory := newUser(t, f.store, "mallory", "mallory@x.com", "argon2id$hash")
	require.NoError(t, f.store.Users().SetActive(ctx, mallory.ID, false))
	f.github.setInfo(providers.UserInfo{ProviderUserID: "gh-7", Email: "mallory@x.com", EmailVerified: true})
	started, err := f.svc.Initiate(ctx, "github", testRedirect)
	require.NoError(t, err)
	_, err = f.svc.Callback(ctx, "code", started.State)
	require.ErrorIs(t, err, ErrUserDisabled)
	assert.Equal(t, 0, linkedEvents(logs))

	newUser(t, f.store, "jane", "jane@x.com", "argon2id$hash")
	f.github.setInfo(providers.UserInfo{ProviderUserID: "gh-9", Email: "jane@x.com", EmailVerified: true})
	started, err = f.svc.Initiate(ctx, "github", testRedirect)
	require.NoError(t, err)
	_, err = f.svc.Callback(ctx, "code", started.State)
	require.NoError(t, err)
	assert.Equal(t, 1, linkedEvents(logs))
}

func TestCallback_IssuerFailure(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Issuer = fakeIssuer{fail: true} })
	_, err := f.login(t, f.google, providers.UserInfo{ProviderUserID: "g-5", Email: "five@x.com"})
	assert.Error(t, err)
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res, err := f.login(t, f.google, providers.UserInfo{ProviderUserID: "g-1", Email: "d@x.com"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Disconnect(ctx, res.UserID, "google"), ErrLastLoginMethod)
	assert.ErrorIs(t, f.svc.Disconnect(ctx, res.UserID, "github"), ErrConnectionNotFound)

	_, err = f.login(t, f.github, providers.UserInfo{ProviderUserID: "gh-1", Email: "d@x.com"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Disconnect(ctx, res.UserID, "GOOGLE"))

	conns, err := f.svc.ListConnections(ctx, res.UserID)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "github", conns[0].Provider)
}

func TestProviders(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, []string{"github", "google"}, f.svc.Providers())
}
