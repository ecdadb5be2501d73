package social

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/socialgate/internal/cache"
	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	"github.com/dropDatabas3/socialgate/internal/oauth/providers"
	"github.com/dropDatabas3/socialgate/internal/store/memory"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	name       string
	configured bool

	mu          sync.Mutex
	info        providers.UserInfo
	exchangeErr error
	userInfoErr error
	exchanges   int
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Configured() bool { return f.configured }

func (f *fakeAdapter) Scopes() []string { return []string{"openid", "email"} }

func (f *fakeAdapter) AuthCodeURL(state, redirectURI string) string {
	q := url.Values{}
	q.Set("client_id", "cid")
	q.Set("state", state)
	q.Set("redirect_uri", redirectURI)
	return "https://idp.test/authorize?" + q.Encode()
}

func (f *fakeAdapter) Exchange(_ context.Context, code, _ string) (*providers.TokenSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges++
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &providers.TokenSet{
		AccessToken:  "at-" + code,
		RefreshToken: "rt-" + code,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}, nil
}

func (f *fakeAdapter) UserInfo(context.Context, *providers.TokenSet) (*providers.UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userInfoErr != nil {
		return nil, f.userInfoErr
	}
	cp := f.info
	return &cp, nil
}

func (f *fakeAdapter) setInfo(info providers.UserInfo) {
	f.mu.Lock()
	f.info = info
	f.mu.Unlock()
}

type fakeIssuer struct{ fail bool }

func (f fakeIssuer) IssueSessionToken(_ context.Context, u *repository.User) (string, time.Time, error) {
	if f.fail {
		return "", time.Time{}, errors.New("signer down")
	}
	return "session-" + u.ID, time.Now().Add(15 * time.Minute), nil
}

type fixture struct {
	svc    *Service
	store  *memory.Store
	states *StateStore
	google *fakeAdapter
	github *fakeAdapter
}

const testRedirect = "https://app.example.com/oauth/done"

func newFixture(t *testing.T, mutate func(*Deps)) *fixture {
	t.Helper()
	st := memory.New()
	reg := providers.NewRegistry()
	g := &fakeAdapter{name: "google", configured: true}
	gh := &fakeAdapter{name: "github", configured: true}
	reg.Register(g)
	reg.Register(gh)
	reg.Register(&fakeAdapter{name: "apple"})

	states := NewStateStore(NewCacheStateRepository(cache.NewMemory("test")), time.Minute)
	d := Deps{
		Providers:           reg,
		States:              states,
		Connections:         NewConnectionStore(st.Users(), st.Connections(), nil),
		Provisioner:         NewProvisioner(st.Users()),
		Users:               st.Users(),
		Issuer:              fakeIssuer{},
		AllowedRedirectURIs: []string{testRedirect},
	}
	if mutate != nil {
		mutate(&d)
	}
	svc, err := NewService(d)
	require.NoError(t, err)
	return &fixture{svc: svc, store: st, states: states, google: g, github: gh}
}

// login corre initiate + callback con el perfil dado.
func (f *fixture) login(t *testing.T, a *fakeAdapter, info providers.UserInfo) (*CallbackResult, error) {
	t.Helper()
	a.setInfo(info)
	started, err := f.svc.Initiate(context.Background(), a.name, testRedirect)
	require.NoError(t, err)
	return f.svc.Callback(context.Background(), "code-1", started.State)
}
