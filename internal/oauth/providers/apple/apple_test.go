package apple

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropDatabas3/socialgate/internal/oauth/jwks"
	"github.com/dropDatabas3/socialgate/internal/oauth/providers"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv  *httptest.Server
	priv *rsa.PrivateKey
	kid  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	f := &fixture{priv: priv, kid: "apple-k1"}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/keys", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []any{jwks.EncodeRSA(f.kid, &priv.PublicKey)}})
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) idToken(t *testing.T, claims jwtv5.MapClaims) string {
	t.Helper()
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
	tk.Header["kid"] = f.kid
	s, err := tk.SignedString(f.priv)
	require.NoError(t, err)
	return s
}

func (f *fixture) provider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(providers.Config{
		ClientID:     "com.example.app",
		ClientSecret: "static-secret",
		JWKSURL:      f.srv.URL + "/auth/keys",
	})
	require.NoError(t, err)
	return p
}

func validClaims() jwtv5.MapClaims {
	now := time.Now()
	return jwtv5.MapClaims{
		"iss":            issuer,
		"aud":            "com.example.app",
		"sub":            "001234.abcdef",
		"email":          "jane@privaterelay.appleid.com",
		"email_verified": "true",
		"iat":            now.Unix(),
		"exp":            now.Add(10 * time.Minute).Unix(),
	}
}

func TestUserInfo_VerifiesIDToken(t *testing.T) {
	f := newFixture(t)
	p := f.provider(t)

	ui, err := p.UserInfo(context.Background(), &providers.TokenSet{AccessToken: "ignored", IDToken: f.idToken(t, validClaims())})
	require.NoError(t, err)
	require.Equal(t, "001234.abcdef", ui.ProviderUserID)
	require.Equal(t, "jane@privaterelay.appleid.com", ui.Email)
	require.True(t, ui.EmailVerified)
}

func TestUserInfo_RejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	p := f.provider(t)

	wrongAud := validClaims()
	wrongAud["aud"] = "com.other.app"

	wrongIss := validClaims()
	wrongIss["iss"] = "https://evil.example"

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	forged := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, validClaims())
	forged.Header["kid"] = f.kid
	forgedStr, err := forged.SignedString(other)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"audience":  f.idToken(t, wrongAud),
		"issuer":    f.idToken(t, wrongIss),
		"expired":   f.idToken(t, expired),
		"signature": forgedStr,
		"missing":   "",
	} {
		_, err := p.UserInfo(context.Background(), &providers.TokenSet{IDToken: tok})
		assert.ErrorIs(t, err, providers.ErrUserInfoFailed, name)
	}
}

func TestExchange_SignsClientSecret(t *testing.T) {
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(ecKey)
	require.NoError(t, err)
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))

	var gotSecret string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotSecret = r.PostForm.Get("client_secret")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a","id_token":"i","token_type":"bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	p, err := New(providers.Config{
		ClientID:      "com.example.app",
		TeamID:        "TEAM123",
		KeyID:         "KEY456",
		PrivateKeyPEM: pemKey,
		TokenURL:      srv.URL,
	})
	require.NoError(t, err)
	require.True(t, p.Configured())

	ts, err := p.Exchange(context.Background(), "code", "https://app/cb")
	require.NoError(t, err)
	require.Equal(t, "i", ts.IDToken)

	parsed, err := jwtv5.Parse(gotSecret, func(*jwtv5.Token) (any, error) { return &ecKey.PublicKey, nil },
		jwtv5.WithValidMethods([]string{"ES256"}), jwtv5.WithIssuer("TEAM123"), jwtv5.WithAudience(issuer))
	require.NoError(t, err)
	require.Equal(t, "KEY456", parsed.Header["kid"])
	sub, err := parsed.Claims.GetSubject()
	require.NoError(t, err)
	require.Equal(t, "com.example.app", sub)
}

func TestFlexBool(t *testing.T) {
	require.True(t, flexBool(true))
	require.True(t, flexBool("TRUE"))
	require.False(t, flexBool("false"))
	require.False(t, flexBool(nil))
}
