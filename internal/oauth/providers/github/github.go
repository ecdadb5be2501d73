// Package github implements OAuth 2.0 authentication with GitHub.
// GitHub has no ID token, so identity comes from the REST API:
// /user for the profile and /user/emails for the primary verified address.
package github

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dropDatabas3/socialgate/internal/oauth/providers"
	"golang.org/x/oauth2"
	ghoauth "golang.org/x/oauth2/github"
)

const ProviderName = "github"

const (
	userEndpoint  = "https://api.github.com/user"
	emailEndpoint = "https://api.github.com/user/emails"
)

var defaultScopes = []string{"read:user", "user:email"}

type Provider struct {
	*providers.Client
	userURL   string
	emailsURL string
}

// Factory creates a new GitHub provider.
func Factory(cfg providers.Config) (providers.Adapter, error) {
	return New(cfg), nil
}

func New(cfg providers.Config) *Provider {
	p := &Provider{
		Client: providers.NewClient(ProviderName, cfg,
			ghoauth.Endpoint,
			defaultScopes,
			oauth2.SetAuthURLParam("allow_signup", "true"),
		),
		userURL:   userEndpoint,
		emailsURL: emailEndpoint,
	}
	if cfg.UserInfoURL != "" {
		p.userURL = cfg.UserInfoURL
	}
	if cfg.EmailsURL != "" {
		p.emailsURL = cfg.EmailsURL
	}
	return p
}

type userResponse struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type emailResponse struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (p *Provider) UserInfo(ctx context.Context, tokens *providers.TokenSet) (*providers.UserInfo, error) {
	if tokens == nil || tokens.AccessToken == "" {
		return nil, fmt.Errorf("%w: github: missing access token", providers.ErrUserInfoFailed)
	}
	var u userResponse
	if err := p.GetJSON(ctx, p.userURL, tokens.AccessToken, &u); err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, fmt.Errorf("%w: github: profile without id", providers.ErrUserInfoFailed)
	}

	var emails []emailResponse
	if err := p.GetJSON(ctx, p.emailsURL, tokens.AccessToken, &emails); err != nil {
		return nil, err
	}
	email, verified := pickEmail(emails)
	if email == "" {
		// public profile email, unverified
		email = u.Email
	}

	name := u.Name
	if name == "" {
		name = u.Login
	}
	return &providers.UserInfo{
		ProviderUserID: strconv.FormatInt(u.ID, 10),
		Email:          email,
		EmailVerified:  verified,
		Name:           name,
		Raw: map[string]any{
			"login":      u.Login,
			"avatar_url": u.AvatarURL,
		},
	}, nil
}

// pickEmail prefers primary+verified, then any verified address.
func pickEmail(list []emailResponse) (string, bool) {
	for _, e := range list {
		if e.Primary && e.Verified {
			return e.Email, true
		}
	}
	for _, e := range list {
		if e.Verified {
			return e.Email, true
		}
	}
	return "", false
}
