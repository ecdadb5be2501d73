// Package google implements the Google OIDC provider.
package google

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/socialgate/internal/oauth/providers"
	"golang.org/x/oauth2"
)

const ProviderName = "google"

const (
	authEndpoint     = "https://accounts.google.com/o/oauth2/v2/auth"
	tokenEndpoint    = "https://oauth2.googleapis.com/token"
	userInfoEndpoint = "https://openidconnect.googleapis.com/v1/userinfo"
)

var defaultScopes = []string{"openid", "email", "profile"}

// Provider implements the Google authorization-code flow.
type Provider struct {
	*providers.Client
	userInfoURL string
}

// Factory creates a new Google provider.
func Factory(cfg providers.Config) (providers.Adapter, error) {
	return New(cfg), nil
}

func New(cfg providers.Config) *Provider {
	p := &Provider{
		Client: providers.NewClient(ProviderName, cfg,
			oauth2.Endpoint{AuthURL: authEndpoint, TokenURL: tokenEndpoint},
			defaultScopes,
			oauth2.SetAuthURLParam("include_granted_scopes", "true"),
		),
		userInfoURL: userInfoEndpoint,
	}
	if cfg.UserInfoURL != "" {
		p.userInfoURL = cfg.UserInfoURL
	}
	return p
}

type userInfoResponse struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// UserInfo fetches the OIDC userinfo document.
func (p *Provider) UserInfo(ctx context.Context, tokens *providers.TokenSet) (*providers.UserInfo, error) {
	if tokens == nil || tokens.AccessToken == "" {
		return nil, fmt.Errorf("%w: google: missing access token", providers.ErrUserInfoFailed)
	}
	var ui userInfoResponse
	if err := p.GetJSON(ctx, p.userInfoURL, tokens.AccessToken, &ui); err != nil {
		return nil, err
	}
	if ui.Sub == "" {
		return nil, fmt.Errorf("%w: google: userinfo without sub", providers.ErrUserInfoFailed)
	}
	name := ui.Name
	if name == "" {
		name = joinName(ui.GivenName, ui.FamilyName)
	}
	return &providers.UserInfo{
		ProviderUserID: ui.Sub,
		Email:          ui.Email,
		EmailVerified:  ui.EmailVerified != nil && *ui.EmailVerified,
		Name:           name,
		Raw: map[string]any{
			"picture":     ui.Picture,
			"given_name":  ui.GivenName,
			"family_name": ui.FamilyName,
		},
	}, nil
}

func joinName(given, family string) string {
	switch {
	case given == "":
		return family
	case family == "":
		return given
	}
	return given + " " + family
}
