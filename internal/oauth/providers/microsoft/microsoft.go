// Package microsoft implements the Microsoft identity platform provider
// (Azure AD v2 endpoints + Microsoft Graph profile).
package microsoft

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/socialgate/internal/oauth/providers"
	"golang.org/x/oauth2"
	msoauth "golang.org/x/oauth2/microsoft"
)

const ProviderName = "microsoft"

const (
	graphMeEndpoint = "https://graph.microsoft.com/v1.0/me"
	defaultTenant   = "common"
)

var defaultScopes = []string{"openid", "email", "profile", "User.Read"}

type Provider struct {
	*providers.Client
	userInfoURL string
}

// Factory creates a new Microsoft provider.
func Factory(cfg providers.Config) (providers.Adapter, error) {
	return New(cfg), nil
}

func New(cfg providers.Config) *Provider {
	tenant := strings.TrimSpace(cfg.Tenant)
	if tenant == "" {
		tenant = defaultTenant
	}
	p := &Provider{
		Client: providers.NewClient(ProviderName, cfg,
			msoauth.AzureADEndpoint(tenant),
			defaultScopes,
			oauth2.SetAuthURLParam("response_mode", "query"),
		),
		userInfoURL: graphMeEndpoint,
	}
	if cfg.UserInfoURL != "" {
		p.userInfoURL = cfg.UserInfoURL
	}
	return p
}

type meResponse struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	GivenName         string `json:"givenName"`
	Surname           string `json:"surname"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// UserInfo reads the Graph /me profile. Graph does not report whether the
// address was verified, so EmailVerified stays false.
func (p *Provider) UserInfo(ctx context.Context, tokens *providers.TokenSet) (*providers.UserInfo, error) {
	if tokens == nil || tokens.AccessToken == "" {
		return nil, fmt.Errorf("%w: microsoft: missing access token", providers.ErrUserInfoFailed)
	}
	var me meResponse
	if err := p.GetJSON(ctx, p.userInfoURL, tokens.AccessToken, &me); err != nil {
		return nil, err
	}
	if me.ID == "" {
		return nil, fmt.Errorf("%w: microsoft: profile without id", providers.ErrUserInfoFailed)
	}
	email := me.Mail
	if email == "" && strings.Contains(me.UserPrincipalName, "@") {
		email = me.UserPrincipalName
	}
	return &providers.UserInfo{
		ProviderUserID: me.ID,
		Email:          email,
		Name:           me.DisplayName,
		Raw: map[string]any{
			"given_name":          me.GivenName,
			"surname":             me.Surname,
			"user_principal_name": me.UserPrincipalName,
		},
	}, nil
}
