package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// maxBody caps what we read from a vendor response.
const maxBody = 1 << 20

// Client is the shared authorization-code machinery vendors embed.
type Client struct {
	name    string
	cfg     Config
	oauth   oauth2.Config
	http    *http.Client
	timeout time.Duration
	opts    []oauth2.AuthCodeOption

	// secretFn mints a client secret per exchange (Apple signs one with ES256).
	secretFn func() (string, error)
}

// NewClient wires an oauth2.Config with a bounded http.Client.
func NewClient(name string, cfg Config, endpoint oauth2.Endpoint, defaultScopes []string, opts ...oauth2.AuthCodeOption) *Client {
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	// AutoDetect retries the exchange with a second auth style; pin one.
	if endpoint.AuthStyle == oauth2.AuthStyleAutoDetect {
		endpoint.AuthStyle = oauth2.AuthStyleInParams
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &Client{
		name: name,
		cfg:  cfg,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		http:    &http.Client{Timeout: timeout},
		timeout: timeout,
		opts:    opts,
	}
}

func (c *Client) Name() string { return c.name }

// Configured requires a client id and either a static secret or a secret source.
func (c *Client) Configured() bool {
	return c.oauth.ClientID != "" && (c.oauth.ClientSecret != "" || c.secretFn != nil)
}

// SetSecretSource replaces the static client secret with one minted per exchange.
func (c *Client) SetSecretSource(fn func() (string, error)) { c.secretFn = fn }

func (c *Client) Scopes() []string {
	out := make([]string, len(c.oauth.Scopes))
	copy(out, c.oauth.Scopes)
	return out
}

// Config returns the adapter configuration (endpoint overrides included).
func (c *Client) Config() Config { return c.cfg }

// HTTP returns the bounded client used for vendor calls.
func (c *Client) HTTP() *http.Client { return c.http }

func (c *Client) withRedirect(redirectURI string) *oauth2.Config {
	oc := c.oauth
	oc.RedirectURL = redirectURI
	return &oc
}

// AuthCodeURL builds the vendor authorization URL.
func (c *Client) AuthCodeURL(state, redirectURI string) string {
	return c.withRedirect(redirectURI).AuthCodeURL(state, c.opts...)
}

// Exchange trades an authorization code for tokens. No retry.
func (c *Client) Exchange(ctx context.Context, code, redirectURI string) (*TokenSet, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, c.name)
	}
	if code == "" {
		return nil, fmt.Errorf("%w: %s: empty code", ErrExchangeFailed, c.name)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	oc := c.withRedirect(redirectURI)
	if c.secretFn != nil && oc.ClientSecret == "" {
		secret, err := c.secretFn()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: client secret: %v", ErrExchangeFailed, c.name, err)
		}
		oc.ClientSecret = secret
	}
	tok, err := oc.Exchange(ctx, code)
	if err != nil {
		// oauth2.RetrieveError carries the vendor body; keep it out of the message.
		return nil, fmt.Errorf("%w: %s: %s", ErrExchangeFailed, c.name, describe(err))
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: %s: no access_token in response", ErrExchangeFailed, c.name)
	}
	ts := &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if id, ok := tok.Extra("id_token").(string); ok {
		ts.IDToken = id
	}
	if !tok.Expiry.IsZero() {
		ts.ExpiresIn = int(time.Until(tok.Expiry).Round(time.Second).Seconds())
	}
	return ts, nil
}

// GetJSON performs an authenticated GET and decodes a JSON object into out.
// Every failure wraps ErrUserInfoFailed.
func (c *Client) GetJSON(ctx context.Context, endpoint, accessToken string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUserInfoFailed, c.name, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUserInfoFailed, c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return fmt.Errorf("%w: %s: http %d", ErrUserInfoFailed, c.name, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", ErrUserInfoFailed, c.name, err)
	}
	return nil
}

func describe(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		if re.ErrorCode != "" {
			return fmt.Sprintf("http %d %s", re.Response.StatusCode, re.ErrorCode)
		}
		return fmt.Sprintf("http %d", re.Response.StatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return err.Error()
}
