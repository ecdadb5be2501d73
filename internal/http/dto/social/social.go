// Package social contiene DTOs de los endpoints /auth/oauth/*.
package social

import "time"

// InitiateRequest es el body de POST /auth/oauth/initiate.
type InitiateRequest struct {
	Provider    string `json:"provider"`
	RedirectURI string `json:"redirect_uri"`
}

// InitiateResponse devuelve la URL del vendor y el state a conservar.
type InitiateResponse struct {
	Provider         string `json:"provider"`
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

// CallbackRequest es el body de POST /auth/oauth/callback.
type CallbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// CallbackResponse es la sesión emitida tras el login social.
type CallbackResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsNewUser   bool   `json:"is_new_user"`
	Provider    string `json:"provider"`
}

// Connection es una conexión vista por su dueño. Nunca incluye tokens.
type Connection struct {
	ID            string    `json:"id"`
	Provider      string    `json:"provider"`
	ProviderEmail string    `json:"provider_email"`
	ProviderName  string    `json:"provider_name"`
	ConnectedAt   time.Time `json:"connected_at"`
	LastUsedAt    time.Time `json:"last_used_at"`
}

// ConnectionsResponse es la respuesta de GET /auth/oauth/connections.
type ConnectionsResponse struct {
	Connections []Connection `json:"connections"`
}

// ProvidersResponse lista los providers habilitados.
type ProvidersResponse struct {
	Providers []string `json:"providers"`
}
