// Package validation agrupa chequeos de formato compartidos por config y servicio.
package validation

import (
	"net/url"
	"regexp"
)

// Scope token (RFC 6749 §3.3): 1*( %x21 / %x23-5B / %x5D-7E ).
// Acepta "openid", "User.Read", "read:user" y scopes URL de Google.
var scopeTokenRe = regexp.MustCompile(`^[\x21\x23-\x5B\x5D-\x7E]{1,256}$`)

// ValidScopeToken reporta si name puede viajar como un scope OAuth.
func ValidScopeToken(name string) bool {
	return scopeTokenRe.MatchString(name)
}

// ValidRedirectURI exige URL absoluta http(s), con host y sin fragmento.
func ValidRedirectURI(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.Fragment != "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
