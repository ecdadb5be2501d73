// Package tokens genera tokens opacos y sus digests para persistencia.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// StateBytes is the entropy of a CSRF state token (256 bits).
const StateBytes = 32

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateOpaqueToken devuelve nBytes aleatorios en base64url sin padding.
// Es el valor que viaja al provider como `state`; nunca se persiste en claro.
func GenerateOpaqueToken(nBytes int) (string, error) {
	b, err := randomBytes(nBytes)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// RandomHex returns 2*nBytes lowercase hex characters (sufijos de username).
func RandomHex(nBytes int) (string, error) {
	b, err := randomBytes(nBytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// SHA256Base64URL es la clave de almacenamiento de un state: sha256 en base64url.
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
