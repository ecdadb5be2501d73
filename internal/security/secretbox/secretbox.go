// Package secretbox cifra valores cortos (tokens de providers) para guardarlos en la base.
//
// Formato: base64(nonce)|base64(ciphertext), XChaCha20-Poly1305 con clave de 32 bytes.
package secretbox

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const sep = "|"

var (
	ErrInvalidKey    = errors.New("secretbox: invalid key")
	ErrInvalidFormat = errors.New("secretbox: invalid format, expected base64(nonce)|base64(ciphertext)")
)

// Box seals and opens strings with a fixed key. Safe for concurrent use.
type Box struct {
	key []byte
}

// New parsea la clave (base64 std, base64 raw o hex de 64 chars) y devuelve un Box.
func New(key string) (*Box, error) {
	k, err := parseKey(key)
	if err != nil {
		return nil, err
	}
	return &Box{key: k}, nil
}

func parseKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if b, err := base64.StdEncoding.DecodeString(key); err == nil && len(b) == chacha20poly1305.KeySize {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(key); err == nil && len(b) == chacha20poly1305.KeySize {
		return b, nil
	}
	if len(key) == 2*chacha20poly1305.KeySize {
		if b, err := hex.DecodeString(key); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: requires %d bytes as base64 or hex", ErrInvalidKey, chacha20poly1305.KeySize)
}

// Seal cifra plainText. Empty input stays empty so nullable columns remain null.
func (b *Box) Seal(plainText string) (string, error) {
	if plainText == "" {
		return "", nil
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", fmt.Errorf("secretbox: aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secretbox: nonce: %w", err)
	}
	ct := aead.Seal(nil, nonce, []byte(plainText), nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Open descifra un valor producido por Seal.
func (b *Box) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	parts := strings.Split(sealed, sep)
	if len(parts) != 2 {
		return "", ErrInvalidFormat
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("secretbox: decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("secretbox: decode ciphertext: %w", err)
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", fmt.Errorf("secretbox: aead: %w", err)
	}
	if len(nonce) != aead.NonceSize() {
		return "", fmt.Errorf("secretbox: nonce: expected %d bytes, got %d", aead.NonceSize(), len(nonce))
	}
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("secretbox: auth/decrypt: %w", err)
	}
	return string(pt), nil
}
