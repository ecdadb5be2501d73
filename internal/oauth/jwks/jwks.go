// Package jwks fetches and caches remote JSON Web Key Sets (RSA only) used to
// verify vendor-signed id_tokens.
package jwks

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var ErrKeyNotFound = errors.New("jwks: kid not found")

const (
	// minRefetch acota los refetch por kid desconocido.
	minRefetch   = 30 * time.Second
	fetchTimeout = 5 * time.Second
)

type jwk struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"` // base64url
	E   string `json:"e"` // base64url
}

type document struct {
	Keys []jwk `json:"keys"`
}

// Cache keeps the parsed key set for ttl. A lookup for an unknown kid forces
// one refresh (vendors rotate keys), at most once per minRefetch; concurrent
// refreshes collapse into one HTTP call that outlives any single caller's ctx.
type Cache struct {
	url        string
	ttl        time.Duration
	minRefetch time.Duration
	http       *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetched   time.Time
	attempted time.Time
	lastErr   error
	etag      string

	sf  singleflight.Group
	now func() time.Time
}

// New creates a cache for url. httpClient may be nil.
func New(url string, ttl time.Duration, httpClient *http.Client) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Cache{url: url, ttl: ttl, minRefetch: min(minRefetch, ttl), http: httpClient, now: time.Now}
}

func (c *Cache) lookup(kid string) (*rsa.PublicKey, bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.keys[kid]
	fresh := c.keys != nil && c.now().Sub(c.fetched) < c.ttl
	return k, ok, fresh
}

// throttled: hubo un fetch terminado hace menos de minRefetch.
func (c *Cache) throttled() (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.attempted.IsZero() {
		return false, nil
	}
	return c.now().Sub(c.attempted) < c.minRefetch, c.lastErr
}

// Key returns the RSA public key for kid.
func (c *Cache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	k, ok, fresh := c.lookup(kid)
	if ok && fresh {
		return k, nil
	}

	if wait, lastErr := c.throttled(); wait {
		// un fetch concurrente pudo haber terminado recién
		if k, ok, _ := c.lookup(kid); ok {
			return k, nil
		}
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrKeyNotFound, kid, lastErr)
		}
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}

	if err := c.refresh(ctx); err != nil {
		if ok {
			// stale but known: better than failing the login
			return k, nil
		}
		return nil, err
	}

	if k, ok, _ := c.lookup(kid); ok {
		return k, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
}

// refresh corre el fetch compartido con ctx propio: cancelar al primer caller
// no hace fallar a los demás que esperan el mismo resultado.
func (c *Cache) refresh(ctx context.Context) error {
	ch := c.sf.DoChan("refresh", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		err := c.fetch(fctx)
		c.mu.Lock()
		c.attempted = c.now()
		c.lastErr = err
		c.mu.Unlock()
		return nil, err
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (c *Cache) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	c.mu.RLock()
	etag := c.etag
	c.mu.RUnlock()
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("jwks: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		c.mu.Lock()
		c.fetched = c.now()
		c.mu.Unlock()
		return nil
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("jwks: http %d", resp.StatusCode)
	}

	var doc document
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&doc); err != nil {
		return fmt.Errorf("jwks: decode: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		pub, err := rsaKey(k)
		if err != nil {
			return fmt.Errorf("jwks: key %s: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}

	c.mu.Lock()
	c.keys = keys
	c.fetched = c.now()
	c.etag = resp.Header.Get("ETag")
	c.mu.Unlock()
	return nil
}

func rsaKey(k jwk) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	e := 65537
	if len(eb) > 0 {
		// big-endian bytes to int
		e = 0
		for _, b := range eb {
			e = (e << 8) | int(b)
		}
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}

// EncodeRSA renders pub as a JWK entry. Used to serve test key sets.
func EncodeRSA(kid string, pub *rsa.PublicKey) map[string]string {
	return map[string]string{
		"kty": "RSA",
		"alg": "RS256",
		"use": "sig",
		"kid": kid,
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}
