package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryClient implementa Client sobre patrickmn/go-cache.
// Útil para desarrollo, testing y despliegues de una sola instancia.
type MemoryClient struct {
	prefix string
	c      *gocache.Cache

	// go-cache no tiene get-and-delete; mu serializa GetDel contra Set/Delete.
	mu sync.Mutex
}

// NewMemory crea un cliente de cache en memoria. Las entradas expiradas se purgan cada minuto.
func NewMemory(prefix string) *MemoryClient {
	return &MemoryClient{
		prefix: prefix,
		c:      gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (m *MemoryClient) key(k string) string { return prefixed(m.prefix, k) }

func (m *MemoryClient) Get(_ context.Context, key string) (string, error) {
	v, ok := m.c.Get(m.key(key))
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *MemoryClient) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.mu.Lock()
	m.c.Set(m.key(key), value, ttl)
	m.mu.Unlock()
	return nil
}

func (m *MemoryClient) GetDel(_ context.Context, key string) (string, error) {
	k := m.key(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.c.Get(k)
	if !ok {
		return "", ErrNotFound
	}
	m.c.Delete(k)
	s, _ := v.(string)
	return s, nil
}

func (m *MemoryClient) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	m.c.Delete(m.key(key))
	m.mu.Unlock()
	return nil
}

func (m *MemoryClient) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.c.Get(m.key(key))
	return ok, nil
}

// DeleteExpired purga las entradas vencidas sin esperar al janitor de go-cache.
func (m *MemoryClient) DeleteExpired() { m.c.DeleteExpired() }

// ItemCount incluye entradas expiradas que todavía no fueron purgadas.
func (m *MemoryClient) ItemCount() int { return m.c.ItemCount() }

func (m *MemoryClient) Ping(context.Context) error { return nil }

func (m *MemoryClient) Close() error {
	m.c.Flush()
	return nil
}
