package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/socialgate/internal/cache"
	"github.com/dropDatabas3/socialgate/internal/domain/repository"
)

const stateKeyPrefix = "oauth_state:"

// stateGrace mantiene la entrada un poco más que su expires_at para que
// VerifyAndConsume pueda distinguir "vencido" de "desconocido".
const stateGrace = time.Minute

// CacheStateRepository adapta cache.Client (memory o Redis) a repository.StateRepository.
// Consume usa GetDel, atómico en ambos backends.
type CacheStateRepository struct {
	Client cache.Client
	Grace  time.Duration
}

func NewCacheStateRepository(client cache.Client) *CacheStateRepository {
	return &CacheStateRepository{Client: client, Grace: stateGrace}
}

func (a *CacheStateRepository) Save(ctx context.Context, st *repository.OAuthState, ttl time.Duration) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return a.Client.Set(ctx, stateKeyPrefix+st.Key, string(b), ttl+a.Grace)
}

func (a *CacheStateRepository) Consume(ctx context.Context, key string) (*repository.OAuthState, error) {
	raw, err := a.Client.GetDel(ctx, stateKeyPrefix+key)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var st repository.OAuthState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("state payload: %w", err)
	}
	return &st, nil
}

// DeleteExpired: Redis expira por TTL; el backend en memoria purga a demanda.
func (a *CacheStateRepository) DeleteExpired(_ context.Context, _ time.Time) (int, error) {
	type purger interface {
		DeleteExpired()
		ItemCount() int
	}
	p, ok := a.Client.(purger)
	if !ok {
		return 0, nil
	}
	before := p.ItemCount()
	p.DeleteExpired()
	return before - p.ItemCount(), nil
}
