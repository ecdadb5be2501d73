package rate

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter es el mismo fixed window sobre go-cache. Los contadores son por
// proceso: con varias réplicas cada una limita por separado.
type MemoryLimiter struct {
	c   *gocache.Cache
	now func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		c:   gocache.New(gocache.NoExpiration, time.Minute),
		now: time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, p Policy) (Result, error) {
	if !p.Enabled() {
		return Result{Allowed: true}, nil
	}
	now := l.now().UTC()
	winStart := now.Truncate(p.Window)
	k := windowKey("", key, winStart)

	// Add falla si ya existe; el Increment posterior es atómico.
	_ = l.c.Add(k, int64(0), p.Window)
	hits, err := l.c.IncrementInt64(k, 1)
	if err != nil {
		// expiró entre Add e Increment: nueva ventana
		l.c.Set(k, int64(1), p.Window)
		hits = 1
	}
	return evaluate(hits, p, winStart.Add(p.Window).Sub(now)), nil
}
