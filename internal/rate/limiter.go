package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Policy es un límite fixed-window: Limit hits por Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Enabled reporta si la política limita algo.
func (p Policy) Enabled() bool { return p.Limit > 0 && p.Window > 0 }

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

// Limiter cuenta hits por key dentro de la ventana de la política.
type Limiter interface {
	Allow(ctx context.Context, key string, p Policy) (Result, error)
}

// RedisLimiter: fixed window sencillo (INCR + EXPIRE NX), compartido entre instancias.
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
	now    func() time.Time
}

func NewRedisLimiter(client *rdb.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{Client: client, Prefix: prefix, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, p Policy) (Result, error) {
	if !p.Enabled() {
		return Result{Allowed: true}, nil
	}
	now := l.now().UTC()
	winStart := now.Truncate(p.Window)
	redisKey := windowKey(l.Prefix, key, winStart)

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, p.Window)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}
	return evaluate(incr.Val(), p, ttl.Val()), nil
}

func windowKey(prefix, key string, winStart time.Time) string {
	return fmt.Sprintf("%s%s:%d", prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())
}

func evaluate(hits int64, p Policy, ttl time.Duration) Result {
	limit := int64(p.Limit)
	remaining := limit - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:     hits <= limit,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   ttl,
	}
	if !res.Allowed {
		// Retry after: resto de la ventana
		res.RetryAfter = ttl
		if res.RetryAfter <= 0 {
			res.RetryAfter = p.Window
		}
	}
	return res
}
