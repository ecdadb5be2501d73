// Package store abre la capa de persistencia según la configuración.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	"github.com/dropDatabas3/socialgate/internal/store/memory"
	"github.com/dropDatabas3/socialgate/internal/store/pg"
)

type Config struct {
	Driver string // memory | postgres
	DSN    string
	Pool   pg.PoolConfig
}

// Stores agrupa los repositorios abiertos. States es nil salvo con Postgres:
// los estados en memoria o Redis se construyen sobre internal/cache.
type Stores struct {
	Driver      string
	Users       repository.UserRepository
	Connections repository.ConnectionRepository
	States      repository.StateRepository

	PG *pg.Store // nil si el driver no es Postgres

	Ping  func(ctx context.Context) error
	Close func()
}

// Open devuelve los repositorios del driver configurado.
func Open(ctx context.Context, cfg Config) (*Stores, error) {
	switch d := strings.ToLower(cfg.Driver); d {
	case "postgres", "pg", "postgresql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("store: %w: postgres driver requires dsn", repository.ErrNoDatabase)
		}
		s, err := pg.New(ctx, cfg.DSN, cfg.Pool)
		if err != nil {
			return nil, fmt.Errorf("store: open postgres: %w", err)
		}
		return &Stores{
			Driver:      "postgres",
			Users:       s.Users(),
			Connections: s.Connections(),
			States:      s.States(),
			PG:          s,
			Ping:        s.Ping,
			Close:       s.Close,
		}, nil

	case "memory", "":
		s := memory.New()
		return &Stores{
			Driver:      "memory",
			Users:       s.Users(),
			Connections: s.Connections(),
			Ping:        s.Ping,
			Close:       s.Close,
		}, nil

	default:
		return nil, fmt.Errorf("store: unsupported driver: %s", cfg.Driver)
	}
}
