// Package app arma el grafo de dependencias del servicio a partir de la config.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dropDatabas3/socialgate/internal/cache"
	"github.com/dropDatabas3/socialgate/internal/config"
	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	healthctrl "github.com/dropDatabas3/socialgate/internal/http/controllers/health"
	socialctrl "github.com/dropDatabas3/socialgate/internal/http/controllers/social"
	"github.com/dropDatabas3/socialgate/internal/http/router"
	"github.com/dropDatabas3/socialgate/internal/jwt"
	"github.com/dropDatabas3/socialgate/internal/metrics"
	"github.com/dropDatabas3/socialgate/internal/oauth/providers"
	"github.com/dropDatabas3/socialgate/internal/oauth/providers/apple"
	"github.com/dropDatabas3/socialgate/internal/oauth/providers/github"
	"github.com/dropDatabas3/socialgate/internal/oauth/providers/google"
	"github.com/dropDatabas3/socialgate/internal/oauth/providers/microsoft"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/dropDatabas3/socialgate/internal/rate"
	"github.com/dropDatabas3/socialgate/internal/security/secretbox"
	"github.com/dropDatabas3/socialgate/internal/social"
	"github.com/dropDatabas3/socialgate/internal/store"
	"github.com/dropDatabas3/socialgate/internal/store/pg"
)

// App es el servicio ensamblado.
type App struct {
	Handler http.Handler

	Service *social.Service
	States  *social.StateStore
	Stores  *store.Stores
	Cache   cache.Client
	Keys    *jwt.KeySet
	Issuer  *jwt.Issuer

	closers []func()
}

// Build abre storage y cache, registra los providers configurados y arma el router.
// Si algo falla a mitad de camino cierra lo que ya había abierto.
func Build(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	log := logger.From(ctx).With(logger.Component("app"))
	a := &App{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Stores, err = store.Open(ctx, store.Config{
		Driver: cfg.Storage.Driver,
		DSN:    cfg.Storage.DSN,
		Pool: pg.PoolConfig{
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}
	a.closers = append(a.closers, a.Stores.Close)

	a.Cache, err = cache.New(ctx, cache.Config{
		Driver:   cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("app: open cache: %w", err)
	}
	a.closers = append(a.closers, func() { _ = a.Cache.Close() })

	stateRepo, err := stateBackend(cfg, a.Stores, a.Cache)
	if err != nil {
		return nil, err
	}
	a.States = social.NewStateStore(stateRepo, cfg.State.TTL)

	registry, err := NewProviderRegistry(cfg)
	if err != nil {
		return nil, err
	}

	a.Keys, err = signingKeys(cfg)
	if err != nil {
		return nil, err
	}
	a.Issuer = jwt.NewIssuer(cfg.JWT.Issuer, a.Keys, cfg.JWT.AccessTTL)

	var sealer social.TokenSealer
	if cfg.Security.TokenEncryptionKey != "" {
		box, err := secretbox.New(cfg.Security.TokenEncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("app: token encryption key: %w", err)
		}
		sealer = box
	} else {
		log.Warn("token_encryption_key vacío: los tokens del provider se guardan en claro")
	}

	a.Service, err = social.NewService(social.Deps{
		Providers:                 registry,
		States:                    a.States,
		Connections:               social.NewConnectionStore(a.Stores.Users, a.Stores.Connections, sealer),
		Provisioner:               social.NewProvisioner(a.Stores.Users),
		Users:                     a.Stores.Users,
		Issuer:                    a.Issuer,
		AllowedRedirectURIs:       cfg.Social.AllowedRedirectURIs,
		LinkRequiresVerifiedEmail: cfg.Social.LinkRequiresVerifiedEmail,
	})
	if err != nil {
		return nil, err
	}

	var pool func() *pgxpool.Pool
	if a.Stores.PG != nil {
		pool = a.Stores.PG.Pool
	}
	metricsHandler, err := metrics.Register(metrics.Config{Pool: pool})
	if err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	rd := router.Deps{
		Social:  socialctrl.NewController(a.Service),
		Health:  healthctrl.NewController(cfg.App.Version, map[string]healthctrl.Check{"db": a.Stores.Ping, "cache": a.Cache.Ping}),
		Auth:    a.Issuer,
		Metrics: metricsHandler,
		JWKS:    a.Keys.JWKSJSON,
	}
	if cfg.Rate.Enabled {
		rd.Limiter = newLimiter(a.Cache, cfg.Cache.Redis.Prefix)
		rd.InitiatePolicy = rate.Policy{Limit: cfg.Rate.Initiate.Limit, Window: cfg.Rate.Initiate.Window}
		rd.CallbackPolicy = rate.Policy{Limit: cfg.Rate.Callback.Limit, Window: cfg.Rate.Callback.Window}
	}
	a.Handler = router.New(rd)

	log.Info("app ready",
		zap.String("storage", a.Stores.Driver),
		zap.String("cache", cfg.Cache.Kind),
		zap.String("state_backend", cfg.State.Backend),
		zap.Strings("providers", registry.Configured()),
		zap.Bool("rate_limit", cfg.Rate.Enabled),
	)
	return a, nil
}

// Close libera recursos en orden inverso de apertura.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func stateBackend(cfg *config.Config, st *store.Stores, c cache.Client) (repository.StateRepository, error) {
	switch cfg.State.Backend {
	case "postgres":
		if st.States == nil {
			return nil, fmt.Errorf("app: state backend postgres requiere storage.driver=postgres")
		}
		return st.States, nil
	case "redis":
		if cfg.Cache.Kind != "redis" {
			return nil, fmt.Errorf("app: state backend redis requiere cache.kind=redis")
		}
		return social.NewCacheStateRepository(c), nil
	case "memory":
		if cfg.Cache.Kind == "redis" {
			// memory explícito con redis configurado: el state queda en proceso
			return social.NewCacheStateRepository(cache.NewMemory(cfg.Cache.Redis.Prefix)), nil
		}
		return social.NewCacheStateRepository(c), nil
	default:
		return nil, fmt.Errorf("app: state backend desconocido %q", cfg.State.Backend)
	}
}

// NewProviderRegistry registra los cuatro vendors. Los que no tienen client_id
// quedan construidos pero sin configurar.
func NewProviderRegistry(cfg *config.Config) (*providers.Registry, error) {
	r := providers.NewRegistry()
	r.RegisterFactory(google.ProviderName, google.Factory)
	r.RegisterFactory(microsoft.ProviderName, microsoft.Factory)
	r.RegisterFactory(github.ProviderName, github.Factory)
	r.RegisterFactory(apple.ProviderName, apple.Factory)

	timeout := cfg.Social.HTTPTimeout
	configs := map[string]providers.Config{}
	add := func(name string, pc config.ProviderConfig) {
		configs[name] = providers.Config{
			ClientID:      pc.ClientID,
			ClientSecret:  pc.ClientSecret,
			Scopes:        pc.Scopes,
			AuthURL:       pc.AuthURL,
			TokenURL:      pc.TokenURL,
			UserInfoURL:   pc.UserInfoURL,
			EmailsURL:     pc.EmailsURL,
			JWKSURL:       pc.JWKSURL,
			Issuer:        pc.Issuer,
			Tenant:        pc.Tenant,
			TeamID:        pc.TeamID,
			KeyID:         pc.KeyID,
			PrivateKeyPEM: pc.PrivateKeyPEM,
			HTTPTimeout:   timeout,
		}
	}
	add(google.ProviderName, cfg.Providers.Google)
	add(microsoft.ProviderName, cfg.Providers.Microsoft)
	add(apple.ProviderName, cfg.Providers.Apple)
	add(github.ProviderName, cfg.Providers.GitHub)

	if err := r.Build(configs); err != nil {
		return nil, fmt.Errorf("app: providers: %w", err)
	}
	return r, nil
}

func signingKeys(cfg *config.Config) (*jwt.KeySet, error) {
	if cfg.JWT.SigningKey != "" {
		ks, err := jwt.FromSeed(cfg.JWT.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("app: signing key: %w", err)
		}
		return ks, nil
	}
	// sólo dev: Validate exige signing_key en prod
	return jwt.NewDevEd25519()
}

func newLimiter(c cache.Client, prefix string) rate.Limiter {
	if rc, ok := c.(*cache.RedisClient); ok {
		return rate.NewRedisLimiter(rc.Raw(), prefix+":rl:")
	}
	return rate.NewMemoryLimiter()
}
