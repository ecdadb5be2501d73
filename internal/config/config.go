package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/socialgate/internal/validation"
)

// ProviderConfig son las credenciales y overrides de un vendor OAuth.
// Los endpoints vacíos usan los del vendor.
type ProviderConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`

	AuthURL     string `yaml:"auth_url"`
	TokenURL    string `yaml:"token_url"`
	UserInfoURL string `yaml:"userinfo_url"`
	EmailsURL   string `yaml:"emails_url"` // github
	JWKSURL     string `yaml:"jwks_url"`   // apple
	Issuer      string `yaml:"issuer"`     // apple

	Tenant string `yaml:"tenant"` // microsoft: common | organizations | consumers | <tenant-id>

	// Apple: si hay key, el client_secret se firma (ES256) en cada exchange.
	TeamID        string `yaml:"team_id"`
	KeyID         string `yaml:"key_id"`
	PrivateKeyPEM string `yaml:"private_key"`
}

// RateRule es un límite fixed-window.
type RateRule struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

type Config struct {
	App struct {
		// dev | staging | prod
		Env     string `yaml:"env"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json | console; vacío = según app.env
	} `yaml:"log"`

	Storage struct {
		Driver   string `yaml:"driver"` // memory | postgres
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int32         `yaml:"max_conns"`
			MinConns        int32         `yaml:"min_conns"`
			ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	State struct {
		Backend       string        `yaml:"backend"` // memory | redis | postgres
		TTL           time.Duration `yaml:"ttl"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"state"`

	JWT struct {
		Issuer     string        `yaml:"issuer"`
		AccessTTL  time.Duration `yaml:"access_ttl"`
		SigningKey string        `yaml:"signing_key"` // base64 seed Ed25519 (32 bytes)
	} `yaml:"jwt"`

	Security struct {
		TokenEncryptionKey string `yaml:"token_encryption_key"` // base64(32 bytes); vacío = tokens en claro
	} `yaml:"security"`

	Rate struct {
		Enabled  bool     `yaml:"enabled"`
		Initiate RateRule `yaml:"initiate"`
		Callback RateRule `yaml:"callback"`
	} `yaml:"rate"`

	Social struct {
		AllowedRedirectURIs       []string      `yaml:"allowed_redirect_uris"`
		HTTPTimeout               time.Duration `yaml:"http_timeout"`
		LinkRequiresVerifiedEmail bool          `yaml:"link_requires_verified_email"`
	} `yaml:"social"`

	Providers struct {
		Google    ProviderConfig `yaml:"google"`
		Microsoft ProviderConfig `yaml:"microsoft"`
		Apple     ProviderConfig `yaml:"apple"`
		GitHub    ProviderConfig `yaml:"github"`
	} `yaml:"providers"`
}

// Load lee el YAML (path vacío = sólo defaults + env), aplica defaults,
// overrides por env y valida.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "socialgate"
	}
	if c.State.Backend == "" {
		// por defecto el estado vive donde viven los usuarios
		switch {
		case c.Storage.Driver == "postgres":
			c.State.Backend = "postgres"
		case c.Cache.Kind == "redis":
			c.State.Backend = "redis"
		default:
			c.State.Backend = "memory"
		}
	}
	if c.State.TTL == 0 {
		c.State.TTL = 10 * time.Minute
	}
	if c.State.SweepInterval == 0 {
		c.State.SweepInterval = time.Minute
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "http://localhost" + c.Server.Addr
	}
	if c.JWT.AccessTTL == 0 {
		c.JWT.AccessTTL = 15 * time.Minute
	}
	if c.Rate.Initiate.Limit == 0 {
		c.Rate.Initiate.Limit = 30
	}
	if c.Rate.Initiate.Window == 0 {
		c.Rate.Initiate.Window = time.Minute
	}
	if c.Rate.Callback.Limit == 0 {
		c.Rate.Callback.Limit = 20
	}
	if c.Rate.Callback.Window == 0 {
		c.Rate.Callback.Window = time.Minute
	}
	if c.Social.HTTPTimeout == 0 {
		c.Social.HTTPTimeout = 5 * time.Second
	}
	if c.Providers.Microsoft.Tenant == "" {
		c.Providers.Microsoft.Tenant = "common"
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

func setStr(dst *string, key string) {
	if v, ok := getEnvStr(key); ok {
		*dst = v
	}
}

func setDur(dst *time.Duration, key string) {
	if v, ok := getEnvDur(key); ok {
		*dst = v
	}
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	setStr(&c.App.Version, "APP_VERSION")
	setStr(&c.Server.Addr, "SERVER_ADDR")
	setStr(&c.Log.Level, "LOG_LEVEL")
	setStr(&c.Log.Format, "LOG_FORMAT")

	setStr(&c.Storage.Driver, "STORAGE_DRIVER")
	setStr(&c.Storage.DSN, "STORAGE_DSN")
	if v, ok := getEnvInt("STORAGE_PG_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = int32(v)
	}

	setStr(&c.Cache.Kind, "CACHE_KIND")
	setStr(&c.Cache.Redis.Addr, "REDIS_ADDR")
	setStr(&c.Cache.Redis.Password, "REDIS_PASSWORD")
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	setStr(&c.Cache.Redis.Prefix, "REDIS_PREFIX")

	setStr(&c.State.Backend, "STATE_BACKEND")
	setDur(&c.State.TTL, "STATE_TTL")
	setDur(&c.State.SweepInterval, "STATE_SWEEP_INTERVAL")

	setStr(&c.JWT.Issuer, "JWT_ISSUER")
	setDur(&c.JWT.AccessTTL, "JWT_ACCESS_TTL")
	setStr(&c.JWT.SigningKey, "SIGNING_KEY")
	setStr(&c.Security.TokenEncryptionKey, "TOKEN_ENCRYPTION_KEY")

	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}

	if v, ok := getEnvCSV("SOCIAL_ALLOWED_REDIRECT_URIS"); ok {
		c.Social.AllowedRedirectURIs = v
	}
	setDur(&c.Social.HTTPTimeout, "SOCIAL_HTTP_TIMEOUT")
	if v, ok := getEnvBool("SOCIAL_LINK_REQUIRES_VERIFIED_EMAIL"); ok {
		c.Social.LinkRequiresVerifiedEmail = v
	}

	for name, p := range c.providerConfigs() {
		prefix := strings.ToUpper(name)
		setStr(&p.ClientID, prefix+"_CLIENT_ID")
		setStr(&p.ClientSecret, prefix+"_CLIENT_SECRET")
		if v, ok := getEnvCSV(prefix + "_SCOPES"); ok {
			p.Scopes = v
		}
	}
	setStr(&c.Providers.Microsoft.Tenant, "MICROSOFT_TENANT")
	setStr(&c.Providers.Apple.TeamID, "APPLE_TEAM_ID")
	setStr(&c.Providers.Apple.KeyID, "APPLE_KEY_ID")
	setStr(&c.Providers.Apple.PrivateKeyPEM, "APPLE_PRIVATE_KEY")
}

func (c *Config) providerConfigs() map[string]*ProviderConfig {
	return map[string]*ProviderConfig{
		"google":    &c.Providers.Google,
		"microsoft": &c.Providers.Microsoft,
		"apple":     &c.Providers.Apple,
		"github":    &c.Providers.GitHub,
	}
}

// IsProd reporta si app.env es prod.
func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// Validate performs validation of critical configuration values.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q not supported (memory|postgres)", c.Storage.Driver))
	}

	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			errs = append(errs, errors.New("cache.redis.addr is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.kind %q not supported (memory|redis)", c.Cache.Kind))
	}

	switch c.State.Backend {
	case "memory":
	case "redis":
		if c.Cache.Kind != "redis" {
			errs = append(errs, errors.New("state.backend redis requires cache.kind redis"))
		}
	case "postgres":
		if c.Storage.Driver != "postgres" {
			errs = append(errs, errors.New("state.backend postgres requires storage.driver postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("state.backend %q not supported (memory|redis|postgres)", c.State.Backend))
	}
	if c.State.TTL < 0 || c.State.TTL > time.Hour {
		errs = append(errs, errors.New("state.ttl must be between 0 and 1h"))
	}

	for _, u := range c.Social.AllowedRedirectURIs {
		if !validation.ValidRedirectURI(strings.TrimSpace(u)) {
			errs = append(errs, fmt.Errorf("social.allowed_redirect_uris: %q must be an absolute http(s) URL without fragment", u))
		}
	}
	for name, p := range c.providerConfigs() {
		for _, sc := range p.Scopes {
			if !validation.ValidScopeToken(sc) {
				errs = append(errs, fmt.Errorf("providers.%s.scopes: invalid scope %q", name, sc))
			}
		}
	}

	if c.IsProd() {
		if c.JWT.SigningKey == "" {
			errs = append(errs, errors.New("jwt.signing_key is required in prod"))
		}
		if c.Security.TokenEncryptionKey == "" {
			errs = append(errs, errors.New("security.token_encryption_key is required in prod"))
		}
		if len(c.Social.AllowedRedirectURIs) == 0 {
			errs = append(errs, errors.New("social.allowed_redirect_uris is required in prod"))
		}
	}
	return errors.Join(errs...)
}
