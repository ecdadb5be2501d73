package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configura el logger.
type Config struct {
	// Env: "dev" o "prod". Define defaults de formato y stacktraces.
	Env string

	// Level: "debug", "info", "warn", "error". Default "info".
	Level string

	// Format fuerza "json" o "console"; vacío = según Env.
	Format string

	ServiceName string
	Version     string
}

func (c Config) isProd() bool { return strings.EqualFold(c.Env, "prod") }

// encoding resuelve el encoder efectivo.
func (c Config) encoding() string {
	switch strings.ToLower(strings.TrimSpace(c.Format)) {
	case "json":
		return "json"
	case "console", "text":
		return "console"
	}
	if c.isProd() {
		return "json"
	}
	return "console"
}

func build(cfg Config) *zap.Logger {
	var zcfg zap.Config
	if cfg.isProd() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.DisableStacktrace = true
	}
	zcfg.Encoding = cfg.encoding()
	if zcfg.Encoding == "json" {
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zcfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	} else {
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	zcfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	opts := []zap.Option{zap.AddCaller()}
	if cfg.isProd() {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	l, err := zcfg.Build(opts...)
	if err != nil {
		l, _ = zap.NewProduction()
	}

	var base []zap.Field
	if cfg.ServiceName != "" {
		base = append(base, zap.String("service", cfg.ServiceName))
	}
	if cfg.Version != "" {
		base = append(base, zap.String("version", cfg.Version))
	}
	if len(base) > 0 {
		l = l.With(base...)
	}
	return l
}

func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
