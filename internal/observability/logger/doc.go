// Package logger provides a singleton Zap logger with context-based scoping.
//
// # Design Decisions
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Context Scoping: cada request lleva su propio logger "scoped" con request_id,
//     method y path, inyectado por el middleware de logging. Enrich le suma
//     campos más adelante (p.ej. user_id tras RequireAuth).
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//   - Levels: debug, info, warn, error (configurable via LOG_LEVEL).
//
// # Usage
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{
//	    Env:   cfg.App.Env,   // "dev" o "prod"
//	    Level: cfg.Log.Level, // "debug", "info", "warn", "error"
//	})
//	defer logger.Sync()
//
// En controllers/services (con contexto):
//
//	log := logger.From(ctx).With(logger.Component("social.callback"))
//	log.Info("user provisioned", logger.UserID(userID), logger.Provider("google"))
//
// Sin contexto (fallback a singleton):
//
//	logger.L().Info("application started")
package logger
