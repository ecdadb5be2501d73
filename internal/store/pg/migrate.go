package pg

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

// migrationLockID identifica el advisory lock de migraciones.
const migrationLockID int64 = 0x50c1a16a7e

// Migrate aplica los *.sql de fsys que no figuran en schema_migrations, cada uno en su
// transacción, bajo un advisory lock para que varias réplicas puedan arrancar a la vez.
// Devuelve cuántos scripts se aplicaron.
func Migrate(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS) (int, error) {
	log := logger.From(ctx).With(logger.Layer("store"), logger.Component("pg.migrate"))

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	lctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := conn.Exec(lctx, "select pg_advisory_lock($1)", migrationLockID); err != nil {
		return 0, fmt.Errorf("migration lock: %w", err)
	}
	defer func() {
		if _, err := conn.Exec(context.Background(), "select pg_advisory_unlock($1)", migrationLockID); err != nil {
			log.Warn("migration_unlock_failed", logger.Err(err))
		}
	}()

	const ensureTable = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	if _, err := conn.Exec(ctx, ensureTable); err != nil {
		return 0, fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := conn.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return 0, fmt.Errorf("query applied migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return 0, err
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	files, err := PendingFiles(fsys, applied)
	if err != nil {
		return 0, err
	}

	var count int
	for _, name := range files {
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return count, err
		}
		tx, err := conn.Begin(ctx)
		if err != nil {
			return count, fmt.Errorf("begin tx: %w", err)
		}
		if _, err := tx.Exec(ctx, string(b)); err != nil {
			_ = tx.Rollback(ctx)
			return count, fmt.Errorf("exec %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", name); err != nil {
			_ = tx.Rollback(ctx)
			return count, fmt.Errorf("record version %s: %w", name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return count, fmt.Errorf("commit tx: %w", err)
		}
		log.Info("migration_applied", logger.String("version", name))
		count++
	}
	return count, nil
}

// PendingFiles lista los .sql de la raíz de fsys no aplicados, en orden lexicográfico.
func PendingFiles(fsys fs.FS, applied map[string]bool) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(name), ".sql") && !applied[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}
