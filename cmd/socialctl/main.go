package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/socialgate/internal/config"
	"github.com/dropDatabas3/socialgate/internal/security/password"
	"github.com/dropDatabas3/socialgate/internal/social"
	"github.com/dropDatabas3/socialgate/internal/store"
	"github.com/dropDatabas3/socialgate/internal/store/pg"
	migrations "github.com/dropDatabas3/socialgate/migrations/postgres"
)

func main() {
	var (
		configPath = envOr("CONFIG_PATH", "")
		envFile    = ".env"
		out        = envOr("SOCIALCTL_OUT", "text")
		timeout    = 30 * time.Second
	)
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "socialctl",
		Short:         "Operaciones de mantenimiento de socialgate (DB directa)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "gen-keys" {
				return nil
			}
			if envFile != "" {
				_ = godotenv.Load(envFile)
			}
			c, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			cfg = c
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "ruta a config.yaml (env CONFIG_PATH; vacío = sólo env)")
	root.PersistentFlags().StringVar(&envFile, "env-file", envFile, "ruta a .env (si existe, se carga)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	openStores := func(ctx context.Context) (*store.Stores, error) {
		return store.Open(ctx, store.Config{
			Driver: cfg.Storage.Driver,
			DSN:    cfg.Storage.DSN,
			Pool:   pg.PoolConfig{MaxConns: 2},
		})
	}

	// migrate: aplica migrations/postgres (embebidas) en orden
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones SQL pendientes (sólo postgres)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			st, err := openStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if st.PG == nil {
				return fmt.Errorf("migrate requiere storage.driver=postgres (actual: %s)", st.Driver)
			}
			n, err := pg.Migrate(ctx, st.PG.Pool(), migrations.FS)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			return printResult(out, map[string]any{"applied": n}, fmt.Sprintf("migraciones aplicadas: %d", n))
		},
	}

	// sweep-states: barrido único de estados CSRF vencidos
	sweepCmd := &cobra.Command{
		Use:   "sweep-states",
		Short: "Borra estados OAuth vencidos (backend postgres)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			st, err := openStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if st.States == nil {
				return fmt.Errorf("sweep-states requiere storage.driver=postgres (los backends de cache expiran solos)")
			}
			n, err := social.NewStateStore(st.States, cfg.State.TTL).CleanupExpired(ctx)
			if err != nil {
				return err
			}
			return printResult(out, map[string]any{"removed": n}, fmt.Sprintf("estados borrados: %d", n))
		},
	}

	// connections list --user
	var listUser string
	connListCmd := &cobra.Command{
		Use:   "list",
		Short: "Lista las conexiones OAuth de un usuario",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listUser == "" {
				return fmt.Errorf("--user es requerido")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			st, err := openStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			conns, err := st.Connections.ListByUser(ctx, listUser)
			if err != nil {
				return err
			}
			if out == "json" {
				rows := make([]map[string]any, 0, len(conns))
				for _, c := range conns {
					rows = append(rows, map[string]any{
						"id":             c.ID,
						"provider":       c.Provider,
						"provider_email": c.ProviderEmail,
						"provider_name":  c.ProviderName,
						"connected_at":   c.CreatedAt.UTC().Format(time.RFC3339),
						"last_used_at":   c.LastUsedAt.UTC().Format(time.RFC3339),
					})
				}
				return printResult(out, map[string]any{"connections": rows}, "")
			}
			if len(conns) == 0 {
				fmt.Println("sin conexiones")
				return nil
			}
			for _, c := range conns {
				fmt.Printf("%s\t%s\t%s\t%s\n", c.ID, c.Provider, c.ProviderEmail, c.LastUsedAt.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
	connListCmd.Flags().StringVar(&listUser, "user", "", "ID del usuario")

	// users enable|disable --user
	var activeUser string
	setActive := func(active bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			if activeUser == "" {
				return fmt.Errorf("--user es requerido")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			st, err := openStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Users.SetActive(ctx, activeUser, active); err != nil {
				return err
			}
			return printResult(out, map[string]any{"user_id": activeUser, "active": active}, "ok")
		}
	}
	disableCmd := &cobra.Command{Use: "disable", Short: "Bloquea el login del usuario", RunE: setActive(false)}
	enableCmd := &cobra.Command{Use: "enable", Short: "Rehabilita el login del usuario", RunE: setActive(true)}
	disableCmd.Flags().StringVar(&activeUser, "user", "", "ID del usuario")
	enableCmd.Flags().StringVar(&activeUser, "user", "", "ID del usuario")

	// users set-password --user (lee la contraseña de stdin)
	var pwUser, pwBlacklist string
	setPasswordCmd := &cobra.Command{
		Use:   "set-password",
		Short: "Asigna contraseña local a un usuario (stdin); permite desvincular su último provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pwUser == "" {
				return fmt.Errorf("--user es requerido")
			}
			pol := password.DefaultPolicy
			if pwBlacklist != "" {
				f, err := os.Open(pwBlacklist)
				if err != nil {
					return err
				}
				bl, err := password.ReadBlacklist(f)
				f.Close()
				if err != nil {
					return err
				}
				pol.Blacklist = bl
			}
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			plain := strings.TrimRight(line, "\r\n")
			if err := pol.Check(plain); err != nil {
				return err
			}
			hash, err := password.Hash(password.Default, plain)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			st, err := openStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Users.SetPasswordHash(ctx, pwUser, hash); err != nil {
				return err
			}
			return printResult(out, map[string]any{"user_id": pwUser, "password_set": true}, "ok")
		},
	}
	setPasswordCmd.Flags().StringVar(&pwUser, "user", "", "ID del usuario")
	setPasswordCmd.Flags().StringVar(&pwBlacklist, "blacklist", "", "archivo con contraseñas prohibidas (una por línea)")

	// gen-keys: material para SIGNING_KEY y TOKEN_ENCRYPTION_KEY
	genKeysCmd := &cobra.Command{
		Use:   "gen-keys",
		Short: "Genera SIGNING_KEY (seed Ed25519) y TOKEN_ENCRYPTION_KEY (32 bytes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			signing, err := randomB64(32)
			if err != nil {
				return err
			}
			enc, err := randomB64(32)
			if err != nil {
				return err
			}
			fmt.Printf("SIGNING_KEY=%s\nTOKEN_ENCRYPTION_KEY=%s\n", signing, enc)
			return nil
		},
	}

	// wiring
	connectionsCmd := &cobra.Command{Use: "connections", Short: "Operaciones sobre conexiones OAuth"}
	connectionsCmd.AddCommand(connListCmd)
	usersCmd := &cobra.Command{Use: "users", Short: "Operaciones sobre usuarios"}
	usersCmd.AddCommand(disableCmd, enableCmd, setPasswordCmd)

	root.AddCommand(migrateCmd, sweepCmd, connectionsCmd, usersCmd, genKeysCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func printResult(format string, v any, text string) error {
	if format == "json" {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	}
	if text != "" {
		fmt.Println(text)
	}
	return nil
}

func randomB64(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
