package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/uwscope/scope-web-sub000/internal/authstore"
	"github.com/uwscope/scope-web-sub000/internal/config"
	"github.com/uwscope/scope-web-sub000/internal/devserver"
	"github.com/uwscope/scope-web-sub000/internal/platform/auth"
	"github.com/uwscope/scope-web-sub000/internal/platform/db"
	"github.com/uwscope/scope-web-sub000/internal/platform/metrics"
	"github.com/uwscope/scope-web-sub000/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "scope",
		Short:         "SCOPE care coordination client and development backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(rosterCmd())
	rootCmd.AddCommand(patientCmd())
	rootCmd.AddCommand(checkinCmd())
	rootCmd.AddCommand(pushCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	var seedPassword string
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the development backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(seedPassword, migrate)
		},
	}
	cmd.Flags().StringVar(&seedPassword, "seed-password", "scope-dev", "Password of the demo accounts created in development")
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply pending migrations on startup when DATABASE_URL is set")
	return cmd
}

func runServer(seedPassword string, migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	opts := devserver.Options{
		Metrics:        metrics.NewCollector("scope"),
		Logger:         logger,
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
		HSTS:           cfg.IsProduction(),
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
		},
	}

	if cfg.UsesDatabase() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")

		if migrate {
			m, err := db.Embedded(pool)
			if err != nil {
				return err
			}
			n, err := m.Up(ctx)
			if err != nil {
				logger.Fatal().Err(err).Msg("migration failed")
			}
			logger.Info().Int("applied", n).Msg("migrations up to date")
		}
		opts.Repo = devserver.NewPostgresRepository(pool)
		opts.Pinger = pool
	} else {
		opts.Repo = devserver.NewMemoryRepository()
		logger.Warn().Msg("DATABASE_URL not set, records are kept in memory")
	}

	key, generated, err := resolveSigningKey(cfg.AuthSigningKey)
	if err != nil {
		return err
	}
	if generated {
		logger.Warn().Msg("AUTH_SIGNING_KEY not set, using a random key; sessions end on restart")
	}
	opts.JWT = auth.JWTConfig{Issuer: "scope-dev", SigningKey: key}

	users := authstore.NewLocalProvider(opts.JWT)
	users.OnResetCode = func(username, code string) {
		logger.Info().Str("username", username).Str("code", code).Msg("password reset code")
	}
	opts.Provider = users

	if cfg.IsDev() {
		accounts, err := devserver.Seed(ctx, opts.Repo, users, seedPassword, time.Now())
		if err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
		for _, a := range accounts {
			logger.Info().Str("username", a.Username).Str("role", string(a.Identity.Role)).Msg("demo account")
		}
	}

	e := devserver.New(opts)

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// resolveSigningKey decodes the hex AUTH_SIGNING_KEY or generates a random
// 32-byte key. The second return value is true when the key was generated.
func resolveSigningKey(envValue string) ([]byte, bool, error) {
	if envValue != "" {
		decoded, err := hex.DecodeString(envValue)
		if err != nil {
			return nil, false, fmt.Errorf("invalid AUTH_SIGNING_KEY hex value: %w", err)
		}
		if len(decoded) < 32 {
			return nil, false, fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(decoded))
		}
		return decoded, false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate signing key: %w", err)
	}
	return key, true, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				for _, s := range statuses {
					status, appliedAt := "pending", ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(ctx context.Context, fn func(context.Context, *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.UsesDatabase() {
		return errors.New("DATABASE_URL is not set")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, newLogger(cfg.Env))
	if err != nil {
		return err
	}
	defer pool.Close()

	m, err := db.Embedded(pool)
	if err != nil {
		return err
	}
	return fn(ctx, m)
}
