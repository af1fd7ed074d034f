package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-auth/idm"
	"github.com/tendant/simple-auth/internal/config"
	"github.com/tendant/simple-auth/internal/repository"
	"github.com/tendant/simple-auth/internal/telemetry"
)

const serviceName = "simple-auth"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the environment is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Email/password authentication service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore error if not found)
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			a.cfg = cfg
			a.logger = newLogger(cfg)
			slog.SetDefault(a.logger)
			return nil
		},
	}

	cmd.AddCommand(newServeCommand(a))
	cmd.AddCommand(newMigrateCommand(a))
	cmd.AddCommand(newTokensCommand(a))
	return cmd
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := a.logger

	shutdownTracing, err := telemetry.SetupTracing(ctx, serviceName, a.cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("tracing shutdown error", "error", err)
		}
	}()

	svc, err := idm.New(ctx, idm.ConfigFromEnv(a.cfg, logger))
	if err != nil {
		return err
	}
	defer svc.Close()

	logger.Info("store ready", "mail_driver", a.cfg.Mail.Driver)

	if n, err := svc.PruneExpiredTokens(ctx); err != nil {
		logger.Warn("failed to prune expired tokens", "error", err)
	} else if n > 0 {
		logger.Info("pruned expired tokens", "count", n)
	}

	addr := a.cfg.Addr()
	server := &http.Server{
		Addr:         addr,
		Handler:      svc.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

func newMigrateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(ctx context.Context, store repository.Store) error {
				if err := store.Migrate(ctx); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				a.logger.Info("migrations applied")
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the state of every migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(ctx context.Context, store repository.Store) error {
				return store.MigrationStatus(ctx)
			})
		},
	})
	return cmd
}

func newTokensCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Single-use token maintenance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete expired verification and reset tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(ctx context.Context, store repository.Store) error {
				n, err := store.DeleteExpiredTokens(ctx, time.Now())
				if err != nil {
					return fmt.Errorf("prune tokens: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired tokens\n", n)
				return nil
			})
		},
	})
	return cmd
}

func (a *app) withStore(ctx context.Context, fn func(context.Context, repository.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := repository.Open(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}
