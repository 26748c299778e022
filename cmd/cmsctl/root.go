package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/cms/internal/config"
	"github.com/JonMunkholm/cms/internal/database"
	"github.com/JonMunkholm/cms/internal/logging"
)

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "cmsctl",
		Short:         "Customer import and maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return withCode(exitUsage, fmt.Errorf("load %s: %w", envFile, err))
				}
			} else {
				_ = godotenv.Load()
			}
			// Logs go to stderr; stdout carries the JSON results.
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), envOr("LOG_LEVEL", "warn"), envOr("LOG_FORMAT", "text")))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file (default: .env if present)")

	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newImportsCmd())
	cmd.AddCommand(newRollbackCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}

// connectDB loads the full configuration and opens a pool.
func connectDB(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, withCode(exitUsage, err)
	}
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, withCode(exitDB, err)
	}
	return cfg, pool, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
