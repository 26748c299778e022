package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/cms/internal/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, err := connectDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			version, err := database.Migrate(ctx, pool)
			if err != nil {
				return withCode(exitDBWrite, fmt.Errorf("migrate: %w", err))
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{"status": "ok", "version": version})
		},
	}
}
