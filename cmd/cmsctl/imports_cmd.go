package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/cms/internal/core"
	"github.com/JonMunkholm/cms/internal/database"
)

func newImportsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "imports",
		Short: "List recent import runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, err := connectDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			runs, err := database.NewStore(pool).ListImports(ctx, limit)
			if err != nil {
				return withCode(exitDB, err)
			}
			for _, run := range runs {
				if err := writeJSONLine(cmd.OutOrStdout(), run); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to list")
	return cmd
}

func newRollbackCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "rollback IMPORT_ID",
		Short: "Delete every customer created by an import run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("invalid import id: %w", err))
			}
			if !yes {
				return withCode(exitSafetyNet, errors.New("refusing to rollback without --yes"))
			}

			ctx := cmd.Context()
			cfg, pool, err := connectDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc, err := core.NewService(database.NewStore(pool), cfg.Import)
			if err != nil {
				return withCode(exitUsage, err)
			}

			result, err := svc.RollbackImport(core.ContextWithSource(ctx, "cli"), id)
			switch {
			case errors.Is(err, core.ErrImportNotFound), errors.Is(err, core.ErrAlreadyRolledBack):
				return withCode(exitValidation, err)
			case err != nil:
				return withCode(exitDBWrite, err)
			}
			return writeJSONLine(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm destructive rollback")
	return cmd
}
