package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/cms/internal/config"
	"github.com/JonMunkholm/cms/internal/core"
	"github.com/JonMunkholm/cms/internal/database"
	"github.com/JonMunkholm/cms/internal/database/memstore"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import customers from an xlsx or csv workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			return runImport(ctx, cmd.OutOrStdout(), svc, args[0], false)
		},
	}
}

type validateOptions struct {
	references string
	strict     bool
}

func newValidateCmd() *cobra.Command {
	var opts validateOptions

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Dry-run an import against an in-memory store",
		Long: "Runs the full import pipeline without a database. Cities and countries\n" +
			"come from the --references YAML file; only IMPORT_* and LOG_* settings are read.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.references, "references", "", "YAML file with cities and countries")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit with a validation error when any row is skipped")
	return cmd
}

func runValidate(ctx context.Context, w io.Writer, path string, opts validateOptions) error {
	cfg, err := config.LoadImport()
	if err != nil {
		return withCode(exitUsage, err)
	}

	store := memstore.New()
	if opts.references != "" {
		data, err := readReferences(opts.references)
		if err != nil {
			return err
		}
		if err := store.SeedReferences(ctx, data); err != nil {
			return withCode(exitValidation, err)
		}
	}

	svc, err := core.NewService(store, cfg.Import)
	if err != nil {
		return withCode(exitUsage, err)
	}
	return runImport(ctx, w, svc, path, opts.strict)
}

func runImport(ctx context.Context, w io.Writer, svc *core.Service, path string, strict bool) error {
	f, err := os.Open(path)
	if err != nil {
		return withCode(exitUsage, err)
	}
	defer f.Close()

	ctx = core.ContextWithSource(ctx, "cli")
	result, err := svc.Import(ctx, filepath.Base(path), f)
	if err != nil {
		return withCode(importExitCode(err), err)
	}
	if err := writeJSONLine(w, result); err != nil {
		return err
	}
	if strict && result.Skipped > 0 {
		return withCode(exitValidation, fmt.Errorf("%d of %d rows skipped", result.Skipped, result.Processed))
	}
	return nil
}
