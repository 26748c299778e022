package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/cms/internal/core"
	"github.com/JonMunkholm/cms/internal/database"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Upsert cities and countries from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readReferences(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			_, pool, err := connectDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.NewStore(pool).SeedReferences(ctx, data); err != nil {
				return withCode(exitDBWrite, fmt.Errorf("seed: %w", err))
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{
				"status":    "ok",
				"countries": len(data.Countries),
				"cities":    len(data.Cities),
			})
		},
	}
}

func readReferences(path string) (core.ReferenceData, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.ReferenceData{}, withCode(exitUsage, err)
	}
	defer f.Close()

	data, err := core.LoadReferenceData(f)
	if err != nil {
		return core.ReferenceData{}, withCode(exitValidation, fmt.Errorf("%s: %w", path, err))
	}
	return data, nil
}
