package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/cpi-data-etl/internal/domain"
)

func codesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codes",
		Short: "Print how many series and API requests a run would need",
		Long: `codes builds the series identifier cross product from the reference
feeds without calling the statistics API, so the request count can be checked
against the daily quota first.

Example:
  cpi codes
  cpi codes --list > series.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, _ := cmd.Flags().GetBool("list")

			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(cmd.Context(), cfg, logger, false)
			if err != nil {
				return err
			}

			ids := domain.GenerateSeriesIDs(catalog.Geographies, catalog.Items)
			out := cmd.OutOrStdout()
			if list {
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			}
			fmt.Fprintf(out, "areas:    %d\nitems:    %d\nseries:   %d\nrequests: %d (batch size %d)\n",
				len(catalog.Geographies), len(catalog.Items), len(ids),
				domain.BatchCount(len(ids), cfg.BatchSize), cfg.BatchSize)
			return nil
		},
	}
	cmd.Flags().BoolP("list", "l", false, "print every series identifier, one per line")
	return cmd
}
