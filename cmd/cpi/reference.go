package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func referenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reference",
		Short: "Download the area and item feeds and save the trimmed copies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(cmd.Context(), cfg, logger, true)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d areas, %d items kept\n%s\n%s\n",
				len(catalog.Geographies), len(catalog.Items),
				cfg.IntermediatePath("cu_area"), cfg.IntermediatePath("cu_item"))
			return nil
		},
	}
}
