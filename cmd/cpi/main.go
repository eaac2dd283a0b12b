package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/cpi-data-etl/internal/adapter/reference"
	"github.com/couchcryptid/cpi-data-etl/internal/config"
	"github.com/couchcryptid/cpi-data-etl/internal/domain"
	"github.com/couchcryptid/cpi-data-etl/internal/observability"
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "cpi",
		Short: "Extract BLS consumer price index series into a flat CSV file",
		Long: `cpi builds every CU (all urban consumers, not seasonally adjusted,
regular) series for the metro areas and item categories published in the BLS
reference feeds, queries the BLS Public Data API in paced batches of at most
50 series, and appends the enriched observations to a CSV file.

Configuration comes from environment variables (a .env file is loaded when
present) and an optional YAML file named by CPI_CONFIG.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(codesCmd())
	rootCmd.AddCommand(referenceCmd())
	rootCmd.AddCommand(validateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger shared by all commands.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, observability.NewLogger(cfg.LogLevel, cfg.LogFormat), nil
}

// loadCatalog fetches both reference feeds and applies the geography and
// item filters. When keepIntermediates is set the trimmed feeds are also
// written to the data directory.
func loadCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger, keepIntermediates bool) (*domain.Catalog, error) {
	fetcher := reference.NewFetcher(cfg.UserAgent, cfg.APITimeout, logger)

	areaFeed, err := fetcher.Fetch(ctx, cfg.AreaFeed)
	if err != nil {
		return nil, fmt.Errorf("fetch area feed: %w", err)
	}
	itemFeed, err := fetcher.Fetch(ctx, cfg.ItemFeed)
	if err != nil {
		return nil, fmt.Errorf("fetch item feed: %w", err)
	}

	if keepIntermediates {
		for name, feed := range map[string]reference.Feed{"cu_area": areaFeed, "cu_item": itemFeed} {
			path := cfg.IntermediatePath(name)
			if err := reference.WriteIntermediate(path, feed); err != nil {
				return nil, fmt.Errorf("write %s: %w", name, err)
			}
			logger.Info("reference feed saved", "path", path, "rows", len(feed.Lines))
		}
	}

	geographies, err := domain.LoadGeographies(areaFeed.Lines)
	if err != nil {
		return nil, fmt.Errorf("area feed: %w", err)
	}
	items, err := domain.LoadItems(itemFeed.Lines)
	if err != nil {
		return nil, fmt.Errorf("item feed: %w", err)
	}

	logger.Info("reference catalog loaded",
		"areas_total", len(areaFeed.Lines),
		"areas_kept", len(geographies),
		"items_total", len(itemFeed.Lines),
		"items_kept", len(items),
	)
	return domain.NewCatalog(geographies, items), nil
}
