package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/cpi-data-etl/internal/adapter/bls"
	"github.com/couchcryptid/cpi-data-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/cpi-data-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/cpi-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/cpi-data-etl/internal/observability"
	"github.com/couchcryptid/cpi-data-etl/internal/pipeline"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Query every series and append enriched observations to the output CSV",
		Long: `run fetches the reference feeds, generates the series cross product and
queries the statistics API one paced batch at a time. Rows are appended to
DATA_DIR/OUTPUT_FILE; running twice appends the same rows twice unless
--truncate is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			truncate, _ := cmd.Flags().GetBool("truncate")
			return run(cmd.Context(), observability.NewMetrics(), truncate)
		},
	}
	cmd.Flags().Bool("truncate", false, "clear the output file before the first batch")
	return cmd
}

func run(ctx context.Context, metrics *observability.Metrics, truncate bool) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	catalog, err := loadCatalog(ctx, cfg, logger, true)
	if err != nil {
		return err
	}

	sink := csvfile.NewSink(cfg.OutputPath(), logger)
	if truncate {
		if err := sink.Truncate(); err != nil {
			return err
		}
		logger.Info("output truncated", "path", sink.Path())
	}

	loaders := pipeline.MultiLoader{sink}
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, runID, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		loaders = append(loaders, writer)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	client := bls.NewClient(bls.ClientConfig{
		BaseURL:       cfg.APIURL,
		APIKey:        cfg.APIKey,
		UserAgent:     cfg.UserAgent,
		Timeout:       cfg.APITimeout,
		MaxRetries:    cfg.MaxRetries,
		RetryInterval: cfg.RetryInterval,
	}, logger, metrics)

	p := pipeline.New(client, catalog, loaders, logger, metrics, pipeline.Options{
		BatchSize:    cfg.BatchSize,
		StartYear:    cfg.StartYear,
		EndYear:      cfg.EndYear,
		RequestDelay: cfg.RequestDelay,
		MaxRequests:  cfg.MaxRequests,
	})

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	summary, err := p.Run(ctx)
	if err != nil {
		logger.Error("run aborted",
			"error", err,
			"batches", summary.Batches,
			"skipped", summary.Skipped,
			"records", summary.Records,
			"output", sink.Path(),
		)
		return err
	}

	fmt.Printf("%d series, %d batches (%d skipped), %d records appended to %s\n",
		summary.SeriesIDs, summary.Batches, summary.Skipped, summary.Records, sink.Path())
	return nil
}
