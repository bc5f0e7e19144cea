package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/marketpipe/marketpipe/internal/config"
	"github.com/marketpipe/marketpipe/internal/ingest"
	"github.com/marketpipe/marketpipe/internal/stream"
)

func runIngest(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadIngest()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveMetrics(cmd)

	producer, err := stream.NewProducer(cfg.Brokers(), cfg.KafkaTopic)
	if err != nil {
		return err
	}
	defer producer.Close(context.Background())

	var lookup ingest.Validator
	if cfg.ValidateTickers {
		lookup = ingest.NewSymbolLookup(cfg.APIToken)
	}

	log.Info().Strs("tickers", cfg.Tickers).Str("topic", cfg.KafkaTopic).Msg("starting trade ingester")
	if err := ingest.NewProducer(cfg, producer, lookup).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("trade ingester stopped")
	return nil
}
