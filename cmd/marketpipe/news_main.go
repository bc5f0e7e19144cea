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
	"github.com/marketpipe/marketpipe/internal/storage/cassandra"
)

func runIngestNews(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadNews()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveMetrics(cmd)

	store, err := cassandra.Connect(cfg.Cassandra)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := ingest.NewNewsIngester(cfg, store).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("news ingester stopped")
	return nil
}
