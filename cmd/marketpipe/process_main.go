package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/marketpipe/marketpipe/internal/config"
	"github.com/marketpipe/marketpipe/internal/processor"
	"github.com/marketpipe/marketpipe/internal/storage/cassandra"
	"github.com/marketpipe/marketpipe/internal/storage/redisagg"
	"github.com/marketpipe/marketpipe/internal/stream"
)

func runProcess(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadProcessor()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveMetrics(cmd)

	trades, err := cassandra.Connect(cfg.Cassandra)
	if err != nil {
		return err
	}
	defer trades.Close()

	aggs, redisClient := redisagg.Connect(cfg.Redis)
	defer redisClient.Close()

	consumer, err := stream.NewConsumer(cfg.Brokers(), cfg.KafkaTopic)
	if err != nil {
		return err
	}
	defer consumer.Close()

	p := processor.New(cfg, trades, aggs)
	p.Start(ctx)

	log.Info().Str("topic", cfg.KafkaTopic).Str("group", stream.ConsumerGroup).Msg("starting stream processor")
	if err := consumer.Run(ctx, p.HandleFrame); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("stream processor stopped")
	return nil
}
