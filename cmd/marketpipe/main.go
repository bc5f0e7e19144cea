package main

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "marketpipe"
	version = "v1.2.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Realtime market-data pipeline",
		Version: version,
		Long: `marketpipe streams trades from the vendor WebSocket through Kafka into
Cassandra and Redis, ingests realtime news, and syncs fundamentals into
Postgres on a schedule.`,
	}

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Stream trades from the vendor WebSocket to Kafka",
		Long:  "Subscribes to the configured tickers and publishes throttled Avro frames to the log topic",
		RunE:  runIngest,
	}

	newsCmd := &cobra.Command{
		Use:   "ingest-news",
		Short: "Stream vendor news into Cassandra",
		RunE:  runIngestNews,
	}

	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Run the stream processor",
		Long:  "Consumes trade frames, persists raw trades and running averages, and maintains daily aggregates in Redis with periodic promotion to Cassandra",
		RunE:  runProcess,
	}

	syncCmd := &cobra.Command{
		Use:   "sync [daily-prices|daily-news|weekly|quarterly]",
		Short: "Run one fundamentals sync job",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSync,
	}
	syncCmd.Flags().Bool("full", false, "Pull the full daily price history instead of the compact window")

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Read one daily aggregate (Redis first, then Cassandra)",
		RunE:  runAggregate,
	}
	aggregateCmd.Flags().String("symbol", "", "Symbol to look up")
	aggregateCmd.Flags().String("date", "", "Trade date (YYYY-MM-DD, default today)")
	aggregateCmd.MarkFlagRequired("symbol")

	for _, cmd := range []*cobra.Command{ingestCmd, newsCmd, processCmd} {
		cmd.Flags().String("metrics-addr", ":2112", "Prometheus metrics listen address")
	}

	rootCmd.AddCommand(ingestCmd, newsCmd, processCmd, syncCmd, aggregateCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// serveMetrics exposes the Prometheus registry for the long-running
// commands. Failures are logged, not fatal.
func serveMetrics(cmd *cobra.Command) {
	addr, _ := cmd.Flags().GetString("metrics-addr")
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
}
