package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketpipe/marketpipe/internal/config"
	"github.com/marketpipe/marketpipe/internal/processor"
	"github.com/marketpipe/marketpipe/internal/storage/cassandra"
	"github.com/marketpipe/marketpipe/internal/storage/redisagg"
)

func runAggregate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadProcessor()
	if err != nil {
		return err
	}

	symbol, _ := cmd.Flags().GetString("symbol")
	date, _ := cmd.Flags().GetString("date")
	if date == "" {
		date = time.Now().Format(redisagg.DateLayout)
	}

	trades, err := cassandra.Connect(cfg.Cassandra)
	if err != nil {
		return err
	}
	defer trades.Close()

	aggs, redisClient := redisagg.Connect(cfg.Redis)
	defer redisClient.Close()

	res, err := processor.New(cfg, trades, aggs).DailyAggregate(cmd.Context(), symbol, date)
	if err != nil {
		return err
	}
	if res == nil {
		return fmt.Errorf("no daily aggregate for %s on %s", symbol, date)
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
