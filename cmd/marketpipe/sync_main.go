package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marketpipe/marketpipe/internal/config"
	"github.com/marketpipe/marketpipe/internal/storage/postgres"
	syncsvc "github.com/marketpipe/marketpipe/internal/sync"
	"github.com/marketpipe/marketpipe/internal/vendorapi"
)

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadSync()
	if err != nil {
		return err
	}

	syncType := cfg.SyncType
	if len(args) > 0 {
		syncType = args[0]
	}
	if syncType == "" {
		return fmt.Errorf("no sync type: pass an argument or set SYNC_TYPE")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.Connect(cfg.Postgres)
	if err != nil {
		return err
	}
	defer store.Close()

	service := syncsvc.New(cfg, vendorapi.NewClient(cfg), store)
	if full, _ := cmd.Flags().GetBool("full"); full {
		service.FullPrices()
	}
	report := service.Run(ctx, syncType)

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))

	if report.Error != "" {
		return fmt.Errorf("sync %s: %s", syncType, report.Error)
	}
	if report.Results.Failed() {
		return fmt.Errorf("sync %s: %d endpoint(s) failed: %v",
			syncType, report.Results.ErrorCount, report.Results.Errors)
	}
	return nil
}
