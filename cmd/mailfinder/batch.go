package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shpitdev/mailfinder/internal/app"
)

var (
	batchInput    string
	batchOutput   string
	batchEndpoint string
	batchWorkers  int
	batchLocal    bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Discover addresses for every row of a CSV file",
	Long: "Reads first_name, last_name and company_website columns from the input CSV, " +
		"calls the discovery endpoint for each row on a bounded worker pool and appends " +
		"one result row per input row to the output CSV as it completes. " +
		"With --local, discovery runs in process instead of over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if batchInput != "" {
			cfg.Batch.Input = batchInput
		}
		if batchOutput != "" {
			cfg.Batch.Output = batchOutput
		}
		if batchEndpoint != "" {
			cfg.Batch.Endpoint = batchEndpoint
		}
		if batchWorkers > 0 {
			cfg.Batch.Workers = batchWorkers
		}

		mode := "batch"
		if batchLocal {
			mode = "batch-local"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		logger := zap.L()
		_, err := app.RunBatch(ctx, cfg, app.BatchDiscoverer(cfg, batchLocal, logger), logger)
		return err
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "input CSV path (default from config)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "output CSV path (default from config)")
	batchCmd.Flags().StringVar(&batchEndpoint, "endpoint", "", "discovery endpoint URL (default from config)")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "worker pool size (default from config)")
	batchCmd.Flags().BoolVar(&batchLocal, "local", false, "run discovery in process instead of calling the endpoint")
	rootCmd.AddCommand(batchCmd)
}
