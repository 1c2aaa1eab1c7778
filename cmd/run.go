/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/paperboy/internal/logger"
	"github.com/josephgoksu/paperboy/internal/mailbox"
	"github.com/josephgoksu/paperboy/internal/pipeline"
	"github.com/josephgoksu/paperboy/internal/printer"
	"github.com/josephgoksu/paperboy/internal/tracker"
	"github.com/josephgoksu/paperboy/llm"
	"github.com/josephgoksu/paperboy/store"
	"github.com/josephgoksu/paperboy/types"
)

var runOnce bool

// runCmd starts the email-to-printer pipeline.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the mail-to-printer pipeline",
	Long: `Run starts the pipeline loop: fetch new mail, extract task candidates,
deduplicate them into the local store, reconcile completion with Google
Tasks, and print pending tasks to the receipt printer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := store.NewSQLiteStore(cfg.Data.File)
		if err != nil {
			return fmt.Errorf("open task store: %w", err)
		}
		defer func() { _ = st.Close() }()

		mail, err := mailbox.NewClient(ctx, cfg.Mailbox)
		if err != nil {
			return fmt.Errorf("connect to mailbox: %w", err)
		}

		provider, err := llm.NewProvider(&cfg.LLM)
		if err != nil {
			return fmt.Errorf("create extraction provider: %w", err)
		}
		grace := time.Duration(cfg.Pipeline.DueGraceHours) * time.Hour
		extractor := pipeline.NewExtractor(provider, st, cfg.LLM, grace)

		var reconciler *pipeline.Reconciler
		if cfg.Tracker.Enabled {
			trk, err := tracker.NewGoogleTasksClient(ctx, cfg.Mailbox, cfg.Tracker)
			if err != nil {
				return fmt.Errorf("connect to tracker: %w", err)
			}
			reconciler = pipeline.NewReconciler(st, trk)
		} else {
			logger.Warn("tracker disabled, tasks will not be reconciled")
		}

		device, err := buildPrinter(cfg.Printer)
		if err != nil {
			return err
		}
		dispatcher := pipeline.NewDispatcher(st, device, cfg.Pipeline.BatchSize, cfg.Printer.Width)

		interval := time.Duration(cfg.Pipeline.IntervalSeconds) * time.Second
		orch := pipeline.NewOrchestrator(mail, extractor, st, reconciler, dispatcher, interval)

		if runOnce {
			stats, err := orch.RunCycle(ctx)
			if err != nil {
				return err
			}
			logger.Info("single cycle complete",
				"fetched", stats.Fetched,
				"upserted", stats.Upserted,
				"reconciled", stats.Reconciled,
				"printed", stats.Printed,
			)
			return nil
		}

		logger.Info("pipeline started", "interval", interval, "printer", cfg.Printer.Mode)
		return orch.Run(ctx)
	},
}

// buildPrinter selects the output adapter from configuration.
func buildPrinter(cfg types.PrinterConfig) (printer.Printer, error) {
	switch cfg.Mode {
	case "network":
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		return printer.NewNetworkPrinter(cfg.Address, timeout), nil
	case "file":
		return printer.NewFilePrinter(cfg.OutputFile), nil
	default:
		return nil, fmt.Errorf("unknown printer mode %q", cfg.Mode)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single pipeline cycle and exit")
}
