package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/amqp"
	"expensetracker/internal/backend"
	"expensetracker/internal/cli"
	applog "expensetracker/internal/log"
	gsheet "expensetracker/internal/sheets/google"
	"expensetracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)

	logger.Info("Starting tracker-worker")

	if !cfg.MirrorEnabled() {
		logger.Error("AMQP_URL is required for the sync worker")
		os.Exit(1)
	}
	if err := cfg.ValidateSheets(); err != nil {
		logger.Error("Google Sheets configuration invalid", "error", err)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	sheetsClient, err := gsheet.New(context.Background(), backend.SheetsOptions(backendCfg))
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(sheetsClient, cfg.SyncRetryAttempts, cfg.SyncRetryDelay)

	ctx, done := cli.GracefulShutdown(context.Background(), logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Error("AMQP close error", "error", err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Consuming expense sync messages", "queue", cfg.AMQPQueue)
		return amqpClient.ConsumeExpenseSync(gctx, syncWorker.HandleSyncMessage)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("Consumer stopped", "error", err)
		_ = amqpClient.Close()
		os.Exit(1)
	}
	<-done
	logger.Info("Sync worker stopped gracefully")
}
