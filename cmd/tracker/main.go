package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/amqp"
	"expensetracker/internal/auth"
	"expensetracker/internal/backend"
	"expensetracker/internal/cache"
	"expensetracker/internal/cli"
	"expensetracker/internal/core"
	apphttp "expensetracker/internal/http"
	applog "expensetracker/internal/log"
	"expensetracker/internal/ocr"
	"expensetracker/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer result.Cleanup()
	}

	summaries := cache.NewLRUCache[core.Summary](16, cfg.CacheTTL)
	caches := cache.NewManager()
	caches.Register(summaries)

	opts := []services.Option{
		services.WithSummaryCache(summaries),
		services.WithExtractor(ocr.NewTesseract(cfg.TesseractPath, cfg.OCRTimeout)),
		services.WithAdvisor(services.NewBudgetAdvisor(cfg.BudgetWindowMonths, cfg.BudgetHeadroom)),
		services.WithReceiptCategory(cfg.ReceiptCategory),
	}

	var publisher *amqp.Client
	if cfg.MirrorEnabled() {
		publisher, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		opts = append(opts, services.WithPublisher(publisher))
		logger.Info("Sheets mirror enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("Sheets mirror disabled - no AMQP_URL provided")
	}

	svc := services.NewExpenseService(result.Backend, opts...)

	users, err := auth.NewStore(cfg.UsersFile)
	if err != nil {
		logger.Error("Failed to initialize user store", "error", err, "path", cfg.UsersFile)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, users,
		apphttp.WithLogger(logger.WithComponent(applog.ComponentHTTP)))

	ctx, done := cli.GracefulShutdown(context.Background(), logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting expense tracker", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return caches.Run(gctx, time.Minute)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		_ = srv.Shutdown(context.Background())
		os.Exit(1)
	}
	<-done
	logger.Info("Server stopped gracefully")
}
