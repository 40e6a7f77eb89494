package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/buildbook/buildbook/internal/aging"
	"github.com/buildbook/buildbook/internal/app"
	"github.com/buildbook/buildbook/internal/invoices"
	jobmetrics "github.com/buildbook/buildbook/internal/jobs"
	"github.com/buildbook/buildbook/internal/observability"
	"github.com/buildbook/buildbook/internal/platform/cache"
	"github.com/buildbook/buildbook/internal/platform/db"
	"github.com/buildbook/buildbook/internal/shared"
	"github.com/buildbook/buildbook/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	loc := cfg.Location()

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	idempotencyStore := shared.NewIdempotencyStore(pool)
	invoiceService := invoices.NewService(
		invoices.NewRepository(pool),
		idempotencyStore,
		nil,
		invoices.ServiceConfig{NumberRetries: cfg.InvoiceNumberRetries, Location: loc, Logger: logger},
	)
	agingService := aging.NewService(invoiceService, cache.NewCache(redisClient, cfg.AgingCacheTTL), metrics, loc)

	sendJob := jobs.NewInvoiceSendJob(invoiceService, logger, jobMetrics)
	warmupJob := jobs.NewAgingWarmupJob(agingService, cfg.WarmupConcurrency, logger, jobMetrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(idempotencyStore, cfg.IdempotencyRetention, logger, jobMetrics)

	warmupTask, err := jobs.NewAgingWarmupTask(cfg.WarmupConcurrency)
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(0)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Location:    loc,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInvoiceSend, Handler: sendJob.Handle},
			{Type: jobs.TaskAgingWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.AgingWarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.IdempotencyCleanupCron, Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker started", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
