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
	"github.com/buildbook/buildbook/internal/expenses"
	"github.com/buildbook/buildbook/internal/invoices"
	"github.com/buildbook/buildbook/internal/observability"
	"github.com/buildbook/buildbook/internal/platform/cache"
	"github.com/buildbook/buildbook/internal/platform/db"
	"github.com/buildbook/buildbook/internal/quotes"
	"github.com/buildbook/buildbook/internal/shared"
	"github.com/buildbook/buildbook/internal/timesheets"
	"github.com/buildbook/buildbook/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	invoiceService := invoices.NewService(
		invoices.NewRepository(dbpool),
		idempotencyStore,
		jobs.NewInvoiceNotifier(jobClient),
		invoices.ServiceConfig{NumberRetries: cfg.InvoiceNumberRetries, Location: loc, Logger: logger},
	)
	agingService := aging.NewService(invoiceService, cache.NewCache(redisClient, cfg.AgingCacheTTL), metrics, loc)
	invoiceService.WithInvalidator(agingService)

	expenseService := expenses.NewService(expenses.NewRepository(dbpool), logger, loc)
	quoteService := quotes.NewService(quotes.NewRepository(dbpool), logger)
	timesheetService := timesheets.NewService(timesheets.NewRepository(dbpool), loc)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		InvoicesHandler:   invoices.NewHandler(logger, invoiceService),
		AgingHandler:      aging.NewHandler(logger, agingService),
		ExpensesHandler:   expenses.NewHandler(logger, expenseService),
		QuotesHandler:     quotes.NewHandler(logger, quoteService),
		TimesheetsHandler: timesheets.NewHandler(logger, timesheetService),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
}
