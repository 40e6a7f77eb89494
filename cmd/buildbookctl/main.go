package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/buildbook/buildbook/cmd/buildbookctl/cli"
	"github.com/buildbook/buildbook/db/migrations"
	"github.com/buildbook/buildbook/internal/aging"
	"github.com/buildbook/buildbook/internal/app"
	"github.com/buildbook/buildbook/internal/invoices"
	"github.com/buildbook/buildbook/internal/platform/cache"
	"github.com/buildbook/buildbook/internal/platform/db"
	"github.com/buildbook/buildbook/internal/shared"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(cli.Deps{
		Jobs: func() (cli.JobsBackend, error) {
			return cli.NewJobsCLI(cfg.RedisAddr), nil
		},
		Aging: func(ctx context.Context) (cli.AgingReporter, func(), error) {
			return openAging(ctx, cfg)
		},
		Migrator: func() (cli.SchemaMigrator, error) {
			return db.NewMigrator(migrations.FS, cfg.PGDSN)
		},
	})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openAging(ctx context.Context, cfg *app.Config) (cli.AgingReporter, func(), error) {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, err
	}
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	invoiceService := invoices.NewService(
		invoices.NewRepository(pool),
		shared.NewIdempotencyStore(pool),
		nil,
		invoices.ServiceConfig{Location: cfg.Location(), Logger: app.NewLoggerTo(os.Stderr, cfg)},
	)
	svc := aging.NewService(invoiceService, cache.NewCache(redisClient, cfg.AgingCacheTTL), nil, cfg.Location())
	return svc, func() {
		_ = redisClient.Close()
		pool.Close()
	}, nil
}
