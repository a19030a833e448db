// cmd/historian is an asynchronous service that pops room actions from a Redis
// queue and persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/chessmatch/internal/cache"
	"github.com/jason-s-yu/chessmatch/internal/config"
	"github.com/jason-s-yu/chessmatch/internal/database"
	"github.com/jason-s-yu/chessmatch/internal/historian"
	"github.com/jason-s-yu/chessmatch/internal/models"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		logrus.Fatalf("logger: %v", err)
	}
	if cfg.RedisAddr == "" || cfg.DatabaseURL == "" {
		logger.Fatal("historian needs both REDIS_ADDR and DATABASE_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatalf("database: %v", err)
	}

	sink := func(ctx context.Context, actions []models.RoomAction) error {
		return database.InsertRoomActions(ctx, pool, actions)
	}
	svc := historian.New(rdb, cfg.QueueName, cfg.BatchSize, cfg.FlushDelay, sink, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })
	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("historian exited")
	}
	logger.Info("Historian shutdown complete.")
}
