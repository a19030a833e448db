// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/chessmatch/internal/auth"
	"github.com/jason-s-yu/chessmatch/internal/cache"
	"github.com/jason-s-yu/chessmatch/internal/config"
	"github.com/jason-s-yu/chessmatch/internal/database"
	"github.com/jason-s-yu/chessmatch/internal/game"
	"github.com/jason-s-yu/chessmatch/internal/handlers"
	"github.com/jason-s-yu/chessmatch/internal/metrics"
	"github.com/jason-s-yu/chessmatch/internal/rating"
	"github.com/jason-s-yu/chessmatch/internal/session"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auth.Init(cfg.JWTSecret, cfg.TokenTTL)
	if !auth.Enabled() {
		logger.Warn("JWT_SECRET not set, registered identities are not verified")
	}

	var store game.RoomStore
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		store = cache.NewRoomStore(rdb, cfg.QueueName)
		logger.Infof("room records stored in redis at %s", cfg.RedisAddr)
	} else {
		logger.Warn("REDIS_ADDR not set, room records are kept in memory only")
	}

	var ratings rating.Store
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("database: %v", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatalf("database: %v", err)
		}
		ratings = database.NewRatingRepo(pool, cfg.DefaultRating)
		logger.Info("ratings stored in postgres")
	} else {
		logger.Warn("DATABASE_URL not set, ratings are kept in memory only")
		ratings = rating.NewMemoryStore(cfg.DefaultRating)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mx := metrics.New(reg)

	registry := session.NewRegistry(cfg.GuestPrefix, 64, logger)
	manager := game.NewManager(game.Config{
		GracePeriod:   cfg.GracePeriod,
		RoomTTL:       cfg.RoomTTL,
		K:             cfg.EloK,
		DefaultRating: cfg.DefaultRating,
	}, registry, ratings, store, mx, logger)

	gs := handlers.NewGameServer(manager, registry, cfg.AllowedOrigins, logger)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.NewRouter(gs, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server exited")
	}
	// drains queued store writes
	manager.Close()
	logger.WithFields(logrus.Fields{"connections": registry.Len()}).Info("shutdown complete")
}
