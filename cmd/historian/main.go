// cmd/historian is an asynchronous service that pops room actions from a
// Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/moviematch/internal/cache"
	"github.com/jason-s-yu/moviematch/internal/config"
	"github.com/jason-s-yu/moviematch/internal/database"
	"github.com/jason-s-yu/moviematch/internal/historian"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	logger.SetLevel(cfg.Level())
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal(err)
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatal(err)
	}
	defer rdb.Close()

	hs := historian.New(rdb, historian.NewPGSink(pool), logger, historian.Options{
		Queue:      cfg.ActionQueueName,
		BatchSize:  cfg.HistorianBatchSize,
		FlushDelay: cfg.HistorianFlushDelay(),
		Inactivity: cfg.RoomInactivity,
	})
	if err := hs.Run(ctx); err != nil {
		logger.Error(err)
	}
	logger.Info("Historian shutdown complete.")
}
