// Package backend opens the room store and queue connections selected by
// the configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/moviematch/internal/cache"
	"github.com/jason-s-yu/moviematch/internal/config"
	"github.com/jason-s-yu/moviematch/internal/database"
	"github.com/jason-s-yu/moviematch/internal/room"
	"github.com/jason-s-yu/moviematch/internal/store"
	"github.com/jason-s-yu/moviematch/internal/store/memory"
	"github.com/jason-s-yu/moviematch/internal/store/pgstore"
	"github.com/jason-s-yu/moviematch/internal/store/redisstore"
)

// Backend bundles the open connections. Redis and DB are nil when the
// configuration does not need them.
type Backend struct {
	Store store.RoomStore
	Redis *redis.Client
	DB    *pgxpool.Pool

	publish bool
	queue   string
}

// Open connects whatever cfg asks for. Redis is opened for the redis store
// and whenever actions are published.
func Open(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Backend, error) {
	b := &Backend{publish: cfg.PublishActions, queue: cfg.ActionQueueName}

	if cfg.StoreBackend == config.BackendRedis || cfg.PublishActions {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		b.Redis = rdb
	}

	switch cfg.StoreBackend {
	case config.BackendMemory:
		b.Store = memory.New()
	case config.BackendRedis:
		b.Store = redisstore.New(b.Redis, cfg.RedisKeyPrefix)
	case config.BackendPostgres:
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.DB = pool
		if err := database.Migrate(ctx, pool); err != nil {
			b.Close()
			return nil, err
		}
		b.Store = pgstore.New(pool)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	logger.WithFields(logrus.Fields{
		"store":   cfg.StoreBackend,
		"publish": cfg.PublishActions,
	}).Info("backend ready")
	return b, nil
}

// Recorder returns the action queue publisher, or nil when publishing is off.
func (b *Backend) Recorder() room.ActionRecorder {
	if !b.publish || b.Redis == nil {
		return nil
	}
	return cache.NewActionQueue(b.Redis, b.queue)
}

// Close releases every open connection.
func (b *Backend) Close() {
	if b.Redis != nil {
		b.Redis.Close()
	}
	if b.DB != nil {
		b.DB.Close()
	}
}
