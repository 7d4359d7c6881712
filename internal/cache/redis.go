// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jason-s-yu/moviematch/internal/models"
)

// DefaultQueueName is the Redis list room actions are pushed onto.
const DefaultQueueName = "moviematch_actions"

// Connect opens a Redis client and checks it answers within five seconds.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// ActionQueue publishes room actions for the historian to persist.
type ActionQueue struct {
	rdb   redis.Cmdable
	queue string
}

// NewActionQueue pushes onto the named list, or DefaultQueueName if empty.
func NewActionQueue(rdb redis.Cmdable, queue string) *ActionQueue {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &ActionQueue{rdb: rdb, queue: queue}
}

// Name is the Redis list the queue pushes to.
func (q *ActionQueue) Name() string {
	return q.queue
}

// RecordAction serializes action to JSON and pushes it onto the queue.
// This does not block the caller beyond a quick network send.
func (q *ActionQueue) RecordAction(ctx context.Context, action models.RoomAction) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal RoomAction: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.queue, err)
	}
	return nil
}
