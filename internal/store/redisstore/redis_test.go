package redisstore

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/moviematch/internal/store"
)

// newTestStore needs a reachable Redis (REDIS_ADDR, default localhost:6379);
// the test is skipped otherwise.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}

	prefix := "moviematch-test-" + uuid.NewString() + ":"
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := rdb.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			rdb.Del(ctx, keys...)
		}
	})
	return New(rdb, prefix)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Read(ctx, "rooms/ABC123")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Create(ctx, "rooms/ABC123", map[string]any{"id": "ABC123", "active": true}))
	assert.ErrorIs(t, s.Create(ctx, "rooms/ABC123", map[string]any{}), store.ErrExists)

	require.NoError(t, s.Write(ctx, "rooms/ABC123/users/u1", map[string]any{"name": "ana"}))
	require.NoError(t, s.Merge(ctx, "rooms/ABC123", map[string]any{"active": false}))

	got, err := s.Read(ctx, "rooms/ABC123")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"ABC123","active":false,"users":{"u1":{"name":"ana"}}}`, string(got))

	assert.ErrorIs(t, s.Write(ctx, "rooms", 1), store.ErrInvalidPath)
}

func TestRedisStoreUpdateUnderContention(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, "rooms/A/counter", func(cur json.RawMessage) (any, error) {
				var n int
				if cur != nil {
					if err := json.Unmarshal(cur, &n); err != nil {
						return nil, err
					}
				}
				return n + 1, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Read(ctx, "rooms/A/counter")
	require.NoError(t, err)
	assert.JSONEq(t, `10`, string(got))
}
