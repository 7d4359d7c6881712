package pgstore

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/moviematch/internal/database"
	"github.com/jason-s-yu/moviematch/internal/store"
)

// newTestStore needs DATABASE_URL pointing at a disposable database.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, url)
	if err != nil {
		t.Skipf("postgres not reachable: %v", err)
	}
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool))
	return New(pool)
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	room := "rooms/T" + uuid.NewString()[:8]

	_, err := s.Read(ctx, room)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Create(ctx, room, map[string]any{"active": true}))
	assert.ErrorIs(t, s.Create(ctx, room, map[string]any{}), store.ErrExists)

	require.NoError(t, s.Write(ctx, room+"/users/u1", map[string]any{"name": "ana"}))
	require.NoError(t, s.Merge(ctx, room, map[string]any{"active": false}))

	got, err := s.Read(ctx, room)
	require.NoError(t, err)
	assert.JSONEq(t, `{"active":false,"users":{"u1":{"name":"ana"}}}`, string(got))

	require.NoError(t, s.Write(ctx, room, nil))
	_, err = s.Read(ctx, room)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresStoreUpdateUnderContention(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	path := "rooms/T" + uuid.NewString()[:8] + "/counter"

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, path, func(cur json.RawMessage) (any, error) {
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

	got, err := s.Read(ctx, path)
	require.NoError(t, err)
	assert.JSONEq(t, `10`, string(got))
}
