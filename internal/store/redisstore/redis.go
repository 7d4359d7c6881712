// Package redisstore keeps each room as one JSON document in Redis and
// applies path operations inside WATCH/MULTI transactions.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jason-s-yu/moviematch/internal/store"
)

// DefaultKeyPrefix namespaces room documents in a shared Redis.
const DefaultKeyPrefix = "moviematch:"

// maxTxRetries bounds how often a transaction is retried after another
// client modified the watched key.
const maxTxRetries = 20

// Store implements store.RoomStore on top of a Redis client.
type Store struct {
	rdb    *redis.Client
	prefix string
}

var _ store.RoomStore = (*Store)(nil)

// New wraps an already connected client. An empty prefix uses DefaultKeyPrefix.
func New(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) redisKey(docKey string) string {
	return s.prefix + docKey
}

// Read loads the document and returns the value at path.
func (s *Store) Read(ctx context.Context, path string) (json.RawMessage, error) {
	docKey, rest, err := store.SplitKey(path)
	if err != nil {
		return nil, err
	}
	data, err := s.rdb.Get(ctx, s.redisKey(docKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", docKey, err)
	}
	doc, err := store.DecodeDocument(data)
	if err != nil {
		return nil, err
	}
	return doc.Read(rest)
}

// Write replaces the value at path.
func (s *Store) Write(ctx context.Context, path string, value any) error {
	return s.mutate(ctx, path, func(doc *store.Document, rest []string) (bool, error) {
		return true, doc.Write(rest, value)
	})
}

// Merge sets fields as children of path.
func (s *Store) Merge(ctx context.Context, path string, fields map[string]any) error {
	return s.mutate(ctx, path, func(doc *store.Document, rest []string) (bool, error) {
		return true, doc.Merge(rest, fields)
	})
}

// Create writes value at path unless it already exists.
func (s *Store) Create(ctx context.Context, path string, value any) error {
	return s.mutate(ctx, path, func(doc *store.Document, rest []string) (bool, error) {
		return true, doc.Create(rest, value)
	})
}

// Update runs fn against the value at path inside a watched transaction.
// fn may run more than once if another writer wins the race.
func (s *Store) Update(ctx context.Context, path string, fn store.UpdateFunc) error {
	return s.mutate(ctx, path, func(doc *store.Document, rest []string) (bool, error) {
		return doc.Update(rest, fn)
	})
}

// mutate loads a document under WATCH, applies apply and commits the result
// with MULTI/EXEC, retrying when the key changed underneath us.
func (s *Store) mutate(ctx context.Context, path string, apply func(*store.Document, []string) (bool, error)) error {
	docKey, rest, err := store.SplitKey(path)
	if err != nil {
		return err
	}
	key := s.redisKey(docKey)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis GET %s: %w", docKey, err)
		}
		doc, err := store.DecodeDocument(data)
		if err != nil {
			return err
		}
		changed, err := apply(doc, rest)
		if err != nil || !changed {
			return err
		}
		encoded, err := doc.Encode()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if doc.Empty() {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, encoded, 0)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis store: %s: gave up after %d conflicting transactions", docKey, maxTxRetries)
}
