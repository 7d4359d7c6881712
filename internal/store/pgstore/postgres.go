// Package pgstore keeps each room as a JSONB document in Postgres. Mutations
// of one document are serialized with a transaction-scoped advisory lock.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jason-s-yu/moviematch/internal/store"
)

// Store implements store.RoomStore on the room_documents table
// (see database.Schema).
type Store struct {
	pool *pgxpool.Pool
}

var _ store.RoomStore = (*Store)(nil)

// New wraps an open pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Read returns the value at path.
func (s *Store) Read(ctx context.Context, path string) (json.RawMessage, error) {
	docKey, rest, err := store.SplitKey(path)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.pool.QueryRow(ctx, `SELECT doc FROM room_documents WHERE key = $1`, docKey).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document %s: %w", docKey, err)
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

// Update runs fn against the value at path while holding the document lock.
func (s *Store) Update(ctx context.Context, path string, fn store.UpdateFunc) error {
	return s.mutate(ctx, path, func(doc *store.Document, rest []string) (bool, error) {
		return doc.Update(rest, fn)
	})
}

func (s *Store) mutate(ctx context.Context, path string, apply func(*store.Document, []string) (bool, error)) error {
	docKey, rest, err := store.SplitKey(path)
	if err != nil {
		return err
	}

	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		// the lock is released on commit or rollback
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, docKey); err != nil {
			return fmt.Errorf("lock document %s: %w", docKey, err)
		}

		var data []byte
		err := tx.QueryRow(ctx, `SELECT doc FROM room_documents WHERE key = $1`, docKey).Scan(&data)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("select document %s: %w", docKey, err)
		}
		doc, err := store.DecodeDocument(data)
		if err != nil {
			return err
		}

		changed, err := apply(doc, rest)
		if err != nil || !changed {
			return err
		}

		if doc.Empty() {
			_, err = tx.Exec(ctx, `DELETE FROM room_documents WHERE key = $1`, docKey)
			return err
		}
		encoded, err := doc.Encode()
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO room_documents (key, doc, updated_at)
			VALUES ($1, $2::jsonb, NOW())
			ON CONFLICT (key)
			DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()
		`, docKey, string(encoded))
		if err != nil {
			return fmt.Errorf("upsert document %s: %w", docKey, err)
		}
		return nil
	})
}
