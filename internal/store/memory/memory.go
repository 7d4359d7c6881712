// Package memory keeps room state in process memory. It is the default
// backend and the one tests run against.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jason-s-yu/moviematch/internal/store"
)

// Store holds a single JSON tree guarded by a mutex.
type Store struct {
	mu  sync.Mutex
	doc *store.Document
}

var _ store.RoomStore = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{doc: &store.Document{}}
}

// Read returns the value at path.
func (s *Store) Read(ctx context.Context, path string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Read(store.Split(path))
}

// Write replaces the value at path.
func (s *Store) Write(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Write(store.Split(path), value)
}

// Merge sets fields as children of path.
func (s *Store) Merge(ctx context.Context, path string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Merge(store.Split(path), fields)
}

// Create writes value at path unless it already exists.
func (s *Store) Create(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Create(store.Split(path), value)
}

// Update runs fn under the store lock.
func (s *Store) Update(ctx context.Context, path string, fn store.UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.doc.Update(store.Split(path), fn)
	return err
}
