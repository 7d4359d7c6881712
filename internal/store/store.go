// Package store defines the keyed read/update contract the room engine keeps
// all of its state behind, plus the JSON document tree the backends share.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by Read when nothing is stored at a path.
	ErrNotFound = errors.New("store: path not found")

	// ErrExists is returned by Create when the path already holds a value.
	ErrExists = errors.New("store: path already exists")

	// ErrSkipWrite may be returned by an UpdateFunc to leave the path untouched.
	// Update then returns nil.
	ErrSkipWrite = errors.New("store: skip write")

	// ErrInvalidPath is returned for paths a backend cannot address.
	ErrInvalidPath = errors.New("store: invalid path")
)

// UpdateFunc receives the current JSON value at a path (nil if absent) and
// returns the value that should replace it.
type UpdateFunc func(current json.RawMessage) (any, error)

// RoomStore is a hierarchical keyed store addressed by slash-separated paths
// such as "rooms/ABC123/votes/42".
//
// Each call is atomic for the single path it targets. Nothing spans paths:
// callers that read one path and write another get last-writer-wins.
type RoomStore interface {
	// Read returns the JSON value stored at path, or ErrNotFound.
	Read(ctx context.Context, path string) (json.RawMessage, error)

	// Write replaces the value at path. Writing nil removes it.
	Write(ctx context.Context, path string, value any) error

	// Merge sets each field as a direct child of path, leaving other children
	// alone. A nil field value removes that child.
	Merge(ctx context.Context, path string, fields map[string]any) error

	// Create writes value at path only if nothing is stored there yet,
	// otherwise it returns ErrExists.
	Create(ctx context.Context, path string, value any) error

	// Update atomically reads the value at path, passes it to fn and writes
	// back the result.
	Update(ctx context.Context, path string, fn UpdateFunc) error
}

// Join builds a path from its segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split breaks a path into its non-empty segments.
func Split(path string) []string {
	raw := strings.Split(path, "/")
	segs := raw[:0]
	for _, s := range raw {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// SplitKey separates a path into a document key made of its first two
// segments (e.g. "rooms/ABC123") and the remaining in-document segments.
// Backends that keep one document per room use it to find the document.
func SplitKey(path string) (string, []string, error) {
	segs := Split(path)
	if len(segs) < 2 {
		return "", nil, fmt.Errorf("%w: %q addresses no document", ErrInvalidPath, path)
	}
	return segs[0] + "/" + segs[1], segs[2:], nil
}
