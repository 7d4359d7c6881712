package store

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Document is a decoded JSON tree that path operations are applied to.
// It is not safe for concurrent use; backends guard it themselves.
type Document struct {
	root any
}

// DecodeDocument parses a stored document. Empty input yields an empty document.
func DecodeDocument(data []byte) (*Document, error) {
	d := &Document{}
	if len(data) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(data, &d.root); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return d, nil
}

// Encode serializes the document.
func (d *Document) Encode() ([]byte, error) {
	return json.Marshal(d.root)
}

// Empty reports whether the document holds nothing.
func (d *Document) Empty() bool {
	if d.root == nil {
		return true
	}
	m, ok := d.root.(map[string]any)
	return ok && len(m) == 0
}

// Read returns the JSON at segs or ErrNotFound.
func (d *Document) Read(segs []string) (json.RawMessage, error) {
	v, ok := getAt(d.root, segs)
	if !ok {
		return nil, ErrNotFound
	}
	return json.Marshal(v)
}

// Write replaces the value at segs.
func (d *Document) Write(segs []string, value any) error {
	v, err := normalize(value)
	if err != nil {
		return err
	}
	d.root = setAt(d.root, segs, v)
	return nil
}

// Merge sets each field as a child of segs.
func (d *Document) Merge(segs []string, fields map[string]any) error {
	norm, err := normalize(fields)
	if err != nil {
		return err
	}
	children, _ := norm.(map[string]any)

	node, _ := getAt(d.root, segs)
	m, ok := node.(map[string]any)
	if !ok {
		m = make(map[string]any, len(children))
	}
	for k, v := range children {
		if v == nil {
			delete(m, k)
			continue
		}
		m[k] = v
	}
	d.root = setAt(d.root, segs, m)
	return nil
}

// Create writes value at segs unless something is already there.
func (d *Document) Create(segs []string, value any) error {
	if _, ok := getAt(d.root, segs); ok {
		return ErrExists
	}
	return d.Write(segs, value)
}

// Update runs fn against the value at segs. It reports whether the document
// changed; an fn returning ErrSkipWrite leaves it untouched without error.
func (d *Document) Update(segs []string, fn UpdateFunc) (bool, error) {
	var current json.RawMessage
	if v, ok := getAt(d.root, segs); ok {
		b, err := json.Marshal(v)
		if err != nil {
			return false, err
		}
		current = b
	}
	next, err := fn(current)
	if errors.Is(err, ErrSkipWrite) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := d.Write(segs, next); err != nil {
		return false, err
	}
	return true, nil
}

// normalize round-trips a value through JSON so the tree only ever holds
// maps, slices, strings, float64s, bools and nil.
func normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return out, nil
}

func getAt(root any, segs []string) (any, bool) {
	cur := root
	for _, s := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[s]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// setAt returns root with v placed at segs, creating intermediate objects.
// A nil v removes the leaf, and parents left empty are pruned.
func setAt(root any, segs []string, v any) any {
	if len(segs) == 0 {
		return v
	}
	m, ok := root.(map[string]any)
	if !ok {
		if v == nil {
			return root
		}
		m = make(map[string]any)
	}
	child := setAt(m[segs[0]], segs[1:], v)
	if isEmptyNode(child) {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}
	return m
}

func isEmptyNode(v any) bool {
	if v == nil {
		return true
	}
	m, ok := v.(map[string]any)
	return ok && len(m) == 0
}
