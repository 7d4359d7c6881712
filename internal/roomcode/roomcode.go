// Package roomcode generates the short codes players type to find a room.
package roomcode

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
)

const (
	// Alphabet is the set of symbols a code is drawn from.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// Length is the number of symbols in a code.
	Length = 6

	// MaxAttempts caps how many codes are tried before giving up.
	MaxAttempts = 10
)

// ErrExhausted is returned when MaxAttempts candidate codes were all taken.
var ErrExhausted = errors.New("roomcode: no free room code found")

// ExistsFunc reports whether a room already uses code.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Generator draws codes uniformly from Alphabet.
type Generator struct {
	mu   sync.Mutex
	intn func(n int) int
}

// NewGenerator returns a Generator backed by the runtime's random source.
func NewGenerator() *Generator {
	return &Generator{intn: rand.IntN}
}

// NewSeededGenerator returns a deterministic Generator, for tests.
func NewSeededGenerator(seed uint64) *Generator {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &Generator{intn: r.IntN}
}

// Generate returns one random code.
func (g *Generator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var b strings.Builder
	b.Grow(Length)
	for i := 0; i < Length; i++ {
		b.WriteByte(Alphabet[g.intn(len(Alphabet))])
	}
	return b.String()
}

// Allocate returns the first generated code for which exists reports false.
// The result is only a hint: the caller must still claim the code with a
// check-and-set write and call Allocate again if it lost the race.
func (g *Generator) Allocate(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		code := g.Generate()
		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check room code %s: %w", code, err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrExhausted
}

// Normalize upper-cases and trims user input so "abc123 " finds room ABC123.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code has the right length and alphabet.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
