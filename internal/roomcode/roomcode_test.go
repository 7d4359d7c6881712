package roomcode

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateShapeAndAlphabet(t *testing.T) {
	g := NewGenerator()
	for i := 0; i < 500; i++ {
		code := g.Generate()
		require.True(t, Valid(code), "generated invalid code %q", code)
	}
}

func TestGenerateCoversAlphabet(t *testing.T) {
	g := NewSeededGenerator(7)
	seen := make(map[rune]bool)
	for i := 0; i < 2000; i++ {
		for _, r := range g.Generate() {
			seen[r] = true
		}
	}
	assert.Len(t, seen, len(Alphabet))
}

func TestAllocateSkipsTakenCodes(t *testing.T) {
	g := NewSeededGenerator(1)
	calls := 0
	code, err := g.Allocate(context.Background(), func(_ context.Context, code string) (bool, error) {
		calls++
		return calls < 3, nil
	})
	require.NoError(t, err)
	assert.True(t, Valid(code))
	assert.Equal(t, 3, calls)
}

func TestAllocateExhausted(t *testing.T) {
	g := NewSeededGenerator(1)
	calls := 0
	_, err := g.Allocate(context.Background(), func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	})
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, MaxAttempts, calls)
}

func TestAllocatePropagatesLookupErrors(t *testing.T) {
	boom := errors.New("store down")
	_, err := NewGenerator().Allocate(context.Background(), func(context.Context, string) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestNormalizeAndValid(t *testing.T) {
	assert.Equal(t, "ABC123", Normalize(" abc123 "))
	assert.True(t, Valid("ZZ9900"))
	assert.False(t, Valid("ABC12"))
	assert.False(t, Valid("abc123"))
	assert.False(t, Valid("ABC-12"))
}
