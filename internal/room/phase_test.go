package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/moviematch/internal/models"
)

func TestStartGame(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	empty, host := h.newRoom(t, nil)
	_, err := h.engine.StartGame(ctx, empty, host)
	assert.Equal(t, KindInvalidState, KindOf(err))

	code, host := h.newRoom(t, nil, "A", "B", "C")
	guest := h.join(t, code, "Guest")
	_, err = h.engine.StartGame(ctx, code, guest)
	assert.Equal(t, KindForbidden, KindOf(err))

	gs, err := h.engine.StartGame(ctx, code, host)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseVoting, gs.Phase)
	assert.Equal(t, 0, gs.CurrentMovieIndex)
	assert.Equal(t, "A", gs.CurrentMovieID)
	assert.Equal(t, 1, gs.Round)
	require.NotNil(t, gs.VotingStartedAt)
	assert.Equal(t, h.clock.Now(), *gs.VotingStartedAt)
	assert.Equal(t, gs, h.room(t, code).GameState)

	_, err = h.engine.StartGame(ctx, code, host)
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestRevealIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	code, host := h.newRoom(t, nil, "A", "B")
	_, err := h.engine.StartGame(ctx, code, host)
	require.NoError(t, err)

	first, changed, err := h.engine.revealIfVoting(ctx, code, "A", "test")
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, first.RevealStartedAt)
	stamp := *first.RevealStartedAt

	h.clock.Advance(5 * time.Second)
	second, changed, err := h.engine.revealIfVoting(ctx, code, "A", "test")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.PhaseReveal, second.Phase)

	gs := h.room(t, code).GameState
	assert.Equal(t, models.PhaseReveal, gs.Phase)
	require.NotNil(t, gs.RevealStartedAt)
	assert.Equal(t, stamp, *gs.RevealStartedAt)
	assert.Equal(t, 1, h.log.count(models.ActionPhaseReveal))
}

func TestRevealIgnoresStaleCandidate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	code, host := h.newRoom(t, nil, "A", "B")
	_, err := h.engine.StartGame(ctx, code, host)
	require.NoError(t, err)

	_, changed, err := h.engine.revealIfVoting(ctx, code, "B", "test")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.PhaseVoting, h.room(t, code).GameState.Phase)
}

func TestSignalTimeout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	code, host := h.newRoom(t, nil, "A")

	_, err := h.engine.SignalTimeout(ctx, code)
	assert.Equal(t, KindInvalidState, KindOf(err))

	_, err = h.engine.StartGame(ctx, code, host)
	require.NoError(t, err)
	gs, err := h.engine.SignalTimeout(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseReveal, gs.Phase)
	assert.NotNil(t, gs.RevealStartedAt)

	_, err = h.engine.SignalTimeout(ctx, code)
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestCheckTimeout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	code, host := h.newRoom(t, map[string]interface{}{"votingTimeoutSec": 20}, "A")

	fired, err := h.engine.CheckTimeout(ctx, code)
	require.NoError(t, err)
	assert.False(t, fired, "lobby rooms never time out")

	_, err = h.engine.StartGame(ctx, code, host)
	require.NoError(t, err)

	h.clock.Advance(19 * time.Second)
	fired, err = h.engine.CheckTimeout(ctx, code)
	require.NoError(t, err)
	assert.False(t, fired)

	h.clock.Advance(time.Second)
	fired, err = h.engine.CheckTimeout(ctx, code)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, models.PhaseReveal, h.room(t, code).GameState.Phase)

	fired, err = h.engine.CheckTimeout(ctx, code)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestCheckTimeoutDisabled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	code, host := h.newRoom(t, map[string]interface{}{"votingTimeoutSec": 0}, "A")
	_, err := h.engine.StartGame(ctx, code, host)
	require.NoError(t, err)

	h.clock.Advance(24 * time.Hour)
	fired, err := h.engine.CheckTimeout(ctx, code)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestAdvance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	code, host := h.newRoom(t, nil, "A", "B")
	guest := h.join(t, code, "Guest")

	_, err := h.engine.StartGame(ctx, code, host)
	require.NoError(t, err)
	_, err = h.engine.Advance(ctx, code, host)
	assert.Equal(t, KindInvalidState, KindOf(err), "cannot advance while voting")

	_, err = h.engine.SignalTimeout(ctx, code)
	require.NoError(t, err)
	_, err = h.engine.Advance(ctx, code, guest)
	assert.Equal(t, KindForbidden, KindOf(err))

	h.clock.Advance(3 * time.Second)
	gs, err := h.engine.Advance(ctx, code, host)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseVoting, gs.Phase)
	assert.Equal(t, 1, gs.CurrentMovieIndex)
	assert.Equal(t, "B", gs.CurrentMovieID)
	assert.Equal(t, 2, gs.Round)
	assert.Nil(t, gs.RevealStartedAt)
	require.NotNil(t, gs.VotingStartedAt)
	assert.Equal(t, h.clock.Now(), *gs.VotingStartedAt)

	_, err = h.engine.SignalTimeout(ctx, code)
	require.NoError(t, err)
	gs, err = h.engine.Advance(ctx, code, host)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseResults, gs.Phase)
	assert.Empty(t, gs.CurrentMovieID)
	assert.Nil(t, gs.VotingStartedAt)
	assert.Nil(t, gs.RevealStartedAt)
	assert.Equal(t, gs, h.room(t, code).GameState)
}

func TestMoviesAddedDuringVotingJoinTheOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	code, host := h.newRoom(t, nil, "A")
	_, err := h.engine.StartGame(ctx, code, host)
	require.NoError(t, err)

	_, err = h.engine.AddMovies(ctx, code, host, candidates("B"))
	require.NoError(t, err)
	_, err = h.engine.SignalTimeout(ctx, code)
	require.NoError(t, err)

	gs, err := h.engine.Advance(ctx, code, host)
	require.NoError(t, err)
	assert.Equal(t, "B", gs.CurrentMovieID)
}
