package room

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/moviematch/internal/models"
)

func TestRecordVoteChecks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	code, host := h.newRoom(t, nil, "A", "B")

	_, err := h.engine.RecordVote(ctx, code, host, "A", true)
	assert.Equal(t, KindInvalidState, KindOf(err), "no votes in the lobby")

	_, err = h.engine.StartGame(ctx, code, host)
	require.NoError(t, err)

	_, err = h.engine.RecordVote(ctx, code, "stranger", "A", true)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = h.engine.RecordVote(ctx, code, host, "Z", true)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = h.engine.RecordVote(ctx, code, host, "B", true)
	assert.Equal(t, KindInvalidState, KindOf(err))

	_, err = h.engine.RecordVote(ctx, "QQQQQQ", host, "A", true)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestRevoteThroughEngine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	code, host := h.newRoom(t, nil, "A")
	h.join(t, code, "Guest")
	_, err := h.engine.StartGame(ctx, code, host)
	require.NoError(t, err)

	for _, v := range []bool{true, false, true, true} {
		res, err := h.engine.RecordVote(ctx, code, host, "A", v)
		require.NoError(t, err)
		assert.False(t, res.AllVoted)
	}

	rec := h.room(t, code).Votes["A"]
	assert.Equal(t, 1, rec.Yes)
	assert.Equal(t, 0, rec.No)
	assert.Equal(t, map[string]bool{host: true}, rec.Users)
}

func TestQuorumRevealsOnLastVote(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	code, host := h.newRoom(t, nil, "A", "B")
	guest := h.join(t, code, "Guest")
	_, err := h.engine.StartGame(ctx, code, host)
	require.NoError(t, err)

	res, err := h.engine.RecordVote(ctx, code, host, "A", true)
	require.NoError(t, err)
	assert.False(t, res.AllVoted)
	assert.False(t, res.Revealed)
	assert.Equal(t, models.PhaseVoting, res.Phase)

	res, err = h.engine.RecordVote(ctx, code, guest, "A", false)
	require.NoError(t, err)
	assert.True(t, res.AllVoted)
	assert.True(t, res.Revealed)
	assert.Equal(t, models.PhaseReveal, res.Phase)
	assert.Equal(t, 1, res.Record.Yes)
	assert.Equal(t, 1, res.Record.No)

	_, err = h.engine.RecordVote(ctx, code, guest, "A", true)
	assert.Equal(t, KindInvalidState, KindOf(err), "votes close once revealed")
}

func TestLateJoinerCountsTowardQuorum(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	code, host := h.newRoom(t, nil, "A")
	_, err := h.engine.StartGame(ctx, code, host)
	require.NoError(t, err)

	late := h.join(t, code, "Late")
	res, err := h.engine.RecordVote(ctx, code, host, "A", true)
	require.NoError(t, err)
	assert.False(t, res.AllVoted)

	res, err = h.engine.RecordVote(ctx, code, late, "A", true)
	require.NoError(t, err)
	assert.True(t, res.AllVoted)
}

func TestConcurrentVotesAreNotLost(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	code, host := h.newRoom(t, nil, "A")

	users := []string{host}
	for i := 0; i < 24; i++ {
		users = append(users, h.join(t, code, fmt.Sprintf("Guest %d", i)))
	}
	_, err := h.engine.StartGame(ctx, code, host)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		revealed int
	)
	for i, u := range users {
		wg.Add(1)
		go func(u string, yes bool) {
			defer wg.Done()
			res, err := h.engine.RecordVote(ctx, code, u, "A", yes)
			if err != nil {
				// votes landing after the reveal are rejected
				assert.Equal(t, KindInvalidState, KindOf(err))
				return
			}
			if res.Revealed {
				mu.Lock()
				revealed++
				mu.Unlock()
			}
		}(u, i%2 == 0)
	}
	wg.Wait()

	r := h.room(t, code)
	rec := r.Votes["A"]
	assert.Equal(t, len(users), rec.Total())
	assert.Len(t, rec.Users, len(users))
	assert.Equal(t, models.PhaseReveal, r.GameState.Phase)
	assert.Equal(t, 1, revealed)
	assert.Equal(t, 1, h.log.count(models.ActionPhaseReveal))
}
