package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettingsDefaults(t *testing.T) {
	s, err := ParseSettings(nil, DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, "quick", s.GameMode)
	assert.Equal(t, 10, s.CandidateCount)
	assert.Equal(t, 20*time.Second, s.VotingTimeout())
}

func TestParseSettingsGameModeThenOverrides(t *testing.T) {
	s, err := ParseSettings(map[string]interface{}{
		"gameMode":         "full",
		"votingTimeoutSec": float64(45),
		"anonymousVotes":   true,
	}, DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, "full", s.GameMode)
	assert.Equal(t, 20, s.CandidateCount)
	assert.Equal(t, 45, s.VotingTimeoutSec)
	assert.True(t, s.AnonymousVotes)
}

func TestParseSettingsRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"unknown mode":    {"gameMode": "marathon"},
		"mode type":       {"gameMode": 3},
		"count too big":   {"candidateCount": float64(MaxCandidateCount + 1)},
		"count fraction":  {"candidateCount": 2.5},
		"negative window": {"votingTimeoutSec": float64(-1)},
		"flag type":       {"allowLateJoin": "yes"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSettings(in, DefaultSettings())
			assert.Error(t, err)
		})
	}
}

func TestCandidateFromJSON(t *testing.T) {
	c, err := CandidateFromJSON(json.RawMessage(`{"id": 550, "title": "Fight Club"}`))
	require.NoError(t, err)
	assert.Equal(t, "550", c.ID)
	assert.JSONEq(t, `{"id": 550, "title": "Fight Club"}`, string(c.Payload))

	c, err = CandidateFromJSON(json.RawMessage(`{"id": " tt0137523 "}`))
	require.NoError(t, err)
	assert.Equal(t, "tt0137523", c.ID)

	_, err = CandidateFromJSON(json.RawMessage(`{"title": "no id"}`))
	assert.ErrorIs(t, err, ErrMissingCandidateID)

	_, err = CandidateFromJSON(json.RawMessage(`{"id": null}`))
	assert.ErrorIs(t, err, ErrMissingCandidateID)

	_, err = CandidateFromJSON(json.RawMessage(`{"id": {"nested": true}}`))
	assert.Error(t, err)
}

func TestOrderedMovieIDs(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := Room{
		Movies: map[string]Candidate{
			"a": {ID: "a", AddedAt: base},
			"b": {ID: "b", AddedAt: base.Add(time.Second)},
			"c": {ID: "c", AddedAt: base.Add(2 * time.Second)},
			"d": {ID: "d", AddedAt: base.Add(time.Millisecond)},
		},
		MovieOrder: []string{"c", "a", "ghost", "a"},
	}
	assert.Equal(t, []string{"c", "a", "d", "b"}, r.OrderedMovieIDs())
}
