package voting

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/jason-s-yu/moviematch/internal/models"
)

// RouletteSize is how many top-ranked movies the roulette draws from.
const RouletteSize = 3

// MajorityThreshold is the yes fraction a top movie must strictly exceed to
// win outright.
const MajorityThreshold = 0.5

// ErrEmptyPool is returned when the roulette has nothing to pick from.
var ErrEmptyPool = errors.New("voting: no movies to pick from")

// Result is one movie's standing once voting is over.
type Result struct {
	ID         string          `json:"id"`
	Movie      json.RawMessage `json:"movie,omitempty"`
	YesVotes   int             `json:"yesVotes"`
	NoVotes    int             `json:"noVotes"`
	TotalVotes int             `json:"totalVotes"`
	Score      int             `json:"score"`
}

// Rank builds a Result per id in order and sorts them by score, highest
// first. The sort is stable so ties keep their order position.
func Rank(order []string, votes map[string]models.VoteRecord) []Result {
	results := make([]Result, 0, len(order))
	for _, id := range order {
		rec := votes[id]
		results = append(results, Result{
			ID:         id,
			YesVotes:   rec.Yes,
			NoVotes:    rec.No,
			TotalVotes: rec.Total(),
			Score:      rec.Yes,
		})
	}
	slices.SortStableFunc(results, func(a, b Result) int {
		return b.Score - a.Score
	})
	return results
}

// TopThree returns up to RouletteSize leading results.
func TopThree(results []Result) []Result {
	if len(results) > RouletteSize {
		return results[:RouletteSize]
	}
	return results
}

// PickRoulette draws one of pool uniformly. intn must return a value in [0, n).
func PickRoulette(pool []Result, intn func(n int) int) (Result, error) {
	if len(pool) == 0 {
		return Result{}, ErrEmptyPool
	}
	return pool[intn(len(pool))], nil
}

// ClearMajority returns the leading result when it wins outright: it must be
// the only movie with the top score and more than half of its votes must be
// yes. Anything else, including an exact 50% split, is left to the roulette.
func ClearMajority(results []Result) (Result, bool) {
	if len(results) == 0 {
		return Result{}, false
	}
	top := results[0]
	if top.TotalVotes == 0 {
		return Result{}, false
	}
	if len(results) > 1 && results[1].Score == top.Score {
		return Result{}, false
	}
	if float64(top.YesVotes)/float64(top.TotalVotes) <= MajorityThreshold {
		return Result{}, false
	}
	return top, true
}
