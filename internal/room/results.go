package room

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/moviematch/internal/models"
	"github.com/jason-s-yu/moviematch/internal/store"
	"github.com/jason-s-yu/moviematch/internal/voting"
)

// Results is the ranked outcome of a room's votes.
type Results struct {
	RoomCode    string          `json:"roomId"`
	TotalMovies int             `json:"totalMovies"`
	TotalVotes  int             `json:"totalVotes"`
	Results     []voting.Result `json:"results"`
	TopThree    []voting.Result `json:"topThree"`
}

// ComputeResults ranks every candidate by yes votes. Ties keep the order the
// candidates were added in.
func (e *Engine) ComputeResults(ctx context.Context, code string) (*Results, error) {
	r, err := e.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	return computeResults(r), nil
}

func computeResults(r *models.Room) *Results {
	ranked := voting.Rank(r.OrderedMovieIDs(), r.Votes)
	total := 0
	for i := range ranked {
		ranked[i].Movie = r.Movies[ranked[i].ID].Payload
		total += ranked[i].TotalVotes
	}
	return &Results{
		RoomCode:    r.Code,
		TotalMovies: len(ranked),
		TotalVotes:  total,
		Results:     ranked,
		TopThree:    voting.TopThree(ranked),
	}
}

// PickByRoulette draws the winner uniformly from the top three.
func (e *Engine) PickByRoulette(ctx context.Context, code string) (*models.Selection, error) {
	r, err := e.loadActiveRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if r.GameState.Phase != models.PhaseResults {
		return nil, invalidStateError("roulette is only available once voting is over")
	}
	return e.roulette(ctx, r)
}

func (e *Engine) roulette(ctx context.Context, r *models.Room) (*models.Selection, error) {
	res := computeResults(r)
	pick, err := voting.PickRoulette(res.TopThree, e.intn)
	if errors.Is(err, voting.ErrEmptyPool) {
		return nil, invalidStateError("no movies to pick from")
	}
	if err != nil {
		return nil, err
	}
	return e.finalize(ctx, r, pick, models.SelectedByRoulette, "")
}

// SelectWinner records movieID as the room's pick on behalf of userID. It
// makes no judgment about whether the votes justify the choice.
func (e *Engine) SelectWinner(ctx context.Context, code, movieID, userID string) (*models.Selection, error) {
	r, err := e.loadActiveRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if _, err := requireMember(r, userID); err != nil {
		return nil, err
	}
	if _, ok := r.Movies[movieID]; !ok || movieID == "" {
		return nil, notFoundError("movie %s not found in room %s", movieID, r.Code)
	}
	if r.GameState.Phase != models.PhaseResults {
		return nil, invalidStateError("a winner can only be selected once voting is over")
	}
	rec := r.Votes[movieID]
	pick := voting.Result{
		ID:         movieID,
		Movie:      r.Movies[movieID].Payload,
		YesVotes:   rec.Yes,
		NoVotes:    rec.No,
		TotalVotes: rec.Total(),
		Score:      rec.Yes,
	}
	return e.finalize(ctx, r, pick, models.SelectedByVote, userID)
}

// Resolve selects the clear majority winner if there is one and falls back
// to the roulette otherwise.
func (e *Engine) Resolve(ctx context.Context, code, userID string) (*models.Selection, error) {
	r, err := e.loadActiveRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if _, err := requireMember(r, userID); err != nil {
		return nil, err
	}
	if r.GameState.Phase != models.PhaseResults {
		return nil, invalidStateError("a winner can only be selected once voting is over")
	}
	res := computeResults(r)
	if winner, ok := voting.ClearMajority(res.Results); ok {
		return e.finalize(ctx, r, winner, models.SelectedByVote, userID)
	}
	return e.roulette(ctx, r)
}

// finalize stores the pick and then moves the room from results to
// selected. selectedMovie is created only if absent, so the first caller's
// pick stands. A pick left behind by a call that failed before the phase
// moved is completed by the next caller, which gets that pick back.
func (e *Engine) finalize(ctx context.Context, r *models.Room, pick voting.Result, method models.SelectionMethod, by string) (*models.Selection, error) {
	sel := &models.Selection{
		MovieID:    pick.ID,
		Movie:      pick.Movie,
		YesVotes:   pick.YesVotes,
		NoVotes:    pick.NoVotes,
		SelectedAt: e.timestamp(),
		Method:     method,
		SelectedBy: by,
	}
	path := roomPath(r.Code, "selectedMovie")
	err := e.store.Create(ctx, path, sel)
	if errors.Is(err, store.ErrExists) {
		moved, err := e.markSelected(ctx, r.Code)
		if err != nil {
			return nil, err
		}
		if !moved {
			return nil, invalidStateError("a movie has already been selected")
		}
		raw, err := e.store.Read(ctx, path)
		if err != nil {
			return nil, adapterError("read selected movie", err)
		}
		var prev models.Selection
		if err := json.Unmarshal(raw, &prev); err != nil {
			return nil, adapterError("decode selected movie", err)
		}
		e.selected(ctx, r.Code, &prev)
		return &prev, nil
	}
	if err != nil {
		return nil, adapterError("store selected movie", err)
	}

	moved, err := e.markSelected(ctx, r.Code)
	if err != nil {
		return nil, err
	}
	if moved {
		e.selected(ctx, r.Code, sel)
	}
	return sel, nil
}

// markSelected moves the game state from results to selected. It reports
// false when another caller already did.
func (e *Engine) markSelected(ctx context.Context, code string) (bool, error) {
	moved := false
	err := e.store.Update(ctx, roomPath(code, "gameState"), func(cur json.RawMessage) (any, error) {
		gs, err := decodeGameState(cur)
		if err != nil {
			return nil, err
		}
		switch gs.Phase {
		case models.PhaseSelected:
			return nil, store.ErrSkipWrite
		case models.PhaseResults:
		default:
			return nil, invalidStateError("room %s is not showing results", code)
		}
		gs.Phase = models.PhaseSelected
		moved = true
		return gs, nil
	})
	if err != nil {
		return false, adapterError("select movie", err)
	}
	return moved, nil
}

func (e *Engine) selected(ctx context.Context, code string, sel *models.Selection) {
	e.log.WithFields(logrus.Fields{"room": code, "movie": sel.MovieID, "method": sel.Method}).Info("movie selected")
	e.record(ctx, code, sel.SelectedBy, models.ActionMovieSelected, map[string]interface{}{
		"movieId": sel.MovieID,
		"method":  string(sel.Method),
	})
}
