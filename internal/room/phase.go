package room

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/moviematch/internal/models"
	"github.com/jason-s-yu/moviematch/internal/store"
)

// StartGame moves a room from the lobby into voting on its first candidate.
func (e *Engine) StartGame(ctx context.Context, code, userID string) (models.GameState, error) {
	r, err := e.loadActiveRoom(ctx, code)
	if err != nil {
		return models.GameState{}, err
	}
	if err := requireHost(r, userID, "start the game"); err != nil {
		return models.GameState{}, err
	}
	if r.GameState.Phase != models.PhaseLobby {
		return models.GameState{}, invalidStateError("game has already started")
	}
	order := r.OrderedMovieIDs()
	if len(order) == 0 {
		return models.GameState{}, invalidStateError("add at least one movie before starting")
	}
	if len(order) != len(r.MovieOrder) {
		// pin the order so later rounds see the same sequence
		if err := e.store.Write(ctx, roomPath(r.Code, "movieOrder"), order); err != nil {
			return models.GameState{}, adapterError("write movie order", err)
		}
	}

	var started models.GameState
	err = e.store.Update(ctx, roomPath(r.Code, "gameState"), func(cur json.RawMessage) (any, error) {
		gs, err := decodeGameState(cur)
		if err != nil {
			return nil, err
		}
		if gs.Phase != models.PhaseLobby {
			return nil, invalidStateError("game has already started")
		}
		now := e.timestamp()
		started = models.GameState{
			Phase:             models.PhaseVoting,
			CurrentMovieIndex: 0,
			CurrentMovieID:    order[0],
			Round:             1,
			VotingStartedAt:   &now,
		}
		return started, nil
	})
	if err != nil {
		return models.GameState{}, adapterError("start game", err)
	}

	e.log.WithFields(logrus.Fields{"room": r.Code, "movies": len(order)}).Info("game started")
	e.record(ctx, r.Code, userID, models.ActionGameStarted, map[string]interface{}{
		"movieCount": len(order),
		"movieId":    order[0],
	})
	return started, nil
}

// SignalTimeout ends voting on the current candidate regardless of the clock.
func (e *Engine) SignalTimeout(ctx context.Context, code string) (models.GameState, error) {
	r, err := e.loadActiveRoom(ctx, code)
	if err != nil {
		return models.GameState{}, err
	}
	if r.GameState.Phase != models.PhaseVoting {
		return models.GameState{}, invalidStateError("room %s is not voting", r.Code)
	}
	gs, _, err := e.revealIfVoting(ctx, r.Code, r.GameState.CurrentMovieID, "timeout")
	return gs, err
}

// CheckTimeout reveals the current candidate if its voting window has run
// out. It reports whether this call made the transition and is safe to
// invoke on a schedule for rooms in any phase.
func (e *Engine) CheckTimeout(ctx context.Context, code string) (bool, error) {
	r, err := e.loadRoom(ctx, code)
	if err != nil {
		return false, err
	}
	gs := r.GameState
	timeout := r.Settings.VotingTimeout()
	if !r.Active || gs.Phase != models.PhaseVoting || timeout <= 0 || gs.VotingStartedAt == nil {
		return false, nil
	}
	if e.timestamp().Sub(*gs.VotingStartedAt) < timeout {
		return false, nil
	}
	_, revealed, err := e.revealIfVoting(ctx, r.Code, gs.CurrentMovieID, "timeout")
	return revealed, err
}

// revealIfVoting moves voting on movieID into reveal. The write only happens
// while the room is still voting on that candidate, so racing callers leave
// a single transition and a single revealStartedAt behind.
func (e *Engine) revealIfVoting(ctx context.Context, code, movieID, reason string) (models.GameState, bool, error) {
	var (
		gs      models.GameState
		changed bool
	)
	err := e.store.Update(ctx, roomPath(code, "gameState"), func(cur json.RawMessage) (any, error) {
		changed = false
		var err error
		gs, err = decodeGameState(cur)
		if err != nil {
			return nil, err
		}
		if gs.Phase != models.PhaseVoting || gs.CurrentMovieID != movieID {
			return nil, store.ErrSkipWrite
		}
		now := e.timestamp()
		gs.Phase = models.PhaseReveal
		gs.RevealStartedAt = &now
		changed = true
		return gs, nil
	})
	if err != nil {
		return models.GameState{}, false, adapterError("reveal votes", err)
	}
	if changed {
		e.log.WithFields(logrus.Fields{"room": code, "movie": movieID, "reason": reason}).Info("voting closed, revealing")
		e.record(ctx, code, "", models.ActionPhaseReveal, map[string]interface{}{
			"movieId": movieID,
			"reason":  reason,
		})
	}
	return gs, changed, nil
}

// Advance leaves the reveal phase, either voting on the next candidate or
// moving on to results once the order is exhausted.
func (e *Engine) Advance(ctx context.Context, code, userID string) (models.GameState, error) {
	r, err := e.loadActiveRoom(ctx, code)
	if err != nil {
		return models.GameState{}, err
	}
	if err := requireHost(r, userID, "advance the game"); err != nil {
		return models.GameState{}, err
	}
	if r.GameState.Phase != models.PhaseReveal {
		return models.GameState{}, invalidStateError("can only advance from the reveal phase")
	}
	order := r.OrderedMovieIDs()
	from := r.GameState

	var next models.GameState
	err = e.store.Update(ctx, roomPath(r.Code, "gameState"), func(cur json.RawMessage) (any, error) {
		gs, err := decodeGameState(cur)
		if err != nil {
			return nil, err
		}
		if gs.Phase != models.PhaseReveal || gs.CurrentMovieIndex != from.CurrentMovieIndex {
			return nil, invalidStateError("game state changed, try again")
		}
		idx := gs.CurrentMovieIndex + 1
		gs.RevealStartedAt = nil
		if idx < len(order) {
			now := e.timestamp()
			gs.Phase = models.PhaseVoting
			gs.CurrentMovieIndex = idx
			gs.CurrentMovieID = order[idx]
			gs.Round = idx + 1
			gs.VotingStartedAt = &now
		} else {
			gs.Phase = models.PhaseResults
			gs.CurrentMovieID = ""
			gs.VotingStartedAt = nil
		}
		next = gs
		return gs, nil
	})
	if err != nil {
		return models.GameState{}, adapterError("advance game", err)
	}

	e.log.WithFields(logrus.Fields{"room": r.Code, "phase": next.Phase, "round": next.Round}).Info("game advanced")
	e.record(ctx, r.Code, userID, models.ActionPhaseAdvanced, map[string]interface{}{
		"phase":   string(next.Phase),
		"movieId": next.CurrentMovieID,
	})
	return next, nil
}

func decodeGameState(raw json.RawMessage) (models.GameState, error) {
	var gs models.GameState
	if raw == nil {
		return gs, errors.New("room has no game state")
	}
	if err := json.Unmarshal(raw, &gs); err != nil {
		return gs, err
	}
	return gs, nil
}
