package room

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/moviematch/internal/models"
	"github.com/jason-s-yu/moviematch/internal/voting"
)

// VoteResult is what a voter learns after casting a vote.
type VoteResult struct {
	MovieID  string            `json:"movieId"`
	Record   models.VoteRecord `json:"votes"`
	AllVoted bool              `json:"allVoted"`
	Revealed bool              `json:"revealed"`
	Phase    models.Phase      `json:"phase"`
}

// RecordVote stores userID's yes/no vote on the candidate being voted on.
// When the vote completes the quorum the room moves to reveal.
func (e *Engine) RecordVote(ctx context.Context, code, userID, movieID string, value bool) (*VoteResult, error) {
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
	if r.GameState.Phase != models.PhaseVoting {
		return nil, invalidStateError("room %s is not accepting votes", r.Code)
	}
	if r.GameState.CurrentMovieID != movieID {
		return nil, invalidStateError("voting is open for another movie")
	}

	var rec models.VoteRecord
	err = e.store.Update(ctx, roomPath(r.Code, "votes", movieID), func(cur json.RawMessage) (any, error) {
		var prev models.VoteRecord
		if cur != nil {
			if err := json.Unmarshal(cur, &prev); err != nil {
				return nil, err
			}
		}
		rec = voting.Apply(voting.Repair(prev), userID, value)
		return rec, nil
	})
	if err != nil {
		return nil, adapterError("record vote", err)
	}

	// quorum is judged against the membership as it is now, not as loaded
	users, err := e.readUsers(ctx, r.Code)
	if err != nil {
		return nil, err
	}
	res := &VoteResult{
		MovieID:  movieID,
		Record:   rec,
		AllVoted: voting.AllVoted(users, rec),
		Phase:    models.PhaseVoting,
	}
	if r.Settings.AnonymousVotes {
		res.Record.Users = map[string]bool{userID: value}
	}

	e.log.WithFields(logrus.Fields{
		"room":     r.Code,
		"user":     userID,
		"movie":    movieID,
		"allVoted": res.AllVoted,
	}).Debug("vote recorded")
	payload := map[string]interface{}{"movieId": movieID}
	if !r.Settings.AnonymousVotes {
		payload["vote"] = value
	}
	e.record(ctx, r.Code, userID, models.ActionVoteRecorded, payload)

	if res.AllVoted {
		gs, revealed, err := e.revealIfVoting(ctx, r.Code, movieID, "all_voted")
		if err != nil {
			return nil, err
		}
		res.Revealed = revealed
		res.Phase = gs.Phase
	}
	return res, nil
}

func (e *Engine) readUsers(ctx context.Context, code string) (map[string]models.User, error) {
	raw, err := e.store.Read(ctx, roomPath(code, "users"))
	if err != nil {
		return nil, adapterError("read users", err)
	}
	var users map[string]models.User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, adapterError("decode users", err)
	}
	return users, nil
}
