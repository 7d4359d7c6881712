// internal/models/room.go
package models

import (
	"encoding/json"
	"time"
)

// Phase is a room's stage in the voting lifecycle.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseVoting   Phase = "voting"
	PhaseReveal   Phase = "reveal"
	PhaseResults  Phase = "results"
	PhaseSelected Phase = "selected"
)

// Room is the full state of one voting session, stored under rooms/{code}.
type Room struct {
	Code      string          `json:"id"`
	CreatedAt time.Time       `json:"createdAt"`
	Creator   string          `json:"creator"`
	Active    bool            `json:"active"`
	ClosedAt  *time.Time      `json:"closedAt,omitempty"`
	Settings  Settings        `json:"settings"`
	Filters   json.RawMessage `json:"filters,omitempty"` // passed through to the catalog untouched

	GameState GameState `json:"gameState"`

	Users  map[string]User       `json:"users"`
	Movies map[string]Candidate  `json:"movies,omitempty"`
	Votes  map[string]VoteRecord `json:"votes,omitempty"`

	// MovieOrder fixes the sequence candidates are presented in.
	MovieOrder []string `json:"movieOrder,omitempty"`

	SelectedMovie *Selection `json:"selectedMovie,omitempty"`
}

// Host returns the room's host user.
func (r *Room) Host() (User, bool) {
	for _, u := range r.Users {
		if u.IsHost {
			return u, true
		}
	}
	return User{}, false
}

// OrderedMovieIDs returns every candidate id in presentation order. Candidates
// missing from MovieOrder are appended by the time they were added.
func (r *Room) OrderedMovieIDs() []string {
	ids := make([]string, 0, len(r.Movies))
	seen := make(map[string]bool, len(r.Movies))
	for _, id := range r.MovieOrder {
		if _, ok := r.Movies[id]; ok && !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}
	var rest []Candidate
	for id, c := range r.Movies {
		if !seen[id] {
			rest = append(rest, c)
		}
	}
	sortCandidatesByAdded(rest)
	for _, c := range rest {
		ids = append(ids, c.ID)
	}
	return ids
}

// User is a member of a room. IDs are opaque tokens handed out on create/join.
type User struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	IsHost   bool      `json:"isHost"`
	JoinedAt time.Time `json:"joinedAt"`
}

// VoteRecord tallies the yes/no votes for one candidate.
// Yes+No always equals len(Users); a user appears at most once.
type VoteRecord struct {
	Yes   int             `json:"yes"`
	No    int             `json:"no"`
	Users map[string]bool `json:"users"`
}

// Total returns the number of votes cast.
func (v VoteRecord) Total() int {
	return v.Yes + v.No
}

// GameState tracks the phase machine for a room.
type GameState struct {
	Phase             Phase      `json:"phase"`
	CurrentMovieIndex int        `json:"currentMovieIndex"`
	CurrentMovieID    string     `json:"currentMovieId,omitempty"`
	Round             int        `json:"round"`
	VotingStartedAt   *time.Time `json:"votingStartedAt,omitempty"`
	RevealStartedAt   *time.Time `json:"revealStartedAt,omitempty"`
}

// SelectionMethod records how the final movie was chosen.
type SelectionMethod string

const (
	SelectedByVote     SelectionMethod = "vote"
	SelectedByRoulette SelectionMethod = "roulette"
)

// Selection is the room's final pick plus its audit trail.
type Selection struct {
	MovieID    string          `json:"id"`
	Movie      json.RawMessage `json:"movie,omitempty"`
	YesVotes   int             `json:"yesVotes"`
	NoVotes    int             `json:"noVotes"`
	SelectedAt time.Time       `json:"selectedAt"`
	Method     SelectionMethod `json:"selectionMethod"`
	SelectedBy string          `json:"selectedBy,omitempty"` // only set for vote-based selection
}
