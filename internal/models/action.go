package models

import "github.com/google/uuid"

// Action types published for every successful room mutation.
const (
	ActionRoomCreated   = "room_created"
	ActionUserJoined    = "user_joined"
	ActionMoviesAdded   = "movies_added"
	ActionGameStarted   = "game_started"
	ActionVoteRecorded  = "vote_recorded"
	ActionPhaseReveal   = "phase_reveal"
	ActionPhaseAdvanced = "phase_advanced"
	ActionMovieSelected = "movie_selected"
	ActionRoomClosed    = "room_closed"
)

// RoomAction is one entry of a room's action log, consumed by the historian.
type RoomAction struct {
	ID            uuid.UUID              `json:"id"`
	RoomCode      string                 `json:"room_code"`
	ActorUserID   string                 `json:"actor_user_id,omitempty"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload,omitempty"`
	Timestamp     int64                  `json:"timestamp"` // epoch millis
}
