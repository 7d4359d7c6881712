// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jason-s-yu/moviematch/internal/models"
	"github.com/jason-s-yu/moviematch/internal/room"
	"github.com/jason-s-yu/moviematch/internal/roomcode"
)

type seatResponse struct {
	Room   *models.Room `json:"room"`
	UserID string       `json:"userId"`
	Token  string       `json:"token"`
}

type userRequest struct {
	UserID string `json:"userId"`
}

// seatUser returns the user a verified seat names in this room, or "" when
// the request carries none. A bearer token must be a valid seat in this room;
// a seat cookie that does not verify for this room is ignored.
func (s *RoomServer) seatUser(r *http.Request, code string) (string, error) {
	if tok := bearerToken(r); tok != "" {
		userID, err := s.Seats.VerifySeat(tok, code)
		if err != nil {
			return "", &room.Error{Kind: room.KindForbidden, Msg: "invalid seat token", Err: err}
		}
		return userID, nil
	}
	if c, err := r.Cookie(seatCookie); err == nil && c.Value != "" {
		if userID, err := s.Seats.VerifySeat(c.Value, code); err == nil {
			return userID, nil
		}
	}
	return "", nil
}

// actingUser resolves who is making a mutating request. With seats enabled
// only a verified seat counts and the body's userId is ignored.
func (s *RoomServer) actingUser(r *http.Request, code, bodyUserID string) (string, error) {
	if s.Seats == nil {
		return bodyUserID, nil
	}
	userID, err := s.seatUser(r, code)
	if err != nil {
		return "", err
	}
	if userID == "" {
		return "", &room.Error{Kind: room.KindForbidden, Msg: "a seat token for this room is required"}
	}
	return userID, nil
}

// viewer resolves whose eyes a snapshot is rendered for. Without a seat the
// caller sees the room as an outsider.
func (s *RoomServer) viewer(r *http.Request, code string) (string, error) {
	if s.Seats == nil {
		return r.URL.Query().Get("userId"), nil
	}
	return s.seatUser(r, code)
}

// issueSeat signs a seat token and sets it as a cookie.
func (s *RoomServer) issueSeat(w http.ResponseWriter, code, userID string) string {
	if s.Seats == nil {
		return ""
	}
	token, err := s.Seats.Issue(code, userID)
	if err != nil {
		s.Log.WithError(err).WithField("room", code).Warn("failed to issue seat token")
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     seatCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

func roomCode(r *http.Request) string {
	return roomcode.Normalize(chi.URLParam(r, "code"))
}

// CreateRoomHandler creates a room and seats the caller as its host.
func (s *RoomServer) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CreatorName string                 `json:"creatorName"`
		Filters     json.RawMessage        `json:"filters"`
		Settings    map[string]interface{} `json:"settings"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	rm, err := s.Engine.CreateRoom(r.Context(), room.CreateParams{
		CreatorName: req.CreatorName,
		Filters:     req.Filters,
		Settings:    req.Settings,
	})
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	host, _ := rm.Host()
	token := s.issueSeat(w, rm.Code, host.ID)
	writeJSON(w, http.StatusCreated, seatResponse{Room: rm, UserID: host.ID, Token: token})
}

// GetRoomHandler returns the room as the caller should see it.
func (s *RoomServer) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	code := roomCode(r)
	viewer, err := s.viewer(r, code)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	rm, err := s.Engine.Snapshot(r.Context(), code, viewer)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

// JoinRoomHandler adds a guest to the room.
func (s *RoomServer) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserName string `json:"userName"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	rm, u, err := s.Engine.Join(r.Context(), roomCode(r), req.UserName)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	token := s.issueSeat(w, rm.Code, u.ID)
	writeJSON(w, http.StatusOK, seatResponse{Room: rm, UserID: u.ID, Token: token})
}

// AddMoviesHandler adds catalog movies to the pool. Each movie is passed
// through untouched apart from its id.
func (s *RoomServer) AddMoviesHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		userRequest
		Movies []json.RawMessage `json:"movies"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	code := roomCode(r)
	userID, err := s.actingUser(r, code, req.UserID)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}

	movies := make([]models.Candidate, 0, len(req.Movies))
	for i, raw := range req.Movies {
		c, err := models.CandidateFromJSON(raw)
		if errors.Is(err, models.ErrMissingCandidateID) {
			badRequest(w, "movie %d has no id", i)
			return
		}
		if err != nil {
			badRequest(w, "movie %d: %v", i, err)
			return
		}
		movies = append(movies, c)
	}

	n, err := s.Engine.AddMovies(r.Context(), code, userID, movies)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": n})
}

// StartGameHandler moves the room from the lobby into voting.
func (s *RoomServer) StartGameHandler(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decodeBody(w, r, &req) {
		return
	}
	code := roomCode(r)
	userID, err := s.actingUser(r, code, req.UserID)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	gs, err := s.Engine.StartGame(r.Context(), code, userID)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gameState": gs})
}

// VoteHandler records a yes/no vote on the current movie.
func (s *RoomServer) VoteHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		userRequest
		MovieID flexibleID `json:"movieId"`
		Vote    *voteValue `json:"vote"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.MovieID == "" || req.Vote == nil {
		badRequest(w, "movieId and vote are required")
		return
	}
	code := roomCode(r)
	userID, err := s.actingUser(r, code, req.UserID)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	res, err := s.Engine.RecordVote(r.Context(), code, userID, string(req.MovieID), bool(*req.Vote))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// TimeoutHandler checks the voting clock, or with force ends voting now.
func (s *RoomServer) TimeoutHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Force bool `json:"force"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	code := roomCode(r)
	if req.Force {
		gs, err := s.Engine.SignalTimeout(r.Context(), code)
		if err != nil {
			writeError(w, r, s.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"revealed": true, "gameState": gs})
		return
	}
	fired, err := s.Engine.CheckTimeout(r.Context(), code)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revealed": fired})
}

// AdvanceHandler moves past the reveal of the current movie.
func (s *RoomServer) AdvanceHandler(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decodeBody(w, r, &req) {
		return
	}
	code := roomCode(r)
	userID, err := s.actingUser(r, code, req.UserID)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	gs, err := s.Engine.Advance(r.Context(), code, userID)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gameState": gs})
}

// ResultsHandler returns the ranked results.
func (s *RoomServer) ResultsHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.Engine.ComputeResults(r.Context(), roomCode(r))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RouletteHandler picks the winner at random from the top three.
func (s *RoomServer) RouletteHandler(w http.ResponseWriter, r *http.Request) {
	sel, err := s.Engine.PickByRoulette(r.Context(), roomCode(r))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"selectedMovie": sel})
}

// SelectHandler records the caller's chosen winner.
func (s *RoomServer) SelectHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		userRequest
		MovieID flexibleID `json:"movieId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.MovieID == "" {
		badRequest(w, "movieId is required")
		return
	}
	code := roomCode(r)
	userID, err := s.actingUser(r, code, req.UserID)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	sel, err := s.Engine.SelectWinner(r.Context(), code, string(req.MovieID), userID)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"selectedMovie": sel})
}

// ResolveHandler picks the majority winner, or spins the roulette.
func (s *RoomServer) ResolveHandler(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decodeBody(w, r, &req) {
		return
	}
	code := roomCode(r)
	userID, err := s.actingUser(r, code, req.UserID)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	sel, err := s.Engine.Resolve(r.Context(), code, userID)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"selectedMovie": sel})
}

// CloseRoomHandler deactivates the room.
func (s *RoomServer) CloseRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decodeBody(w, r, &req) {
		return
	}
	code := roomCode(r)
	userID, err := s.actingUser(r, code, req.UserID)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	rm, err := s.Engine.Close(r.Context(), code, userID)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"room": rm})
}
