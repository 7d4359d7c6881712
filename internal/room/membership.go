package room

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/moviematch/internal/models"
	"github.com/jason-s-yu/moviematch/internal/roomcode"
	"github.com/jason-s-yu/moviematch/internal/store"
)

// maxCandidateIDLength bounds candidate ids, which become store path segments.
const maxCandidateIDLength = 128

// CreateParams describes a new room.
type CreateParams struct {
	CreatorName string
	Filters     json.RawMessage
	Settings    map[string]interface{}
}

// CreateRoom allocates a free code and stores a new room in the lobby phase
// with the creator as its host.
func (e *Engine) CreateRoom(ctx context.Context, p CreateParams) (*models.Room, error) {
	name, err := displayName(p.CreatorName, "Anonymous", "creator name")
	if err != nil {
		return nil, err
	}
	settings, err := models.ParseSettings(p.Settings, models.DefaultSettings())
	if err != nil {
		return nil, validationError("invalid settings: %v", err)
	}
	filters := p.Filters
	if len(filters) == 0 || string(filters) == "null" {
		filters = json.RawMessage(`{}`)
	} else if !json.Valid(filters) {
		return nil, validationError("filters must be valid JSON")
	}

	now := e.timestamp()
	host := models.User{
		ID:       uuid.NewString(),
		Name:     name,
		IsHost:   true,
		JoinedAt: now,
	}
	r := &models.Room{
		CreatedAt: now,
		Creator:   name,
		Active:    true,
		Settings:  settings,
		Filters:   filters,
		GameState: models.GameState{Phase: models.PhaseLobby},
		Users:     map[string]models.User{host.ID: host},
	}

	// Allocate only finds a code that looked free; Create is the real claim.
	for attempt := 0; attempt < roomcode.MaxAttempts; attempt++ {
		code, err := e.codes.Allocate(ctx, e.roomExists)
		if err != nil {
			return nil, adapterError("allocate room code", err)
		}
		r.Code = code
		err = e.store.Create(ctx, roomPath(code), r)
		if errors.Is(err, store.ErrExists) {
			e.log.WithField("room", code).Debug("room code claimed concurrently, retrying")
			continue
		}
		if err != nil {
			return nil, adapterError("create room", err)
		}

		e.log.WithFields(logrus.Fields{"room": code, "host": host.ID}).Info("room created")
		e.record(ctx, code, host.ID, models.ActionRoomCreated, map[string]interface{}{
			"creator":  name,
			"gameMode": settings.GameMode,
		})
		return r, nil
	}
	return nil, adapterError("allocate room code", roomcode.ErrExhausted)
}

func (e *Engine) roomExists(ctx context.Context, code string) (bool, error) {
	_, err := e.store.Read(ctx, roomPath(code, "id"))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetRoom returns the stored room as is.
func (e *Engine) GetRoom(ctx context.Context, code string) (*models.Room, error) {
	return e.loadRoom(ctx, code)
}

// Join adds a new guest to the room. Joining never changes the phase.
func (e *Engine) Join(ctx context.Context, code, userName string) (*models.Room, models.User, error) {
	name, err := displayName(userName, "Guest", "user name")
	if err != nil {
		return nil, models.User{}, err
	}
	r, err := e.loadActiveRoom(ctx, code)
	if err != nil {
		return nil, models.User{}, err
	}
	switch {
	case r.GameState.Phase == models.PhaseSelected:
		return nil, models.User{}, invalidStateError("room %s has already picked a movie", r.Code)
	case r.GameState.Phase != models.PhaseLobby && !r.Settings.AllowLateJoin:
		return nil, models.User{}, invalidStateError("room %s does not allow joining after the game started", r.Code)
	}

	u := models.User{
		ID:       uuid.NewString(),
		Name:     name,
		IsHost:   false,
		JoinedAt: e.timestamp(),
	}
	if err := e.store.Write(ctx, roomPath(r.Code, "users", u.ID), u); err != nil {
		return nil, models.User{}, adapterError("add user", err)
	}
	if r.Users == nil {
		r.Users = make(map[string]models.User)
	}
	r.Users[u.ID] = u

	e.log.WithFields(logrus.Fields{"room": r.Code, "user": u.ID}).Info("user joined room")
	e.record(ctx, r.Code, u.ID, models.ActionUserJoined, map[string]interface{}{"name": name})
	return r, u, nil
}

// AddMovies adds candidates to the pool and appends new ids to the movie
// order. Re-adding an id replaces its payload but keeps its position.
func (e *Engine) AddMovies(ctx context.Context, code, userID string, movies []models.Candidate) (int, error) {
	if len(movies) == 0 {
		return 0, validationError("please provide at least one movie")
	}
	for _, m := range movies {
		if err := validateCandidateID(m.ID); err != nil {
			return 0, err
		}
	}

	r, err := e.loadActiveRoom(ctx, code)
	if err != nil {
		return 0, err
	}
	if err := requireHost(r, userID, "add movies to the room"); err != nil {
		return 0, err
	}
	if p := r.GameState.Phase; p == models.PhaseResults || p == models.PhaseSelected {
		return 0, invalidStateError("movies can't be added once voting has finished")
	}

	now := e.timestamp()
	fields := make(map[string]any, len(movies))
	ids := make([]string, 0, len(movies))
	for _, m := range movies {
		if _, dup := fields[m.ID]; !dup {
			ids = append(ids, m.ID)
		}
		fields[m.ID] = models.Candidate{ID: m.ID, Payload: m.Payload, AddedAt: now}
	}
	if err := e.store.Merge(ctx, roomPath(r.Code, "movies"), fields); err != nil {
		return 0, adapterError("add movies", err)
	}

	err = e.store.Update(ctx, roomPath(r.Code, "movieOrder"), func(cur json.RawMessage) (any, error) {
		var order []string
		if cur != nil {
			if err := json.Unmarshal(cur, &order); err != nil {
				return nil, err
			}
		}
		present := make(map[string]bool, len(order))
		for _, id := range order {
			present[id] = true
		}
		for _, id := range ids {
			if !present[id] {
				order = append(order, id)
				present[id] = true
			}
		}
		return order, nil
	})
	if err != nil {
		return 0, adapterError("update movie order", err)
	}

	e.log.WithFields(logrus.Fields{"room": r.Code, "count": len(ids)}).Info("movies added")
	e.record(ctx, r.Code, userID, models.ActionMoviesAdded, map[string]interface{}{"movieIds": ids})
	return len(ids), nil
}

// Close marks the room inactive. Closing a closed room is a no-op.
func (e *Engine) Close(ctx context.Context, code, userID string) (*models.Room, error) {
	r, err := e.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := requireHost(r, userID, "close the room"); err != nil {
		return nil, err
	}
	if !r.Active {
		return r, nil
	}

	now := e.timestamp()
	if err := e.store.Merge(ctx, roomPath(r.Code), map[string]any{
		"active":   false,
		"closedAt": now,
	}); err != nil {
		return nil, adapterError("close room", err)
	}
	r.Active = false
	r.ClosedAt = &now

	e.log.WithField("room", r.Code).Info("room closed")
	e.record(ctx, r.Code, userID, models.ActionRoomClosed, nil)
	return r, nil
}

func displayName(name, fallback, field string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", validationError("%s must be %d characters or less", field, MaxNameLength)
	}
	if name == "" {
		return fallback, nil
	}
	return name, nil
}

func validateCandidateID(id string) error {
	if id == "" {
		return validationError("every movie needs an id")
	}
	if len(id) > maxCandidateIDLength {
		return validationError("movie id %q is too long", string([]rune(id)[:16])+"...")
	}
	if strings.ContainsAny(id, "/.#$[]") {
		return validationError("movie id %q contains reserved characters", id)
	}
	return nil
}
