// Package room is the room session and voting engine: it owns a room's
// lifecycle, membership, candidate pool, vote tallies, phase transitions and
// final selection. All state lives behind a store.RoomStore.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/moviematch/internal/models"
	"github.com/jason-s-yu/moviematch/internal/roomcode"
	"github.com/jason-s-yu/moviematch/internal/store"
)

// MaxNameLength bounds creator and user display names.
const MaxNameLength = 50

// ActionRecorder receives an entry for every successful room mutation.
type ActionRecorder interface {
	RecordAction(ctx context.Context, action models.RoomAction) error
}

// Engine runs room operations against a RoomStore. It keeps no room state of
// its own, so any number of engines may share one store.
type Engine struct {
	store    store.RoomStore
	codes    *roomcode.Generator
	log      logrus.FieldLogger
	now      func() time.Time
	intn     func(n int) int
	recorder ActionRecorder
	enricher Enricher
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for warnings and debug output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRandom replaces the source used by the roulette.
func WithRandom(intn func(n int) int) Option {
	return func(e *Engine) { e.intn = intn }
}

// WithCodeGenerator replaces the room code generator.
func WithCodeGenerator(g *roomcode.Generator) Option {
	return func(e *Engine) { e.codes = g }
}

// WithRecorder publishes room actions to r.
func WithRecorder(r ActionRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithEnricher decorates candidates in room snapshots.
func WithEnricher(en Enricher) Option {
	return func(e *Engine) { e.enricher = en }
}

// NewEngine builds an Engine on s.
func NewEngine(s store.RoomStore, opts ...Option) *Engine {
	e := &Engine{
		store: s,
		codes: roomcode.NewGenerator(),
		log:   logrus.StandardLogger(),
		now:   time.Now,
		intn:  rand.IntN,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func roomPath(code string, parts ...string) string {
	return store.Join(append([]string{"rooms", code}, parts...)...)
}

func (e *Engine) timestamp() time.Time {
	return e.now().UTC()
}

// loadRoom reads and decodes the whole room.
func (e *Engine) loadRoom(ctx context.Context, code string) (*models.Room, error) {
	code = roomcode.Normalize(code)
	if !roomcode.Valid(code) {
		return nil, notFoundError("room %s not found", code)
	}
	raw, err := e.store.Read(ctx, roomPath(code))
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundError("room %s not found", code)
	}
	if err != nil {
		return nil, adapterError("read room", err)
	}
	var r models.Room
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, adapterError("decode room", err)
	}
	if r.Code == "" {
		r.Code = code
	}
	return &r, nil
}

// loadActiveRoom is loadRoom for operations that mutate the room.
func (e *Engine) loadActiveRoom(ctx context.Context, code string) (*models.Room, error) {
	r, err := e.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if !r.Active {
		return nil, invalidStateError("room %s is no longer active", r.Code)
	}
	return r, nil
}

func requireMember(r *models.Room, userID string) (models.User, error) {
	u, ok := r.Users[userID]
	if !ok || userID == "" {
		return models.User{}, notFoundError("user not found in room %s", r.Code)
	}
	if u.ID == "" {
		u.ID = userID
	}
	return u, nil
}

func requireHost(r *models.Room, userID string, action string) error {
	u, err := requireMember(r, userID)
	if err != nil {
		return err
	}
	if !u.IsHost {
		return forbiddenError("only the host can %s", action)
	}
	return nil
}

// record publishes an action. Failures are logged and never fail the caller.
func (e *Engine) record(ctx context.Context, code, actor, actionType string, payload map[string]interface{}) {
	if e.recorder == nil {
		return
	}
	action := models.RoomAction{
		ID:            uuid.New(),
		RoomCode:      code,
		ActorUserID:   actor,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     e.now().UnixMilli(),
	}
	if err := e.recorder.RecordAction(ctx, action); err != nil {
		e.log.WithFields(logrus.Fields{
			"room":   code,
			"action": actionType,
		}).WithError(err).Warn("failed to publish room action")
	}
}
