// Package historian drains the room action queue from Redis into Postgres and
// marks rooms abandoned once they go quiet.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/moviematch/internal/cache"
	"github.com/jason-s-yu/moviematch/internal/models"
)

// Room statuses kept in room_history.
const (
	StatusActive    = "active"
	StatusSelected  = "selected"
	StatusClosed    = "closed"
	StatusAbandoned = "abandoned"
)

// Sink persists what the historian collects.
type Sink interface {
	WriteBatch(ctx context.Context, actions []models.RoomAction) error
	MarkAbandoned(ctx context.Context, roomCode string) error
}

// Options tune batching and inactivity tracking.
type Options struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration
	Inactivity time.Duration // how long a room may stay quiet before it is abandoned
}

// Service encapsulates the Redis + DB logic for capturing room actions.
type Service struct {
	rdb  redis.Cmdable
	sink Sink
	log  *logrus.Logger
	opts Options
	now  func() time.Time

	popTimeout   time.Duration
	lastActivity sync.Map // room code -> time.Time

	batchMu sync.Mutex
	batch   []models.RoomAction
}

// New builds a Service. Zero options fall back to the default queue, 20
// actions, 500ms and 30m.
func New(rdb redis.Cmdable, sink Sink, logger *logrus.Logger, opts Options) *Service {
	if opts.Queue == "" {
		opts.Queue = cache.DefaultQueueName
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.Inactivity <= 0 {
		opts.Inactivity = 30 * time.Minute
	}
	return &Service{
		rdb:        rdb,
		sink:       sink,
		log:        logger,
		opts:       opts,
		now:        time.Now,
		popTimeout: 3 * time.Second,
		batch:      make([]models.RoomAction, 0, opts.BatchSize),
	}
}

// Run starts the queue reader, the batch flusher and the inactivity sweep and
// blocks until ctx is cancelled. Whatever is still batched is flushed before
// returning.
func (s *Service) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.readLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.flushLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.inactivityLoop(ctx)
	}()

	s.log.WithField("queue", s.opts.Queue).Info("historian started")
	<-ctx.Done()
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.flush(flushCtx)
	s.log.Info("historian shutting down")
	return nil
}

// readLoop pops actions with BLPop, using a bounded timeout so cancellation
// is noticed.
func (s *Service) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		res, err := s.rdb.BLPop(ctx, s.popTimeout, s.opts.Queue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				s.log.WithError(err).Error("BLPop failed")
				time.Sleep(time.Second)
			}
			continue
		}
		// res[0] is the queue name and res[1] the payload
		if len(res) < 2 {
			continue
		}
		if err := s.handle(ctx, []byte(res[1])); err != nil {
			s.log.WithError(err).Warn("dropping invalid action record")
		}
	}
}

// flushLoop writes partial batches every FlushDelay, independent of how long
// readLoop is blocked waiting for the queue.
func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.FlushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

// handle decodes one queued action and adds it to the batch.
func (s *Service) handle(ctx context.Context, payload []byte) error {
	var action models.RoomAction
	if err := json.Unmarshal(payload, &action); err != nil {
		return fmt.Errorf("decode action: %w", err)
	}
	if action.RoomCode == "" || action.ActionType == "" {
		return errors.New("action is missing its room or type")
	}

	if action.ActionType == models.ActionRoomClosed {
		s.lastActivity.Delete(action.RoomCode)
	} else {
		s.lastActivity.Store(action.RoomCode, s.now())
	}

	s.batchMu.Lock()
	s.batch = append(s.batch, action)
	full := len(s.batch) >= s.opts.BatchSize
	s.batchMu.Unlock()

	if full {
		s.flush(ctx)
	}
	return nil
}

// flush writes the current batch in one go. A failed batch is logged and
// dropped.
func (s *Service) flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	batch := make([]models.RoomAction, len(s.batch))
	copy(batch, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.sink.WriteBatch(ctx, batch); err != nil {
		s.log.WithError(err).WithField("count", len(batch)).Error("failed to flush actions")
		return
	}
	s.log.WithField("count", len(batch)).Debug("flushed actions")
}

func (s *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep marks every room that has been quiet longer than the inactivity
// threshold as abandoned.
func (s *Service) sweep(ctx context.Context) {
	now := s.now()
	s.lastActivity.Range(func(key, val interface{}) bool {
		code, ok1 := key.(string)
		last, ok2 := val.(time.Time)
		if !ok1 || !ok2 || now.Sub(last) <= s.opts.Inactivity {
			return true
		}
		if err := s.sink.MarkAbandoned(ctx, code); err != nil {
			s.log.WithError(err).WithField("room", code).Error("failed to mark room abandoned")
			return true
		}
		s.lastActivity.Delete(code)
		s.log.WithField("room", code).Info("marked room abandoned due to inactivity")
		return true
	})
}

// StatusForAction is the room_history status an action implies.
func StatusForAction(actionType string) string {
	switch actionType {
	case models.ActionMovieSelected:
		return StatusSelected
	case models.ActionRoomClosed:
		return StatusClosed
	default:
		return StatusActive
	}
}
