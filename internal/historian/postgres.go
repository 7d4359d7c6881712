package historian

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jason-s-yu/moviematch/internal/models"
)

// PGSink writes actions into room_history and room_actions.
type PGSink struct {
	pool *pgxpool.Pool
}

var _ Sink = (*PGSink)(nil)

// NewPGSink wraps pool. The schema from database.Migrate must be applied.
func NewPGSink(pool *pgxpool.Pool) *PGSink {
	return &PGSink{pool: pool}
}

// WriteBatch stores a batch in a single transaction.
func (p *PGSink) WriteBatch(ctx context.Context, actions []models.RoomAction) error {
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, a := range actions {
			if err := insertActionTx(ctx, tx, a); err != nil {
				return fmt.Errorf("insertActionTx: %w", err)
			}
		}
		return nil
	})
}

// MarkAbandoned marks a room abandoned if it was still active.
func (p *PGSink) MarkAbandoned(ctx context.Context, roomCode string) error {
	q := `
		UPDATE room_history
		SET status = $2, last_seen = NOW()
		WHERE room_code = $1 AND status = $3
	`
	_, err := p.pool.Exec(ctx, q, roomCode, StatusAbandoned, StatusActive)
	return err
}

// insertActionTx upserts the room's history row, then inserts the action.
// A room that reached selected or closed never drops back to active.
func insertActionTx(ctx context.Context, tx pgx.Tx, a models.RoomAction) error {
	at := time.UnixMilli(a.Timestamp).UTC()

	upsertRoomQ := `
		INSERT INTO room_history (room_code, status, first_seen, last_seen)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (room_code)
		DO UPDATE SET
			last_seen = GREATEST(room_history.last_seen, EXCLUDED.last_seen),
			status = CASE
				WHEN room_history.status = 'closed' THEN room_history.status
				WHEN room_history.status = 'selected' AND EXCLUDED.status = 'active' THEN room_history.status
				ELSE EXCLUDED.status
			END
	`
	if _, err := tx.Exec(ctx, upsertRoomQ, a.RoomCode, StatusForAction(a.ActionType), at); err != nil {
		return err
	}

	payload, err := json.Marshal(a.ActionPayload)
	if err != nil {
		return err
	}
	actionInsertQ := `
		INSERT INTO room_actions (
			id, room_code, actor_user_id, action_type, action_payload, created_at
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = tx.Exec(ctx, actionInsertQ, a.ID, a.RoomCode, a.ActorUserID, a.ActionType, payload, at)
	return err
}
