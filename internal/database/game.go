package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/chessmatch/internal/models"
)

// InsertRoomActions persists a batch of room actions in a single transaction.
// Actions already stored are skipped, so a redelivered batch is harmless.
func InsertRoomActions(ctx context.Context, pool *pgxpool.Pool, actions []models.RoomAction) error {
	if len(actions) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, a := range actions {
			payload, err := json.Marshal(a.Payload)
			if err != nil {
				return fmt.Errorf("failed to marshal payload of %s/%d: %w", a.RoomID, a.ActionIndex, err)
			}
			batch.Queue(`
				INSERT INTO room_actions (room_id, game_no, action_index, actor_id, action_type, payload, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT DO NOTHING
			`, a.RoomID, a.GameNo, a.ActionIndex, a.ActorID, a.ActionType, payload, time.UnixMilli(a.Timestamp))
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("failed to insert %d room actions: %w", len(actions), err)
	}
	return nil
}
