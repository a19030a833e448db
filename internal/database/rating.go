package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/chessmatch/internal/models"
	"github.com/jason-s-yu/chessmatch/internal/rating"
)

// RatingRepo is the Postgres-backed rating.Store.
type RatingRepo struct {
	pool    *pgxpool.Pool
	initial int
}

// NewRatingRepo returns a repo whose unknown players start at initial.
func NewRatingRepo(pool *pgxpool.Pool, initial int) *RatingRepo {
	if initial <= 0 {
		initial = rating.DefaultRating
	}
	return &RatingRepo{pool: pool, initial: initial}
}

// GetRating returns the stored rating, or the initial rating for unknown players.
func (r *RatingRepo) GetRating(ctx context.Context, playerID string) (int, error) {
	var v int
	err := r.pool.QueryRow(ctx, `SELECT rating FROM players WHERE id = $1`, playerID).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.initial, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rating for %s: %w", playerID, err)
	}
	return v, nil
}

// ApplyOutcome logs the rating change in the 'ratings' table and updates the player row
// in one transaction. A second call for the same room, game and player does nothing.
func (r *RatingRepo) ApplyOutcome(ctx context.Context, o rating.Outcome) error {
	newRating := o.NewRating()
	win, loss := resultCounters(o.Result)

	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO ratings (room_id, game_no, player_id, result, old_rating, new_rating)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT DO NOTHING
		`, o.RoomID, o.GameNo, o.PlayerID, string(o.Result), o.Rating, newRating)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO players (id, rating, games_total, wins, losses)
			VALUES ($1, $2, 1, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				rating = EXCLUDED.rating,
				games_total = players.games_total + 1,
				wins = players.wins + EXCLUDED.wins,
				losses = players.losses + EXCLUDED.losses,
				updated_at = NOW()
		`, o.PlayerID, newRating, win, loss)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to apply rating outcome for %s: %w", o.PlayerID, err)
	}
	return nil
}

func resultCounters(res models.Result) (win, loss int) {
	switch res {
	case models.ResultWin:
		return 1, 0
	case models.ResultLoss:
		return 0, 1
	}
	return 0, 0
}
