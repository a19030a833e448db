package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool for url and pings it.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return pool, nil
}

// Schema creates the tables used by the rating store and the historian.
const Schema = `
CREATE TABLE IF NOT EXISTS players (
	id          TEXT PRIMARY KEY,
	rating      INTEGER NOT NULL,
	games_total INTEGER NOT NULL DEFAULT 0,
	wins        INTEGER NOT NULL DEFAULT 0,
	losses      INTEGER NOT NULL DEFAULT 0,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ratings (
	room_id    TEXT NOT NULL,
	game_no    INTEGER NOT NULL,
	player_id  TEXT NOT NULL,
	result     TEXT NOT NULL,
	old_rating INTEGER NOT NULL,
	new_rating INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (room_id, game_no, player_id)
);

CREATE TABLE IF NOT EXISTS room_actions (
	room_id      TEXT NOT NULL,
	game_no      INTEGER NOT NULL,
	action_index INTEGER NOT NULL,
	actor_id     TEXT NOT NULL,
	action_type  TEXT NOT NULL,
	payload      JSONB,
	created_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (room_id, game_no, action_index)
);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
