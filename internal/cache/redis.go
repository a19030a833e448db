// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/chessmatch/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for room action logs.
const DefaultQueueName = "chess_room_actions"

// ErrStaleRecord is returned by SaveRoom when the stored record already carries
// an equal or higher sequence number.
var ErrStaleRecord = errors.New("stale room record")

// SlotRecord is the persisted view of one seat.
type SlotRecord struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	IsActive   bool   `json:"isActive"`
	Rating     int    `json:"rating"`
}

// RoomRecord is the JSON document stored under room:<id>.
type RoomRecord struct {
	ID         string     `json:"id"`
	Players    []string   `json:"players"`
	White      SlotRecord `json:"white"`
	Black      SlotRecord `json:"black"`
	Position   string     `json:"position"`
	InProgress bool       `json:"inProgress"`
	IsPrivate  bool       `json:"isPrivate"`
	Phase      string     `json:"phase"`
	GameNo     int        `json:"gameNo"`
	CreatedAt  int64      `json:"createdAt"`
	ExpiresAt  int64      `json:"expiresAt"`
	Seq        uint64     `json:"seq"`
}

// RoomStore persists room records and the room action log in Redis.
type RoomStore struct {
	rdb       *redis.Client
	queueName string
}

// Connect opens a client for addr/db and pings it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// NewRoomStore wraps rdb. An empty queueName falls back to DefaultQueueName.
func NewRoomStore(rdb *redis.Client, queueName string) *RoomStore {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	return &RoomStore{rdb: rdb, queueName: queueName}
}

func roomKey(id string) string {
	return "room:" + id
}

// SaveRoom writes rec with the given TTL unless the stored record has seq >= rec.Seq.
func (s *RoomStore) SaveRoom(ctx context.Context, rec RoomRecord, ttl time.Duration) error {
	key := roomKey(rec.ID)
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal room %s: %w", rec.ID, err)
	}

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			var stored RoomRecord
			if jerr := json.Unmarshal(cur, &stored); jerr == nil && stored.Seq >= rec.Seq {
				return ErrStaleRecord
			}
		}
		pipe := tx.TxPipeline()
		pipe.Set(ctx, key, raw, ttl)
		_, err = pipe.Exec(ctx)
		return err
	}, key)
	if err != nil {
		if errors.Is(err, ErrStaleRecord) {
			return err
		}
		return fmt.Errorf("failed to save room %s: %w", rec.ID, err)
	}
	return nil
}

// LoadRoom reads the record for id. The bool is false when the key does not exist.
func (s *RoomStore) LoadRoom(ctx context.Context, id string) (RoomRecord, bool, error) {
	raw, err := s.rdb.Get(ctx, roomKey(id)).Bytes()
	if err == redis.Nil {
		return RoomRecord{}, false, nil
	}
	if err != nil {
		return RoomRecord{}, false, fmt.Errorf("failed to load room %s: %w", id, err)
	}
	var rec RoomRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return RoomRecord{}, false, fmt.Errorf("failed to decode room %s: %w", id, err)
	}
	return rec, true, nil
}

// DeleteRoom removes the record for id. Deleting a missing record is not an error.
func (s *RoomStore) DeleteRoom(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, roomKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete room %s: %w", id, err)
	}
	return nil
}

// PublishRoomAction serializes the given record to JSON, then pushes it to the Redis queue.
func (s *RoomStore) PublishRoomAction(ctx context.Context, action models.RoomAction) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal RoomAction: %w", err)
	}
	if err := s.rdb.RPush(ctx, s.queueName, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", s.queueName, err)
	}
	return nil
}
