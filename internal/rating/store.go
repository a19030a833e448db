package rating

import (
	"context"
	"fmt"
	"sync"

	"github.com/jason-s-yu/chessmatch/internal/models"
)

// Store is the rating collaborator the room manager drives on game termination.
type Store interface {
	GetRating(ctx context.Context, playerID string) (int, error)
	ApplyOutcome(ctx context.Context, o Outcome) error
}

type appliedKey struct {
	roomID   string
	gameNo   int
	playerID string
}

// MemoryStore keeps rating records in memory. Used when no database is configured and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*models.RatingRecord
	applied map[appliedKey]bool
	initial int
}

// NewMemoryStore returns an empty store whose unknown players start at initial.
func NewMemoryStore(initial int) *MemoryStore {
	if initial <= 0 {
		initial = DefaultRating
	}
	return &MemoryStore{
		records: make(map[string]*models.RatingRecord),
		applied: make(map[appliedKey]bool),
		initial: initial,
	}
}

// Seed sets a player's record, replacing any existing one.
func (s *MemoryStore) Seed(rec models.RatingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := rec
	s.records[rec.PlayerID] = &r
}

// GetRating returns the player's current rating.
func (s *MemoryStore) GetRating(_ context.Context, playerID string) (int, error) {
	if playerID == "" {
		return 0, fmt.Errorf("empty player id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[playerID]; ok {
		return rec.Rating, nil
	}
	return s.initial, nil
}

// ApplyOutcome applies o once per (room, game, player); repeats are ignored.
func (s *MemoryStore) ApplyOutcome(_ context.Context, o Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := appliedKey{o.RoomID, o.GameNo, o.PlayerID}
	if s.applied[key] {
		return nil
	}
	rec, ok := s.records[o.PlayerID]
	if !ok {
		rec = &models.RatingRecord{PlayerID: o.PlayerID, Rating: s.initial}
		s.records[o.PlayerID] = rec
	}
	Apply(rec, o)
	s.applied[key] = true
	return nil
}

// Record returns a copy of the player's record.
func (s *MemoryStore) Record(playerID string) (models.RatingRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[playerID]
	if !ok {
		return models.RatingRecord{}, false
	}
	return *rec, true
}
