package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jason-s-yu/chessmatch/internal/cache"
	"github.com/jason-s-yu/chessmatch/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisManager(t *testing.T) (*harness, *cache.RoomStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := cache.NewRoomStore(rdb, "")
	return newHarness(t, store), store, mr
}

func TestRoomRecordFollowsLatestMove(t *testing.T) {
	h, store, _ := setupRedisManager(t)
	room := h.pair(t)

	positions := []string{"1. e4", "1. e4 e5", "1. e4 e5 2. Nf3", "1. e4 e5 2. Nf3 Nc6"}
	conns := []string{"c-alice", "c-bob"}
	for i, pos := range positions {
		require.NoError(t, h.m.SubmitMove(conns[i%2], Move{RoomID: room.ID, Position: pos}))
	}

	assert.Eventually(t, func() bool {
		got, ok := h.m.Room(room.ID)
		return ok && got.persistedSeq == got.Seq
	}, time.Second, 5*time.Millisecond)

	rec, ok, err := store.LoadRoom(context.Background(), room.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, positions[len(positions)-1], rec.Position)
	assert.True(t, rec.InProgress)
	assert.Equal(t, []string{"alice", "bob"}, rec.Players)
	assert.Equal(t, "alice", rec.White.PlayerID)
	assert.True(t, rec.Black.IsActive)
}

func TestClosedRoomIsDeletedAndActionsLogged(t *testing.T) {
	h, store, mr := setupRedisManager(t)
	room := h.pair(t)
	require.NoError(t, h.m.SubmitMove("c-alice", Move{RoomID: room.ID, Position: "1. e4"}))
	require.NoError(t, h.m.Leave("c-bob", room.ID, false))

	assert.Eventually(t, func() bool {
		_, ok, err := store.LoadRoom(context.Background(), room.ID)
		return err == nil && !ok
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		items, err := mr.List(cache.DefaultQueueName)
		return err == nil && len(items) == 3
	}, time.Second, 5*time.Millisecond)
	h.eventuallyRating(t, "alice", 1016)
}

// flakyStore fails the first failures calls of every operation.
type flakyStore struct {
	mu       sync.Mutex
	failures int
	calls    map[string]int
}

func (s *flakyStore) hit(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	if s.calls[op] <= s.failures {
		return errors.New("store unavailable")
	}
	return nil
}

func (s *flakyStore) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *flakyStore) SaveRoom(context.Context, cache.RoomRecord, time.Duration) error {
	return s.hit("save")
}
func (s *flakyStore) DeleteRoom(context.Context, string) error { return s.hit("delete") }
func (s *flakyStore) PublishRoomAction(context.Context, models.RoomAction) error {
	return s.hit("publish")
}

func TestStoreFailuresAreRetriedAndNeverTouchState(t *testing.T) {
	store := &flakyStore{failures: 100, calls: map[string]int{}}
	h := newHarness(t, store)

	room := h.pair(t)
	require.NoError(t, h.m.SubmitMove("c-alice", Move{RoomID: room.ID, Position: "1. e4"}))

	// two saves (create, move), three attempts each
	assert.Eventually(t, func() bool { return store.count("save") == 2*writeAttempts }, time.Second, 5*time.Millisecond)

	got, ok := h.m.Room(room.ID)
	require.True(t, ok)
	assert.Equal(t, "1. e4", got.Position)
	assert.Equal(t, uint64(0), got.persistedSeq)
}

func TestStaleWriteResultIsDiscarded(t *testing.T) {
	// every real write fails, so only the results injected below reach the room
	h := newHarness(t, &flakyStore{failures: 100, calls: map[string]int{}})
	room := h.pair(t)

	h.m.mu.Lock()
	r := h.m.rooms[room.ID]
	current := r.Seq
	h.m.mu.Unlock()

	h.m.writeDone(room.ID, writeJob{op: "save_room", seq: current - 1, phase: PhaseInProgress}, nil)
	got, _ := h.m.Room(room.ID)
	assert.Less(t, got.persistedSeq, current)

	h.m.writeDone(room.ID, writeJob{op: "save_room", seq: current, phase: PhaseInProgress}, nil)
	got, _ = h.m.Room(room.ID)
	assert.Equal(t, current, got.persistedSeq)

	// a result for a room closed in the meantime has nowhere to land
	require.NoError(t, h.m.Leave("c-alice", room.ID, true))
	assert.NotPanics(t, func() {
		h.m.writeDone(room.ID, writeJob{op: "save_room", seq: current + 10, phase: PhaseInProgress}, nil)
	})
}
