package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jason-s-yu/chessmatch/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RoomStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRoomStore(rdb, ""), mr
}

func TestSaveRoomRejectsLowerSeq(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rec := RoomRecord{ID: "r1", Position: "1. e4", Seq: 2, InProgress: true}
	require.NoError(t, s.SaveRoom(ctx, rec, time.Hour))

	older := rec
	older.Seq = 1
	older.Position = ""
	assert.ErrorIs(t, s.SaveRoom(ctx, older, time.Hour), ErrStaleRecord)

	same := rec
	assert.ErrorIs(t, s.SaveRoom(ctx, same, time.Hour), ErrStaleRecord)

	got, ok, err := s.LoadRoom(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1. e4", got.Position)

	newer := rec
	newer.Seq = 3
	newer.Position = "1. e4 e5"
	require.NoError(t, s.SaveRoom(ctx, newer, time.Hour))
	got, _, _ = s.LoadRoom(ctx, "r1")
	assert.Equal(t, uint64(3), got.Seq)
}

func TestSaveRoomSetsTTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRoom(ctx, RoomRecord{ID: "r1", Seq: 1}, time.Hour))
	assert.Equal(t, time.Hour, mr.TTL("room:r1"))

	mr.FastForward(2 * time.Hour)
	_, ok, err := s.LoadRoom(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteRoom(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRoom(ctx, RoomRecord{ID: "r1", Seq: 1}, time.Hour))
	require.NoError(t, s.DeleteRoom(ctx, "r1"))
	assert.False(t, mr.Exists("room:r1"))
	require.NoError(t, s.DeleteRoom(ctx, "r1"))
}

func TestPublishRoomAction(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	action := models.RoomAction{RoomID: "r1", GameNo: 1, ActionIndex: 0, ActorID: "u1", ActionType: "move", Timestamp: 1}
	require.NoError(t, s.PublishRoomAction(ctx, action))

	items, err := mr.List(DefaultQueueName)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var got models.RoomAction
	require.NoError(t, json.Unmarshal([]byte(items[0]), &got))
	assert.Equal(t, action, got)
}
