package historian

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jason-s-yu/chessmatch/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu      sync.Mutex
	stored  []models.RoomAction
	batches int
	fail    bool
}

func (m *memorySink) write(_ context.Context, actions []models.RoomAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("database unavailable")
	}
	m.batches++
	m.stored = append(m.stored, actions...)
	return nil
}

func (m *memorySink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stored)
}

func (m *memorySink) setFail(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = v
}

func setup(t *testing.T, batchSize int, flush time.Duration, sink *memorySink) (*redis.Client, *Service) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return rdb, New(rdb, "chess_room_actions", batchSize, flush, sink.write, logger)
}

func push(t *testing.T, rdb *redis.Client, idx int) {
	t.Helper()
	data, err := json.Marshal(models.RoomAction{
		RoomID:      "room-1",
		GameNo:      1,
		ActionIndex: idx,
		ActorID:     "alice",
		ActionType:  "move",
		Payload:     map[string]interface{}{"position": "1. e4"},
		Timestamp:   time.Now().UnixMilli(),
	})
	require.NoError(t, err)
	require.NoError(t, rdb.RPush(context.Background(), "chess_room_actions", data).Err())
}

func start(t *testing.T, s *Service) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestFlushesFullBatch(t *testing.T) {
	sink := &memorySink{}
	rdb, s := setup(t, 2, time.Hour, sink)
	for i := 1; i <= 3; i++ {
		push(t, rdb, i)
	}

	cancel, done := start(t, s)
	assert.Eventually(t, func() bool { return sink.count() == 2 }, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("historian did not stop")
	}
	// the partial batch is flushed on shutdown
	assert.Equal(t, 3, sink.count())
	assert.Equal(t, 2, sink.batches)
	assert.Equal(t, 3, sink.stored[2].ActionIndex)
}

func TestFlushesAfterDelay(t *testing.T) {
	sink := &memorySink{}
	rdb, s := setup(t, 100, 50*time.Millisecond, sink)
	push(t, rdb, 1)

	start(t, s)
	assert.Eventually(t, func() bool { return sink.count() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestSkipsInvalidPayload(t *testing.T) {
	sink := &memorySink{}
	rdb, s := setup(t, 1, time.Hour, sink)
	require.NoError(t, rdb.RPush(context.Background(), "chess_room_actions", "not json").Err())
	push(t, rdb, 7)

	start(t, s)
	assert.Eventually(t, func() bool { return sink.count() == 1 }, 3*time.Second, 10*time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 7, sink.stored[0].ActionIndex)
}

func TestFailedFlushKeepsBatch(t *testing.T) {
	sink := &memorySink{fail: true}
	rdb, s := setup(t, 1, 20*time.Millisecond, sink)
	push(t, rdb, 1)

	start(t, s)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, sink.count())

	sink.setFail(false)
	assert.Eventually(t, func() bool { return sink.count() == 1 }, 3*time.Second, 10*time.Millisecond)
}
