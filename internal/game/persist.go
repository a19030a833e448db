package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/chessmatch/internal/cache"
	"github.com/jason-s-yu/chessmatch/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	writeAttempts = 3
	writeTimeout  = 5 * time.Second
)

type writeJob struct {
	op    string
	seq   uint64
	phase Phase
	// last marks the final job of a room; the writer exits after running it.
	last bool
	run  func(ctx context.Context) error
}

// roomWriter runs the store jobs of one room in submission order.
type roomWriter struct {
	mu   sync.Mutex
	jobs []writeJob
	wake chan struct{}
}

func (w *roomWriter) push(j writeJob) {
	w.mu.Lock()
	w.jobs = append(w.jobs, j)
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *roomWriter) drain() []writeJob {
	w.mu.Lock()
	defer w.mu.Unlock()
	jobs := w.jobs
	w.jobs = nil
	return jobs
}

func (m *Manager) startWriter(roomID string) {
	w := &roomWriter{wake: make(chan struct{}, 1)}
	m.writers[roomID] = w
	m.wg.Add(1)
	go m.runWriter(roomID, w)
}

func (m *Manager) runWriter(roomID string, w *roomWriter) {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			// flush what is already queued before exiting
			for _, j := range w.drain() {
				m.writeDone(roomID, j, m.runJob(j))
			}
			return
		case <-w.wake:
		}
		for _, j := range w.drain() {
			m.writeDone(roomID, j, m.runJob(j))
			if j.last {
				return
			}
		}
	}
}

// runJob retries a failed write with linear backoff. A stale record is not a failure.
func (m *Manager) runJob(j writeJob) error {
	var err error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err = j.run(ctx)
		cancel()
		if err == nil || errors.Is(err, cache.ErrStaleRecord) {
			return nil
		}
		if attempt < writeAttempts {
			time.Sleep(time.Duration(attempt) * m.retryBackoff)
		}
	}
	return err
}

// writeDone is the follow-up event of a store job. Results tagged with an older
// sequence or phase than the room's current one are discarded.
func (m *Manager) writeDone(roomID string, j writeJob, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.log.WithFields(logrus.Fields{"room_id": roomID, "op": j.op, "seq": j.seq})
	if err != nil {
		m.metrics.StoreFailed(j.op)
		entry.WithError(err).Error("store write failed, keeping in-memory state")
		return
	}
	r, ok := m.rooms[roomID]
	if !ok || r.Seq != j.seq || r.Phase != j.phase {
		entry.Debug("discarding stale store result")
		return
	}
	if j.op == "save_room" && j.seq > r.persistedSeq {
		r.persistedSeq = j.seq
	}
}

// enqueue hands a store job to the room's writer, tagged with the room's current
// sequence and phase.
func (m *Manager) enqueue(r *Room, op string, last bool, run func(ctx context.Context) error) {
	w, ok := m.writers[r.ID]
	if !ok {
		return
	}
	if last {
		delete(m.writers, r.ID)
	}
	w.push(writeJob{op: op, seq: r.Seq, phase: r.Phase, last: last, run: run})
}

// bump advances the room sequence and persists the new record.
func (m *Manager) bump(r *Room) {
	r.Seq++
	rec := r.record()
	ttl := r.ExpiresAt.Sub(m.clock.Now())
	if ttl <= 0 {
		ttl = time.Second
	}
	m.enqueue(r, "save_room", false, func(ctx context.Context) error {
		return m.store.SaveRoom(ctx, rec, ttl)
	})
}

type nopStore struct{}

func (nopStore) SaveRoom(context.Context, cache.RoomRecord, time.Duration) error { return nil }
func (nopStore) DeleteRoom(context.Context, string) error                        { return nil }
func (nopStore) PublishRoomAction(context.Context, models.RoomAction) error      { return nil }
