// Package historian drains the room action queue from Redis into Postgres in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jason-s-yu/chessmatch/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Sink persists one batch of actions. It must tolerate redelivery of actions
// it has already stored.
type Sink func(ctx context.Context, actions []models.RoomAction) error

// popTimeout is the smallest blocking timeout Redis accepts for BLPOP.
const popTimeout = time.Second

// Service pops room actions and flushes them once the batch is full or the
// flush delay has passed. A failed flush keeps the batch for the next attempt.
type Service struct {
	rdb        *redis.Client
	queueName  string
	batchSize  int
	flushDelay time.Duration
	sink       Sink
	log        logrus.FieldLogger

	batch     []models.RoomAction
	lastFlush time.Time
}

func New(rdb *redis.Client, queueName string, batchSize int, flushDelay time.Duration, sink Sink, log logrus.FieldLogger) *Service {
	if batchSize <= 0 {
		batchSize = 20
	}
	if flushDelay <= 0 {
		flushDelay = 500 * time.Millisecond
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		rdb:        rdb,
		queueName:  queueName,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		sink:       sink,
		log:        log.WithField("queue", queueName),
		batch:      make([]models.RoomAction, 0, batchSize),
	}
}

// Run blocks until ctx is done, then flushes what is left and returns.
func (s *Service) Run(ctx context.Context) error {
	s.lastFlush = time.Now()
	s.log.Info("historian started")
	for {
		if ctx.Err() != nil {
			s.flush(context.Background())
			s.log.Info("historian stopped")
			return nil
		}

		res, err := s.rdb.BLPop(ctx, popTimeout, s.queueName).Result()
		switch {
		case err == nil && len(res) == 2:
			// res[0] is the queue name and res[1] the payload.
			var action models.RoomAction
			if err := json.Unmarshal([]byte(res[1]), &action); err != nil {
				s.log.WithError(err).Warn("invalid room action")
			} else {
				s.batch = append(s.batch, action)
			}
		case err == nil, errors.Is(err, redis.Nil):
		case ctx.Err() != nil:
			continue
		default:
			s.log.WithError(err).Error("BLPop failed")
			select {
			case <-ctx.Done():
			case <-time.After(popTimeout):
			}
		}

		if len(s.batch) >= s.batchSize || time.Since(s.lastFlush) >= s.flushDelay {
			s.flush(ctx)
		}
	}
}

func (s *Service) flush(ctx context.Context) {
	s.lastFlush = time.Now()
	if len(s.batch) == 0 {
		return
	}
	if err := s.sink(ctx, s.batch); err != nil {
		s.log.WithError(err).WithField("pending", len(s.batch)).Error("flush failed, keeping batch")
		return
	}
	s.log.Debugf("flushed %d actions", len(s.batch))
	s.batch = s.batch[:0]
}
