package game

import (
	"context"
	"time"

	"github.com/jason-s-yu/chessmatch/internal/session"
	"github.com/sirupsen/logrus"
)

const ratingLookupTimeout = 3 * time.Second

// Connect registers a live connection. A registered identity holding an inactive
// seat is re-attached to it and receives the resume payload; the return value
// reports whether that happened.
func (m *Manager) Connect(ctx context.Context, s session.Session) bool {
	r := m.cfg.DefaultRating
	if !s.IsGuest {
		lookupCtx, cancel := context.WithTimeout(ctx, ratingLookupTimeout)
		v, err := m.ratings.GetRating(lookupCtx, s.PlayerID)
		cancel()
		if err != nil {
			m.log.WithError(err).WithField("player_id", s.PlayerID).Warn("rating lookup failed, using default")
		} else {
			r = v
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[s.ConnID] = &member{sess: s, rating: r}
	if s.IsGuest {
		return false
	}
	return m.reattach(s)
}

func (m *Manager) reattach(s session.Session) bool {
	roomID, ok := m.byPlayer[s.PlayerID]
	if !ok {
		return false
	}
	r, ok := m.rooms[roomID]
	if !ok || r.Phase != PhaseInProgress {
		return false
	}
	p := r.ParticipantByPlayer(s.PlayerID)
	if p == nil || p.Active {
		return false
	}

	m.cancelGrace(r)
	p.Active = true
	p.ConnID = s.ConnID
	p.DisconnectedAt = time.Time{}
	m.byConn[s.ConnID] = r.ID

	o := r.Opponent(p)
	m.send(s.ConnID, EventReconnect, Resume{
		RoomID:   r.ID,
		Position: r.Position,
		Color:    p.Color,
		Opponent: o.View(),
	})
	m.sendOpponent(r, p, EventPlayerReconnect, RoomRef{RoomID: r.ID})
	m.bump(r)
	m.logAction(r, p.PlayerID, "reconnect", nil)
	m.metrics.Reconnected()

	m.log.WithFields(logrus.Fields{
		"room_id":   r.ID,
		"player_id": p.PlayerID,
		"conn_id":   s.ConnID,
	}).Info("participant reconnected")
	return true
}
