package game

import (
	"github.com/jason-s-yu/chessmatch/internal/models"
	"github.com/sirupsen/logrus"
)

// startGrace arms the grace timer for p. Any earlier timer is invalidated.
func (m *Manager) startGrace(r *Room, p *Participant) {
	m.cancelGrace(r)
	token := r.graceToken
	roomID := r.ID
	r.graceFor = p.Color
	r.graceTimer = m.clock.AfterFunc(m.cfg.GracePeriod, func() {
		m.graceExpired(roomID, token)
	})
}

// cancelGrace invalidates the pending timer. A callback already waiting on the
// lock sees a stale token and does nothing.
func (m *Manager) cancelGrace(r *Room) {
	r.graceToken++
	if r.graceTimer != nil {
		r.graceTimer.Stop()
		r.graceTimer = nil
	}
}

// graceExpired scores the game as a loss for the participant that did not come back.
func (m *Manager) graceExpired(roomID string, token uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok || r.graceToken != token || r.Phase != PhaseInProgress {
		return
	}
	r.graceTimer = nil
	gone := r.Seat(r.graceFor)
	if gone.Active {
		return
	}
	stayed := r.Opponent(gone)
	m.metrics.GraceExpired()

	if !stayed.Active {
		m.metrics.GameResolved("void")
		m.closeRoom(r, PhaseVoided)
		return
	}

	whiteResult := models.ResultLoss
	if gone.Color == models.Black {
		whiteResult = models.ResultWin
	}
	m.resolve(r, whiteResult, "timeout")
	m.logAction(r, gone.PlayerID, "timeout", nil)
	m.send(stayed.ConnID, EventPlayerLeave, PlayerLeave{RoomID: r.ID, VoidRoom: false})

	m.log.WithFields(logrus.Fields{
		"room_id":   r.ID,
		"player_id": gone.PlayerID,
	}).Info("grace period expired")
	m.closeRoom(r, PhaseClosed)
}
