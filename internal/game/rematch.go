package game

import (
	"github.com/sirupsen/logrus"
)

// OfferRematch records the participant's offer. When the other side has already
// offered, a fresh game starts in the same room with the colors as swapped at game end.
func (m *Manager) OfferRematch(connID, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, p, err := m.rematchSeat(connID, roomID)
	if err != nil {
		return err
	}
	offer := r.Rematch
	if offer.Declined || offer.OfferedBy == p.Color {
		return nil
	}
	if offer.OfferedBy == "" {
		offer.OfferedBy = p.Color
		view := p.View()
		view.Rematch = true
		m.sendOpponent(r, p, EventRematch, Rematch{RoomID: r.ID, Opponent: view})
		m.logAction(r, p.PlayerID, "rematch_offer", nil)
		m.bump(r)
		return nil
	}

	offer.Accepted = true
	m.logAction(r, p.PlayerID, "rematch_accept", nil)
	m.startRematch(r)
	return nil
}

// DeclineRematch ends negotiation for good. Both sides see the decline.
func (m *Manager) DeclineRematch(connID, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, p, err := m.rematchSeat(connID, roomID)
	if err != nil {
		return err
	}
	r.Rematch.Declined = true
	r.Phase = PhaseEnded

	view := p.View()
	view.Decline = true
	notice := Rematch{RoomID: r.ID, Opponent: view}
	for _, q := range r.participants() {
		if q.Active {
			m.send(q.ConnID, EventRematch, notice)
		}
	}
	m.logAction(r, p.PlayerID, "rematch_decline", nil)
	m.bump(r)
	return nil
}

func (m *Manager) rematchSeat(connID, roomID string) (*Room, *Participant, error) {
	r, ok := m.rooms[roomID]
	if !ok || r.Phase != PhaseRematchPending || r.Rematch == nil {
		return nil, nil, ErrRoomGone
	}
	p := r.ParticipantByConn(connID)
	if p == nil {
		return nil, nil, ErrNotParticipant
	}
	return r, p, nil
}

func (m *Manager) startRematch(r *Room) {
	r.GameNo++
	r.Position = ""
	r.Rematch = nil
	r.Phase = PhaseInProgress
	r.actionIndex = 0
	m.matchGuestRatings(r)
	m.bump(r)
	m.logAction(r, "", "rematch_start", map[string]interface{}{
		"white": r.White.PlayerID,
		"black": r.Black.PlayerID,
	})
	m.sendGameStart(r)

	m.log.WithFields(logrus.Fields{
		"room_id": r.ID,
		"game_no": r.GameNo,
		"white":   r.White.PlayerID,
	}).Info("rematch started")
}
