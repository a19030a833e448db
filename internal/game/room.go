package game

import (
	"time"

	"github.com/jason-s-yu/chessmatch/internal/cache"
	"github.com/jason-s-yu/chessmatch/internal/models"
)

// Phase is the lifecycle state of a room.
type Phase string

const (
	PhaseInProgress     Phase = "IN_PROGRESS"
	PhaseRematchPending Phase = "REMATCH_PENDING"
	// PhaseEnded is terminal after a declined rematch; the room waits for a leave.
	PhaseEnded  Phase = "ENDED"
	PhaseClosed Phase = "CLOSED"
	// PhaseVoided is a closed room whose game produced no result.
	PhaseVoided Phase = "VOIDED"
)

// Participant is one seat of a room. Color and activity live here, not on the connection.
type Participant struct {
	PlayerID   string
	PlayerName string
	IsGuest    bool
	Color      models.Color
	Active     bool
	// Rating is the value recorded when the current game started.
	Rating         int
	ConnID         string
	DisconnectedAt time.Time
}

// View is the opponent-facing identity of p.
func (p *Participant) View() models.Player {
	return models.Player{ID: p.PlayerID, Name: p.PlayerName}
}

// RematchOffer tracks the rematch negotiation after a game ends.
type RematchOffer struct {
	OfferedBy models.Color
	Accepted  bool
	Declined  bool
}

// Room is the authoritative state of one pairing. It survives rematches.
type Room struct {
	ID        string
	White     *Participant
	Black     *Participant
	Position  string
	Phase     Phase
	IsPrivate bool
	CreatedAt time.Time
	ExpiresAt time.Time
	Rematch   *RematchOffer
	// Seq increases on every state change that is persisted.
	Seq    uint64
	GameNo int

	// persistedSeq is the highest Seq acknowledged by the room store.
	persistedSeq uint64
	actionIndex  int
	ratedGame    int
	graceToken   uint64
	graceFor     models.Color
	graceTimer   timer
	ttlTimer     timer
}

// Seat returns the participant playing c.
func (r *Room) Seat(c models.Color) *Participant {
	if c == models.White {
		return r.White
	}
	return r.Black
}

// ParticipantByConn returns the participant attached to connID.
func (r *Room) ParticipantByConn(connID string) *Participant {
	for _, p := range r.participants() {
		if p.ConnID != "" && p.ConnID == connID {
			return p
		}
	}
	return nil
}

// ParticipantByPlayer returns the participant with the given durable id.
func (r *Room) ParticipantByPlayer(playerID string) *Participant {
	for _, p := range r.participants() {
		if p.PlayerID == playerID {
			return p
		}
	}
	return nil
}

// Opponent returns the other participant.
func (r *Room) Opponent(p *Participant) *Participant {
	return r.Seat(p.Color.Opponent())
}

// Closed reports whether the room has been torn down.
func (r *Room) Closed() bool {
	return r.Phase == PhaseClosed || r.Phase == PhaseVoided
}

func (r *Room) participants() []*Participant {
	return []*Participant{r.White, r.Black}
}

// swapColors exchanges the identities behind WHITE and BLACK.
func (r *Room) swapColors() {
	r.White, r.Black = r.Black, r.White
	r.White.Color = models.White
	r.Black.Color = models.Black
}

// clone returns a deep copy safe to hand out of the manager.
func (r *Room) clone() Room {
	c := *r
	w, b := *r.White, *r.Black
	c.White, c.Black = &w, &b
	if r.Rematch != nil {
		ro := *r.Rematch
		c.Rematch = &ro
	}
	c.graceTimer, c.ttlTimer = nil, nil
	return c
}

func slotRecord(p *Participant) cache.SlotRecord {
	return cache.SlotRecord{
		PlayerID:   p.PlayerID,
		PlayerName: p.PlayerName,
		IsActive:   p.Active,
		Rating:     p.Rating,
	}
}

// record is the persisted form of r.
func (r *Room) record() cache.RoomRecord {
	return cache.RoomRecord{
		ID:         r.ID,
		Players:    []string{r.White.PlayerID, r.Black.PlayerID},
		White:      slotRecord(r.White),
		Black:      slotRecord(r.Black),
		Position:   r.Position,
		InProgress: r.Phase == PhaseInProgress,
		IsPrivate:  r.IsPrivate,
		Phase:      string(r.Phase),
		GameNo:     r.GameNo,
		CreatedAt:  r.CreatedAt.UnixMilli(),
		ExpiresAt:  r.ExpiresAt.UnixMilli(),
		Seq:        r.Seq,
	}
}
