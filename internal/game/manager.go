package game

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/chessmatch/internal/cache"
	"github.com/jason-s-yu/chessmatch/internal/lobby"
	"github.com/jason-s-yu/chessmatch/internal/metrics"
	"github.com/jason-s-yu/chessmatch/internal/models"
	"github.com/jason-s-yu/chessmatch/internal/rating"
	"github.com/jason-s-yu/chessmatch/internal/session"
	"github.com/sirupsen/logrus"
)

// Notifier delivers events to a single connection without blocking.
type Notifier interface {
	Send(connID string, ev session.Event)
}

// RoomStore persists room records and the room action log.
type RoomStore interface {
	SaveRoom(ctx context.Context, rec cache.RoomRecord, ttl time.Duration) error
	DeleteRoom(ctx context.Context, id string) error
	PublishRoomAction(ctx context.Context, action models.RoomAction) error
}

// Config holds the tunables of the room manager.
type Config struct {
	GracePeriod   time.Duration
	RoomTTL       time.Duration
	K             int
	DefaultRating int
}

func (c Config) withDefaults() Config {
	if c.GracePeriod <= 0 {
		c.GracePeriod = 60 * time.Second
	}
	if c.RoomTTL <= 0 {
		c.RoomTTL = time.Hour
	}
	if c.K <= 0 {
		c.K = rating.DefaultK
	}
	if c.DefaultRating <= 0 {
		c.DefaultRating = rating.DefaultRating
	}
	return c
}

type member struct {
	sess   session.Session
	rating int
}

// Manager owns the matchmaking queue, the private room registry and every room.
// All state is guarded by one mutex, so each event is handled to completion
// before the next one starts. Store I/O runs on per-room writer goroutines.
type Manager struct {
	mu sync.Mutex

	cfg     Config
	log     logrus.FieldLogger
	notify  Notifier
	ratings rating.Store
	store   RoomStore
	metrics *metrics.Metrics

	clock clock
	coin  func() bool
	// retryBackoff is multiplied by the attempt number between store retries.
	retryBackoff time.Duration

	queue    *lobby.Queue
	private  *lobby.PrivateRooms
	conns    map[string]*member
	rooms    map[string]*Room
	byPlayer map[string]string
	byConn   map[string]string
	writers  map[string]*roomWriter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager builds a manager. A nil store disables room persistence and a nil
// rating store falls back to an in-memory one.
func NewManager(cfg Config, notify Notifier, ratings rating.Store, store RoomStore, mx *metrics.Metrics, log logrus.FieldLogger) *Manager {
	cfg = cfg.withDefaults()
	if ratings == nil {
		ratings = rating.NewMemoryStore(cfg.DefaultRating)
	}
	if store == nil {
		store = nopStore{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:          cfg,
		log:          log,
		notify:       notify,
		ratings:      ratings,
		store:        store,
		metrics:      mx,
		clock:        realClock{},
		coin:         coinFlip,
		retryBackoff: 100 * time.Millisecond,
		queue:        lobby.NewQueue(),
		private:      lobby.NewPrivateRooms(),
		conns:        make(map[string]*member),
		rooms:        make(map[string]*Room),
		byPlayer:     make(map[string]string),
		byConn:       make(map[string]string),
		writers:      make(map[string]*roomWriter),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Close stops every timer and waits for the room writers to flush.
func (m *Manager) Close() {
	m.mu.Lock()
	for _, r := range m.rooms {
		m.cancelGrace(r)
		if r.ttlTimer != nil {
			r.ttlTimer.Stop()
		}
	}
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

// coinFlip returns an unbiased random bit.
func coinFlip() bool {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return time.Now().UnixNano()&1 == 0
	}
	return b[0]&1 == 0
}

// FindGame puts the connection in the public queue when want is true and takes
// it out otherwise.
func (m *Manager) FindGame(connID string, want bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mb, ok := m.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if !want {
		if m.queue.Dequeue(connID) {
			m.tryPair()
		}
		m.metrics.SetQueueLength(m.queue.Len())
		return nil
	}
	if m.seated(mb.sess) {
		return ErrAlreadyInRoom
	}
	if m.queue.Enqueue(entryOf(mb.sess)) {
		m.tryPair()
	}
	m.metrics.SetQueueLength(m.queue.Len())
	return nil
}

// HostRoom opens (signal true) or withdraws (signal false) a private room code.
func (m *Manager) HostRoom(connID, code string, signal bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mb, ok := m.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if code == "" {
		return ErrInvalidMessage
	}
	if !signal {
		if h, ok := m.private.Lookup(code); ok && h.ConnID == connID {
			m.private.Unhost(code)
		}
		return nil
	}
	if m.seated(mb.sess) {
		return ErrAlreadyInRoom
	}
	return m.private.Host(code, entryOf(mb.sess))
}

// JoinHost pairs the connection with the host waiting under code.
func (m *Manager) JoinHost(connID, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mb, ok := m.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if m.seated(mb.sess) {
		return ErrAlreadyInRoom
	}
	host, err := m.private.Claim(code, entryOf(mb.sess))
	if err != nil {
		return err
	}
	hm, live := m.conns[host.ConnID]
	if !live || m.seated(hm.sess) {
		return lobby.ErrRoomNotFound
	}
	m.createRoom(host, entryOf(mb.sess), true)
	return nil
}

// QueueLen is the number of connections waiting for a public game.
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

// Room returns a copy of the room with the given id.
func (m *Manager) Room(id string) (Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return Room{}, false
	}
	return r.clone(), true
}

// RoomByPlayer returns a copy of the room a durable identity is seated in.
func (m *Manager) RoomByPlayer(playerID string) (Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byPlayer[playerID]
	if !ok {
		return Room{}, false
	}
	r, ok := m.rooms[id]
	if !ok {
		return Room{}, false
	}
	return r.clone(), true
}

func entryOf(s session.Session) lobby.Entry {
	return lobby.Entry{
		ConnID:     s.ConnID,
		PlayerID:   s.PlayerID,
		PlayerName: s.PlayerName,
		IsGuest:    s.IsGuest,
	}
}

// seated reports whether the connection, or its durable identity, already holds a seat.
func (m *Manager) seated(s session.Session) bool {
	if _, ok := m.byConn[s.ConnID]; ok {
		return true
	}
	if s.IsGuest {
		return false
	}
	_, ok := m.byPlayer[s.PlayerID]
	return ok
}

// tryPair makes one pairing attempt. Called after every queue mutation.
func (m *Manager) tryPair() {
	a, b, ok := m.queue.NextPair()
	if !ok {
		return
	}
	m.createRoom(a, b, false)
}

func (m *Manager) participantFor(e lobby.Entry, c models.Color) *Participant {
	r := m.cfg.DefaultRating
	if mb, ok := m.conns[e.ConnID]; ok {
		r = mb.rating
	}
	return &Participant{
		PlayerID:   e.PlayerID,
		PlayerName: e.PlayerName,
		IsGuest:    e.IsGuest,
		Color:      c,
		Active:     true,
		Rating:     r,
		ConnID:     e.ConnID,
	}
}

// matchGuestRatings records a guest with its registered opponent's rating,
// and two guests with the default rating.
func (m *Manager) matchGuestRatings(r *Room) {
	switch {
	case r.White.IsGuest && r.Black.IsGuest:
		r.White.Rating = m.cfg.DefaultRating
		r.Black.Rating = m.cfg.DefaultRating
	case r.White.IsGuest:
		r.White.Rating = r.Black.Rating
	case r.Black.IsGuest:
		r.Black.Rating = r.White.Rating
	}
}

func (m *Manager) createRoom(a, b lobby.Entry, private bool) *Room {
	white, black := a, b
	if !m.coin() {
		white, black = b, a
	}
	now := m.clock.Now()
	r := &Room{
		ID:        uuid.NewString(),
		White:     m.participantFor(white, models.White),
		Black:     m.participantFor(black, models.Black),
		Phase:     PhaseInProgress,
		IsPrivate: private,
		CreatedAt: now,
		ExpiresAt: now.Add(m.cfg.RoomTTL),
		GameNo:    1,
	}
	m.matchGuestRatings(r)

	m.rooms[r.ID] = r
	for _, p := range r.participants() {
		m.byConn[p.ConnID] = r.ID
		m.queue.Dequeue(p.ConnID)
		m.private.UnhostConn(p.ConnID)
		if !p.IsGuest {
			m.byPlayer[p.PlayerID] = r.ID
			m.queue.RemovePlayer(p.PlayerID)
			m.private.RemovePlayer(p.PlayerID)
		}
	}
	roomID := r.ID
	r.ttlTimer = m.clock.AfterFunc(m.cfg.RoomTTL, func() { m.expireRoom(roomID, r) })

	m.startWriter(r.ID)
	m.bump(r)
	m.logAction(r, "", "room_created", map[string]interface{}{
		"white":     r.White.PlayerID,
		"black":     r.Black.PlayerID,
		"isPrivate": private,
	})
	m.sendGameStart(r)

	m.log.WithFields(logrus.Fields{
		"room_id": r.ID,
		"white":   r.White.PlayerID,
		"black":   r.Black.PlayerID,
		"private": private,
	}).Info("room created")
	m.metrics.SetActiveRooms(len(m.rooms))
	m.metrics.SetQueueLength(m.queue.Len())
	return r
}

func (m *Manager) sendGameStart(r *Room) {
	for _, p := range r.participants() {
		if !p.Active {
			continue
		}
		m.send(p.ConnID, EventGameStart, GameStart{
			Color:    p.Color,
			RoomID:   r.ID,
			Opponent: r.Opponent(p).View(),
		})
	}
}

func (m *Manager) send(connID, event string, data interface{}) {
	if m.notify == nil || connID == "" {
		return
	}
	m.notify.Send(connID, session.Event{Event: event, Data: data})
}

// sendOpponent notifies the opponent of p if it is connected.
func (m *Manager) sendOpponent(r *Room, p *Participant, event string, data interface{}) {
	o := r.Opponent(p)
	if o.Active {
		m.send(o.ConnID, event, data)
	}
}

// SubmitMove records a move from the side to move and relays it to the opponent.
// Moves for rooms that are not in progress, or from the wrong side, are dropped.
func (m *Manager) SubmitMove(connID string, mv Move) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[mv.RoomID]
	if !ok || r.Phase != PhaseInProgress {
		return ErrRoomGone
	}
	p := r.ParticipantByConn(connID)
	if p == nil {
		return ErrNotParticipant
	}
	if sideToMove(r.Position) != p.Color {
		return ErrNotYourTurn
	}

	r.Position = mv.Position
	m.bump(r)
	m.logAction(r, p.PlayerID, "move", map[string]interface{}{
		"move":     mv.Move,
		"position": mv.Position,
	})
	m.sendOpponent(r, p, EventMove, mv)
	return nil
}

// SubmitGameEnd finishes the current game, rates it, swaps colors and opens
// rematch negotiation.
func (m *Manager) SubmitGameEnd(connID string, ge GameEnd) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[ge.RoomID]
	if !ok || r.Phase != PhaseInProgress {
		return ErrRoomGone
	}
	p := r.ParticipantByConn(connID)
	if p == nil {
		return ErrNotParticipant
	}

	var whiteResult models.Result
	switch ge.ReasonCode {
	case ReasonCheckmate:
		if !ge.WinnerColor.Valid() {
			return ErrInvalidMessage
		}
		whiteResult = models.ResultLoss
		if ge.WinnerColor == models.White {
			whiteResult = models.ResultWin
		}
	case ReasonStalemate, ReasonDraw:
		whiteResult = models.ResultDraw
	default:
		return ErrInvalidMessage
	}

	r.Position = ge.Position
	m.sendOpponent(r, p, EventGameEnd, ge)
	m.logAction(r, p.PlayerID, "game_end", map[string]interface{}{
		"move":        ge.Move,
		"position":    ge.Position,
		"winnerColor": ge.WinnerColor,
		"reasonCode":  ge.ReasonCode,
	})

	r.Phase = PhaseEnded
	m.resolve(r, whiteResult, ge.ReasonCode)

	r.swapColors()
	r.Position = ""
	r.Rematch = &RematchOffer{}
	r.Phase = PhaseRematchPending
	m.bump(r)

	m.log.WithFields(logrus.Fields{
		"room_id": r.ID,
		"reason":  ge.ReasonCode,
		"winner":  ge.WinnerColor,
	}).Info("game ended")
	return nil
}

// Leave removes the room. Rating applies only to a public game in progress that
// is not voided: the leaver loses against an active opponent and wins against
// an inactive one.
func (m *Manager) Leave(connID, roomID string, void bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok || r.Closed() {
		return ErrRoomGone
	}
	p := r.ParticipantByConn(connID)
	if p == nil {
		return ErrNotParticipant
	}
	o := r.Opponent(p)
	inProgress := r.Phase == PhaseInProgress
	voided := void || r.IsPrivate || !inProgress

	if !voided {
		leaverResult := models.ResultLoss
		if !o.Active {
			leaverResult = models.ResultWin
			if elapsed := m.clock.Now().Sub(o.DisconnectedAt); elapsed < m.cfg.GracePeriod {
				m.metrics.EarlyLeaveWin()
				m.log.WithFields(logrus.Fields{
					"room_id":   r.ID,
					"player_id": p.PlayerID,
					"elapsed":   elapsed,
				}).Warn("leave with win before the opponent's grace period ran out")
			}
		}
		whiteResult := leaverResult
		if p.Color == models.Black {
			whiteResult = opposite(leaverResult)
		}
		m.resolve(r, whiteResult, "leave")
	}
	if inProgress && voided {
		m.metrics.GameResolved("void")
	}

	m.logAction(r, p.PlayerID, "leave", map[string]interface{}{"voidRoom": voided})
	m.sendOpponent(r, p, EventPlayerLeave, PlayerLeave{RoomID: r.ID, VoidRoom: inProgress && voided})

	phase := PhaseClosed
	if inProgress && voided {
		phase = PhaseVoided
	}
	m.closeRoom(r, phase)
	return nil
}

func opposite(res models.Result) models.Result {
	switch res {
	case models.ResultWin:
		return models.ResultLoss
	case models.ResultLoss:
		return models.ResultWin
	}
	return res
}

// resolve rates the current game once. Private rooms are never rated.
func (m *Manager) resolve(r *Room, whiteResult models.Result, outcome string) {
	m.metrics.GameResolved(outcome)
	if r.IsPrivate || r.ratedGame == r.GameNo {
		return
	}
	r.ratedGame = r.GameNo

	white := rating.Side{PlayerID: r.White.PlayerID, Rating: r.White.Rating, IsGuest: r.White.IsGuest}
	black := rating.Side{PlayerID: r.Black.PlayerID, Rating: r.Black.Rating, IsGuest: r.Black.IsGuest}
	for _, o := range rating.Outcomes(r.ID, r.GameNo, white, black, whiteResult, m.cfg.K) {
		o := o
		newRating := o.NewRating()
		if p := r.ParticipantByPlayer(o.PlayerID); p != nil {
			p.Rating = newRating
			if mb, ok := m.conns[p.ConnID]; ok {
				mb.rating = newRating
			}
		}
		m.enqueue(r, "apply_rating", false, func(ctx context.Context) error {
			return m.ratings.ApplyOutcome(ctx, o)
		})
		m.log.WithFields(logrus.Fields{
			"room_id":    r.ID,
			"player_id":  o.PlayerID,
			"result":     o.Result,
			"old_rating": o.Rating,
			"new_rating": newRating,
		}).Info("rating updated")
	}
}

// Disconnect handles a closed connection.
func (m *Manager) Disconnect(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.conns, connID)
	if m.queue.Dequeue(connID) {
		m.tryPair()
	}
	m.metrics.SetQueueLength(m.queue.Len())
	m.private.UnhostConn(connID)

	roomID, ok := m.byConn[connID]
	if !ok {
		return
	}
	delete(m.byConn, connID)
	r, ok := m.rooms[roomID]
	if !ok {
		return
	}
	p := r.ParticipantByConn(connID)
	if p == nil {
		return
	}
	o := r.Opponent(p)
	entry := m.log.WithFields(logrus.Fields{"room_id": r.ID, "player_id": p.PlayerID, "conn_id": connID})

	if r.Phase == PhaseInProgress && !p.IsGuest {
		if other, ok := m.liveConnOf(p.PlayerID); ok {
			p.Active = false
			p.ConnID = ""
			p.DisconnectedAt = m.clock.Now()
			m.reattach(other.sess)
			entry.WithField("to_conn_id", other.sess.ConnID).Info("seat handed to another connection")
			return
		}
	}

	switch {
	case r.Phase == PhaseInProgress && !r.IsPrivate && !p.IsGuest && o.Active:
		p.Active = false
		p.ConnID = ""
		p.DisconnectedAt = m.clock.Now()
		m.startGrace(r, p)
		m.bump(r)
		m.logAction(r, p.PlayerID, "disconnect", nil)
		m.send(o.ConnID, EventPlayerDisconnect, PlayerDisconnect{
			RoomID:       r.ID,
			GraceSeconds: int(m.cfg.GracePeriod / time.Second),
		})
		entry.Info("participant disconnected, grace period started")

	case r.Phase == PhaseInProgress && !r.IsPrivate:
		// a guest cannot come back, and two absent participants leave nobody to score
		p.Active = false
		p.ConnID = ""
		m.metrics.GameResolved("void")
		m.logAction(r, p.PlayerID, "disconnect", map[string]interface{}{"voidRoom": true})
		m.sendOpponent(r, p, EventPlayerLeave, PlayerLeave{RoomID: r.ID, VoidRoom: true})
		m.closeRoom(r, PhaseVoided)
		entry.Info("room voided on disconnect")

	default:
		inProgress := r.Phase == PhaseInProgress
		p.Active = false
		p.ConnID = ""
		if inProgress {
			m.metrics.GameResolved("void")
		}
		m.logAction(r, p.PlayerID, "disconnect", map[string]interface{}{"voidRoom": inProgress})
		m.sendOpponent(r, p, EventPlayerLeave, PlayerLeave{RoomID: r.ID, VoidRoom: inProgress})
		phase := PhaseClosed
		if inProgress {
			phase = PhaseVoided
		}
		m.closeRoom(r, phase)
		entry.Info("room closed on disconnect")
	}
}

// liveConnOf returns any live connection of a registered identity.
func (m *Manager) liveConnOf(playerID string) (*member, bool) {
	for _, mb := range m.conns {
		if !mb.sess.IsGuest && mb.sess.PlayerID == playerID {
			return mb, true
		}
	}
	return nil, false
}

// closeRoom tears r down and drops it from every index. It is idempotent.
func (m *Manager) closeRoom(r *Room, phase Phase) {
	if r.Closed() {
		return
	}
	m.cancelGrace(r)
	if r.ttlTimer != nil {
		r.ttlTimer.Stop()
		r.ttlTimer = nil
	}
	r.Phase = phase
	r.Seq++

	if m.rooms[r.ID] == r {
		delete(m.rooms, r.ID)
	}
	for _, p := range r.participants() {
		if p.ConnID != "" && m.byConn[p.ConnID] == r.ID {
			delete(m.byConn, p.ConnID)
		}
		if !p.IsGuest && m.byPlayer[p.PlayerID] == r.ID {
			delete(m.byPlayer, p.PlayerID)
		}
	}
	roomID := r.ID
	m.enqueue(r, "delete_room", true, func(ctx context.Context) error {
		return m.store.DeleteRoom(ctx, roomID)
	})

	m.log.WithFields(logrus.Fields{"room_id": r.ID, "phase": phase}).Info("room closed")
	m.metrics.SetActiveRooms(len(m.rooms))
}

// expireRoom reclaims a room that outlived its absolute lifetime.
func (m *Manager) expireRoom(roomID string, r *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rooms[roomID] != r || r.Closed() {
		return
	}
	inProgress := r.Phase == PhaseInProgress
	for _, p := range r.participants() {
		if p.Active {
			m.send(p.ConnID, EventPlayerLeave, PlayerLeave{RoomID: r.ID, VoidRoom: inProgress})
		}
	}
	phase := PhaseClosed
	if inProgress {
		phase = PhaseVoided
		m.metrics.GameResolved("expired")
	}
	m.logAction(r, "", "expired", nil)
	m.closeRoom(r, phase)
}

// logAction appends an entry to the room action log.
func (m *Manager) logAction(r *Room, actorID, actionType string, payload map[string]interface{}) {
	action := models.RoomAction{
		RoomID:      r.ID,
		GameNo:      r.GameNo,
		ActionIndex: r.actionIndex,
		ActorID:     actorID,
		ActionType:  actionType,
		Payload:     payload,
		Timestamp:   m.clock.Now().UnixMilli(),
	}
	r.actionIndex++
	m.enqueue(r, "publish_action", false, func(ctx context.Context) error {
		return m.store.PublishRoomAction(ctx, action)
	})
}
