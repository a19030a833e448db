// internal/session/session.go
package session

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultGuestPrefix marks player ids that belong to unauthenticated guests.
const DefaultGuestPrefix = "guest"

// Event is the envelope exchanged with clients in both directions.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Identity is what a client claims during the handshake.
type Identity struct {
	PlayerID   string
	PlayerName string
}

// Session is one live connection. It never changes after Register.
type Session struct {
	ConnID     string
	PlayerID   string
	PlayerName string
	IsGuest    bool
}

type conn struct {
	sess Session
	out  chan Event
}

// Registry tracks live connections and their outbound queues.
type Registry struct {
	mu          sync.Mutex
	conns       map[string]*conn
	guestPrefix string
	bufferSize  int
	log         logrus.FieldLogger
}

// NewRegistry creates a registry. Outbound channels hold bufferSize events before
// Send starts dropping.
func NewRegistry(guestPrefix string, bufferSize int, log logrus.FieldLogger) *Registry {
	if guestPrefix == "" {
		guestPrefix = DefaultGuestPrefix
	}
	if bufferSize <= 0 {
		bufferSize = 32
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		conns:       make(map[string]*conn),
		guestPrefix: guestPrefix,
		bufferSize:  bufferSize,
		log:         log,
	}
}

// IsGuest reports whether playerID carries the guest prefix.
func (r *Registry) IsGuest(playerID string) bool {
	return strings.HasPrefix(playerID, r.guestPrefix)
}

// Register stores a new session under connID and returns it with its outbound channel.
// The channel is closed by Unregister.
func (r *Registry) Register(connID string, id Identity) (Session, <-chan Event) {
	s := Session{
		ConnID:     connID,
		PlayerID:   id.PlayerID,
		PlayerName: id.PlayerName,
		IsGuest:    r.IsGuest(id.PlayerID),
	}
	c := &conn{sess: s, out: make(chan Event, r.bufferSize)}

	r.mu.Lock()
	if old, ok := r.conns[connID]; ok {
		close(old.out)
	}
	r.conns[connID] = c
	r.mu.Unlock()
	return s, c.out
}

// Unregister removes connID and closes its outbound channel.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[connID]; ok {
		close(c.out)
		delete(r.conns, connID)
	}
}

// Lookup returns the session for connID.
func (r *Registry) Lookup(connID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok {
		return Session{}, false
	}
	return c.sess, true
}

// Send queues ev for connID without blocking. Events for unknown connections, or for
// connections whose buffer is full, are dropped and logged.
func (r *Registry) Send(connID string, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok {
		return
	}
	select {
	case c.out <- ev:
	default:
		r.log.WithFields(logrus.Fields{
			"conn_id":   connID,
			"player_id": c.sess.PlayerID,
			"event":     ev.Event,
		}).Warn("outbound buffer full, dropped event")
	}
}

// Len is the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
