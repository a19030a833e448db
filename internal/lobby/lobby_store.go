// internal/lobby/lobby_store.go
package lobby

import "errors"

var (
	// ErrRoomNotFound is returned when a room code is unknown or already consumed.
	ErrRoomNotFound = errors.New("RoomNotFound")
	// ErrSelfJoin is returned when a player tries to join their own hosted room.
	ErrSelfJoin = errors.New("SelfJoin")
	// ErrCodeInUse is returned when another connection already hosts the code.
	ErrCodeInUse = errors.New("RoomCodeInUse")
)

// PrivateRooms maps host-chosen room codes to the waiting host.
// Codes are single-use: a successful Claim removes them.
// Like Queue, it is owned by the room manager and is not safe for concurrent use.
type PrivateRooms struct {
	hosts map[string]Entry
}

// NewPrivateRooms initializes an empty registry.
func NewPrivateRooms() *PrivateRooms {
	return &PrivateRooms{hosts: make(map[string]Entry)}
}

// Host registers host under code. Hosting the same code again from the same
// connection is a no-op.
func (p *PrivateRooms) Host(code string, host Entry) error {
	if cur, ok := p.hosts[code]; ok && cur.ConnID != host.ConnID {
		return ErrCodeInUse
	}
	p.hosts[code] = host
	return nil
}

// Unhost removes code. It is a no-op if the code is not registered.
func (p *PrivateRooms) Unhost(code string) {
	delete(p.hosts, code)
}

// UnhostConn removes every code hosted by connID.
func (p *PrivateRooms) UnhostConn(connID string) {
	for code, h := range p.hosts {
		if h.ConnID == connID {
			delete(p.hosts, code)
		}
	}
}

// RemovePlayer removes every code hosted by playerID from any connection and
// returns how many were removed.
func (p *PrivateRooms) RemovePlayer(playerID string) int {
	removed := 0
	for code, h := range p.hosts {
		if h.PlayerID == playerID {
			delete(p.hosts, code)
			removed++
		}
	}
	return removed
}

// Claim consumes code on behalf of joiner and returns the host.
func (p *PrivateRooms) Claim(code string, joiner Entry) (Entry, error) {
	host, ok := p.hosts[code]
	if !ok {
		return Entry{}, ErrRoomNotFound
	}
	if host.SameIdentity(joiner) || host.ConnID == joiner.ConnID {
		return Entry{}, ErrSelfJoin
	}
	delete(p.hosts, code)
	return host, nil
}

// Lookup returns the host waiting under code.
func (p *PrivateRooms) Lookup(code string) (Entry, bool) {
	h, ok := p.hosts[code]
	return h, ok
}

// Len is the number of open codes.
func (p *PrivateRooms) Len() int {
	return len(p.hosts)
}
