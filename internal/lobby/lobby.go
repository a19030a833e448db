// internal/lobby/lobby.go
package lobby

// Entry is a connection waiting to be paired.
type Entry struct {
	ConnID     string
	PlayerID   string
	PlayerName string
	IsGuest    bool
}

// SameIdentity reports whether two entries belong to the same durable player.
// Guest ids are unique per connection, so two guests never collide unless the ids match.
func (e Entry) SameIdentity(o Entry) bool {
	return e.PlayerID != "" && e.PlayerID == o.PlayerID
}

// Queue is the FIFO of connections waiting for a public game.
// It is not safe for concurrent use; the room manager owns it and serializes access.
type Queue struct {
	entries []Entry
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends e at the tail. A connection already waiting keeps its original position.
func (q *Queue) Enqueue(e Entry) bool {
	if q.Contains(e.ConnID) {
		return false
	}
	q.entries = append(q.entries, e)
	return true
}

// Dequeue removes the entry for connID. Removing an absent connection is a no-op.
func (q *Queue) Dequeue(connID string) bool {
	for i, e := range q.entries {
		if e.ConnID == connID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// RemovePlayer drops every entry belonging to playerID and returns how many were removed.
func (q *Queue) RemovePlayer(playerID string) int {
	kept := q.entries[:0]
	removed := 0
	for _, e := range q.entries {
		if e.PlayerID == playerID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
	return removed
}

// NextPair removes the two oldest entries and returns them.
// If both belong to the same identity they are moved to the tail and ok is false;
// pairing is only attempted again on the next queue mutation.
func (q *Queue) NextPair() (a, b Entry, ok bool) {
	if len(q.entries) < 2 {
		return Entry{}, Entry{}, false
	}
	a, b = q.entries[0], q.entries[1]
	q.entries = q.entries[2:]
	if a.SameIdentity(b) {
		q.entries = append(q.entries, a, b)
		return Entry{}, Entry{}, false
	}
	return a, b, true
}

// Len is the number of waiting connections.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Contains reports whether connID is waiting.
func (q *Queue) Contains(connID string) bool {
	for _, e := range q.entries {
		if e.ConnID == connID {
			return true
		}
	}
	return false
}

// Entries returns a copy of the queue in FIFO order.
func (q *Queue) Entries() []Entry {
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}
