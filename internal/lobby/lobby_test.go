package lobby

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(conn, player string) Entry {
	return Entry{ConnID: conn, PlayerID: player, PlayerName: player}
}

func TestQueuePairsOldestFirst(t *testing.T) {
	q := NewQueue()
	q.Enqueue(entry("c1", "p1"))
	q.Enqueue(entry("c2", "p2"))
	q.Enqueue(entry("c3", "p3"))

	a, b, ok := q.NextPair()
	require.True(t, ok)
	assert.Equal(t, "c1", a.ConnID)
	assert.Equal(t, "c2", b.ConnID)
	assert.Equal(t, 1, q.Len())
	assert.True(t, q.Contains("c3"))
}

func TestQueueEnqueueIsIdempotent(t *testing.T) {
	q := NewQueue()
	assert.True(t, q.Enqueue(entry("c1", "p1")))
	assert.False(t, q.Enqueue(entry("c1", "p1")))
	assert.Equal(t, 1, q.Len())
}

func TestQueueDequeueAbsentIsNoop(t *testing.T) {
	q := NewQueue()
	q.Enqueue(entry("c1", "p1"))
	assert.False(t, q.Dequeue("missing"))
	assert.True(t, q.Dequeue("c1"))
	assert.False(t, q.Dequeue("c1"))
	assert.Equal(t, 0, q.Len())
}

func TestQueueSameIdentityIsRequeuedAtTail(t *testing.T) {
	q := NewQueue()
	q.Enqueue(entry("c1", "p1"))
	q.Enqueue(entry("c2", "p1"))
	q.Enqueue(entry("c3", "p3"))

	_, _, ok := q.NextPair()
	assert.False(t, ok)

	got := q.Entries()
	require.Len(t, got, 3)
	assert.Equal(t, "c3", got[0].ConnID)
	assert.Equal(t, "c1", got[1].ConnID)
	assert.Equal(t, "c2", got[2].ConnID)

	a, b, ok := q.NextPair()
	require.True(t, ok)
	assert.Equal(t, "c3", a.ConnID)
	assert.Equal(t, "c1", b.ConnID)
}

func TestQueueRemovePlayer(t *testing.T) {
	q := NewQueue()
	q.Enqueue(entry("c1", "p1"))
	q.Enqueue(entry("c2", "p2"))
	q.Enqueue(entry("c3", "p1"))

	assert.Equal(t, 2, q.RemovePlayer("p1"))
	assert.Equal(t, []Entry{entry("c2", "p2")}, q.Entries())
}

func TestClaimSelfJoin(t *testing.T) {
	p := NewPrivateRooms()
	p.Host("abc123", entry("c1", "p1"))

	_, err := p.Claim("abc123", entry("c9", "p1"))
	assert.ErrorIs(t, err, ErrSelfJoin)

	_, ok := p.Lookup("abc123")
	assert.True(t, ok, "a rejected self join must not consume the code")
}

func TestClaimConsumesCode(t *testing.T) {
	p := NewPrivateRooms()
	p.Host("abc123", entry("c1", "p1"))

	host, err := p.Claim("abc123", entry("c2", "p2"))
	require.NoError(t, err)
	assert.Equal(t, "c1", host.ConnID)

	_, err = p.Claim("abc123", entry("c3", "p3"))
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestUnhost(t *testing.T) {
	p := NewPrivateRooms()
	p.Host("a", entry("c1", "p1"))
	p.Host("b", entry("c1", "p1"))
	p.Host("c", entry("c2", "p2"))

	p.Unhost("a")
	p.Unhost("missing")
	assert.Equal(t, 2, p.Len())

	p.UnhostConn("c1")
	assert.Equal(t, 1, p.Len())
	_, err := p.Claim("b", entry("c3", "p3"))
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestHostRejectsTakenCode(t *testing.T) {
	p := NewPrivateRooms()
	require.NoError(t, p.Host("abc123", entry("c1", "p1")))
	require.NoError(t, p.Host("abc123", entry("c1", "p1")))
	assert.ErrorIs(t, p.Host("abc123", entry("c2", "p2")), ErrCodeInUse)

	host, ok := p.Lookup("abc123")
	require.True(t, ok)
	assert.Equal(t, "c1", host.ConnID)
}

func TestPrivateRoomsRemovePlayer(t *testing.T) {
	p := NewPrivateRooms()
	require.NoError(t, p.Host("a", entry("c1", "p1")))
	require.NoError(t, p.Host("b", entry("c2", "p1")))
	require.NoError(t, p.Host("c", entry("c3", "p2")))

	assert.Equal(t, 2, p.RemovePlayer("p1"))
	assert.Equal(t, 1, p.Len())
	_, ok := p.Lookup("c")
	assert.True(t, ok)
}
