package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDetectsGuests(t *testing.T) {
	r := NewRegistry("", 4, nil)

	s, _ := r.Register("c1", Identity{PlayerID: "guest-42", PlayerName: "Anon"})
	assert.True(t, s.IsGuest)

	s, _ = r.Register("c2", Identity{PlayerID: "u-1", PlayerName: "Alice"})
	assert.False(t, s.IsGuest)
	assert.Equal(t, 2, r.Len())
}

func TestSendDeliversInOrder(t *testing.T) {
	r := NewRegistry("", 4, nil)
	_, out := r.Register("c1", Identity{PlayerID: "u-1"})

	r.Send("c1", Event{Event: "a"})
	r.Send("c1", Event{Event: "b"})

	assert.Equal(t, "a", (<-out).Event)
	assert.Equal(t, "b", (<-out).Event)
}

func TestSendDropsWhenFull(t *testing.T) {
	r := NewRegistry("", 1, nil)
	_, out := r.Register("c1", Identity{PlayerID: "u-1"})

	r.Send("c1", Event{Event: "first"})
	r.Send("c1", Event{Event: "second"})

	assert.Equal(t, "first", (<-out).Event)
	select {
	case ev := <-out:
		t.Fatalf("unexpected event %q", ev.Event)
	default:
	}
}

func TestUnregisterClosesChannel(t *testing.T) {
	r := NewRegistry("", 1, nil)
	_, out := r.Register("c1", Identity{PlayerID: "u-1"})

	r.Unregister("c1")
	_, ok := <-out
	assert.False(t, ok)

	_, found := r.Lookup("c1")
	require.False(t, found)

	// sending to a gone connection must not panic
	r.Send("c1", Event{Event: "late"})
	r.Unregister("c1")
}
