package game

import (
	"testing"

	"github.com/jason-s-yu/chessmatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// finishGame plays a checkmate for white and returns the room in REMATCH_PENDING.
func finishGame(t *testing.T, h *harness) Room {
	t.Helper()
	room := h.pair(t)
	require.NoError(t, h.m.SubmitGameEnd("c-alice", GameEnd{
		RoomID:      room.ID,
		Position:    "1. e4 e5 2. Bc4 Nc6 3. Qh5 Nf6 4. Qxf7#",
		WinnerColor: models.White,
		ReasonCode:  ReasonCheckmate,
	}))
	got, ok := h.m.Room(room.ID)
	require.True(t, ok)
	require.Equal(t, PhaseRematchPending, got.Phase)
	return got
}

func TestRematchStartsOnlyAfterBothOffer(t *testing.T) {
	h := setupManager(t)
	room := finishGame(t, h)
	assert.Equal(t, "bob", room.White.PlayerID)

	require.NoError(t, h.m.OfferRematch("c-bob", room.ID))
	ev, ok := h.rec.last("c-alice", EventRematch)
	require.True(t, ok)
	offer := ev.Data.(Rematch)
	assert.Equal(t, "bob", offer.Opponent.ID)
	assert.True(t, offer.Opponent.Rematch)

	// repeating an offer changes nothing
	require.NoError(t, h.m.OfferRematch("c-bob", room.ID))
	got, _ := h.m.Room(room.ID)
	assert.Equal(t, PhaseRematchPending, got.Phase)
	assert.Equal(t, models.White, got.Rematch.OfferedBy)

	require.NoError(t, h.m.OfferRematch("c-alice", room.ID))
	got, _ = h.m.Room(room.ID)
	assert.Equal(t, PhaseInProgress, got.Phase)
	assert.Equal(t, room.ID, got.ID)
	assert.Equal(t, 2, got.GameNo)
	assert.Equal(t, "", got.Position)
	assert.Nil(t, got.Rematch)
	assert.Equal(t, "bob", got.White.PlayerID)
	assert.Equal(t, 1016, got.Black.Rating)

	starts := h.rec.named("c-bob", EventGameStart)
	require.Len(t, starts, 2)
	assert.Equal(t, models.White, starts[1].Data.(GameStart).Color)
	starts = h.rec.named("c-alice", EventGameStart)
	require.Len(t, starts, 2)
	assert.Equal(t, models.Black, starts[1].Data.(GameStart).Color)

	// bob opens the second game
	assert.ErrorIs(t, h.m.SubmitMove("c-alice", Move{RoomID: room.ID, Position: "1. e4"}), ErrNotYourTurn)
	require.NoError(t, h.m.SubmitMove("c-bob", Move{RoomID: room.ID, Position: "1. e4"}))

	// accepting once the game is running cannot start another one
	assert.ErrorIs(t, h.m.OfferRematch("c-alice", room.ID), ErrRoomGone)
}

func TestRoleSwapsOncePerGame(t *testing.T) {
	h := setupManager(t)
	room := finishGame(t, h)
	require.NoError(t, h.m.OfferRematch("c-alice", room.ID))
	require.NoError(t, h.m.OfferRematch("c-bob", room.ID))

	require.NoError(t, h.m.SubmitGameEnd("c-bob", GameEnd{RoomID: room.ID, ReasonCode: ReasonDraw}))
	got, _ := h.m.Room(room.ID)
	assert.Equal(t, "alice", got.White.PlayerID)
	assert.Equal(t, "bob", got.Black.PlayerID)

	// a second gameEnd for the finished game is dropped and does not swap again
	assert.ErrorIs(t, h.m.SubmitGameEnd("c-bob", GameEnd{RoomID: room.ID, ReasonCode: ReasonDraw}), ErrRoomGone)
	got, _ = h.m.Room(room.ID)
	assert.Equal(t, "alice", got.White.PlayerID)
}

func TestDeclineBlocksRematch(t *testing.T) {
	h := setupManager(t)
	room := finishGame(t, h)

	require.NoError(t, h.m.OfferRematch("c-bob", room.ID))
	require.NoError(t, h.m.DeclineRematch("c-alice", room.ID))

	got, ok := h.m.Room(room.ID)
	require.True(t, ok)
	assert.Equal(t, PhaseEnded, got.Phase)
	assert.True(t, got.Rematch.Declined)

	for _, conn := range []string{"c-alice", "c-bob"} {
		ev, ok := h.rec.last(conn, EventRematch)
		require.True(t, ok)
		notice := ev.Data.(Rematch)
		assert.True(t, notice.Opponent.Decline)
		assert.Equal(t, "alice", notice.Opponent.ID)
	}

	assert.ErrorIs(t, h.m.OfferRematch("c-alice", room.ID), ErrRoomGone)
	assert.ErrorIs(t, h.m.SubmitMove("c-bob", Move{RoomID: room.ID, Position: "1. e4"}), ErrRoomGone)

	// the declined room closes on leave without touching ratings again
	require.NoError(t, h.m.Leave("c-bob", room.ID, false))
	_, ok = h.m.Room(room.ID)
	assert.False(t, ok)
	ev, ok := h.rec.last("c-alice", EventPlayerLeave)
	require.True(t, ok)
	assert.False(t, ev.Data.(PlayerLeave).VoidRoom)

	h.eventuallyRating(t, "alice", 1016)
	rec, _ := h.ratings.Record("alice")
	assert.Equal(t, 1, rec.GamesTotal)
}
