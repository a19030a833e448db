package game

import "errors"

var (
	// ErrAlreadyInRoom is returned when an identity that is already seated asks for another game.
	ErrAlreadyInRoom = errors.New("AlreadyInRoom")
	// ErrInvalidMessage is returned for requests with missing or malformed fields.
	ErrInvalidMessage = errors.New("InvalidMessage")

	// The errors below are never shown to clients; the requests they reject are dropped.
	ErrRoomGone          = errors.New("room is closed or unknown")
	ErrNotParticipant    = errors.New("connection is not seated in the room")
	ErrNotYourTurn       = errors.New("not this side's turn")
	ErrUnknownConnection = errors.New("unknown connection")
)
