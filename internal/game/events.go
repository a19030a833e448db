package game

import (
	"encoding/json"

	"github.com/jason-s-yu/chessmatch/internal/models"
)

// Event names of the websocket protocol.
const (
	EventFindGame         = "findGame"
	EventHostRoom         = "hostRoom"
	EventJoinHost         = "joinHost"
	EventGameStart        = "gameStart"
	EventReconnect        = "reconnect"
	EventPlayerReconnect  = "playerReconnect"
	EventMove             = "move"
	EventGameEnd          = "gameEnd"
	EventRematch          = "rematch"
	EventPlayerLeave      = "playerLeave"
	EventPlayerDisconnect = "playerDisconnect"
	EventError            = "error"
	EventPing             = "ping"
	EventPong             = "pong"
)

// Reason codes accepted in a gameEnd request.
const (
	ReasonCheckmate = "checkmate"
	ReasonStalemate = "stalemate"
	ReasonDraw      = "draw"
)

type GameStart struct {
	Color    models.Color  `json:"color"`
	RoomID   string        `json:"roomId"`
	Opponent models.Player `json:"opponent"`
}

// Resume is sent to a participant that re-attaches to its room.
type Resume struct {
	RoomID   string        `json:"roomId"`
	Position string        `json:"position"`
	Color    models.Color  `json:"color"`
	Opponent models.Player `json:"opponent"`
}

type RoomRef struct {
	RoomID string `json:"roomId"`
}

// Move carries an opaque move and the position after it.
type Move struct {
	RoomID   string          `json:"roomId"`
	Move     json.RawMessage `json:"move"`
	Position string          `json:"position"`
}

type GameEnd struct {
	RoomID      string          `json:"roomId"`
	Move        json.RawMessage `json:"move"`
	Position    string          `json:"position"`
	WinnerColor models.Color    `json:"winnerColor"`
	ReasonCode  string          `json:"reasonCode"`
}

type Rematch struct {
	RoomID   string        `json:"roomId"`
	Opponent models.Player `json:"opponent"`
}

type PlayerLeave struct {
	RoomID   string `json:"roomId"`
	VoidRoom bool   `json:"voidRoom"`
}

type PlayerDisconnect struct {
	RoomID       string `json:"roomId"`
	GraceSeconds int    `json:"graceSeconds"`
}

type HostRoom struct {
	RoomCode string `json:"roomCode"`
	Signal   bool   `json:"signal"`
}
