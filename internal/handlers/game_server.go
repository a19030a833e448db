// internal/handlers/game_server.go
package handlers

import (
	"github.com/jason-s-yu/chessmatch/internal/game"
	"github.com/jason-s-yu/chessmatch/internal/session"
	"github.com/sirupsen/logrus"
)

// GameServer ties the websocket endpoint to the room manager and the
// connection registry that delivers the manager's events.
type GameServer struct {
	Manager  *game.Manager
	Registry *session.Registry
	Log      logrus.FieldLogger

	// OriginPatterns is passed to websocket.Accept. Empty accepts any origin.
	OriginPatterns []string
}

func NewGameServer(m *game.Manager, reg *session.Registry, origins []string, log logrus.FieldLogger) *GameServer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &GameServer{
		Manager:        m,
		Registry:       reg,
		Log:            log,
		OriginPatterns: origins,
	}
}
