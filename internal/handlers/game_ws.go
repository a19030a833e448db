// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/chessmatch/internal/auth"
	"github.com/jason-s-yu/chessmatch/internal/game"
	"github.com/jason-s-yu/chessmatch/internal/middleware"
	"github.com/jason-s-yu/chessmatch/internal/session"
	"github.com/sirupsen/logrus"
)

const (
	subprotocol  = "chess"
	pingInterval = 30 * time.Second
	pingTimeout  = 15 * time.Second
	writeTimeout = 5 * time.Second
)

// inboundMessage is the client envelope; data is decoded per event.
type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type leaveRequest struct {
	RoomID   string `json:"roomId"`
	VoidRoom bool   `json:"voidRoom"`
}

// GameWSHandler upgrades GET /ws?playerId=..&playerName=..&token=.. to a websocket.
// Registered identities must present a token whose subject is their playerId
// when auth is enabled; guests connect freely.
func GameWSHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		playerID := q.Get("playerId")
		playerName := q.Get("playerName")

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{subprotocol},
			OriginPatterns: gs.OriginPatterns,
		})
		if err != nil {
			gs.Log.WithError(err).Warn("websocket accept error")
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != subprotocol {
			c.Close(BadSubprotocolError, "client must speak the chess subprotocol")
			return
		}
		if playerID == "" {
			c.Close(InvalidUserIDError, "missing playerId")
			return
		}
		if !gs.Registry.IsGuest(playerID) && auth.Enabled() {
			sub, err := auth.AuthenticateJWT(requestToken(r))
			if err != nil || sub != playerID {
				gs.Log.WithError(err).WithField("player_id", playerID).Warn("rejecting websocket: bad token")
				c.Close(InvalidAuthTokenError, "invalid auth token")
				return
			}
		}

		connID := uuid.NewString()
		sess, out := gs.Registry.Register(connID, session.Identity{PlayerID: playerID, PlayerName: playerName})
		logger := gs.Log.WithFields(logrus.Fields{"conn_id": connID, "player_id": playerID})
		middleware.LogWebSocketConnect(gs.Log, r.RemoteAddr, connID, playerID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			writePump(ctx, c, out, logger)
			cancel()
		}()

		if gs.Manager.Connect(ctx, sess) {
			logger.Info("player resumed room")
		}

		readErr := readPump(ctx, c, gs, sess, logger)

		cancel()
		gs.Manager.Disconnect(connID)
		gs.Registry.Unregister(connID)
		<-writerDone
		middleware.LogWebSocketDisconnect(gs.Log, r.RemoteAddr, connID, playerID, readErr)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump reads client envelopes until the connection ends and dispatches them
// to the manager. It returns the read error for abnormal closures only.
func readPump(ctx context.Context, c *websocket.Conn, gs *GameServer, sess session.Session, logger logrus.FieldLogger) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			logger.Warnf("ignoring non-text message type %d", msgType)
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.WithError(err).Debug("invalid JSON from client")
			sendError(gs.Registry, sess.ConnID, game.ErrInvalidMessage)
			continue
		}
		logger.Debugf("received %s", msg.Event)

		if err := dispatch(gs, sess, msg); err != nil {
			if code, ok := clientError(err); ok {
				gs.Registry.Send(sess.ConnID, session.Event{Event: game.EventError, Data: code})
			} else {
				logger.WithError(err).Debugf("dropped %s", msg.Event)
			}
		}
	}
}

// dispatch routes one client event to the manager.
func dispatch(gs *GameServer, sess session.Session, msg inboundMessage) error {
	m := gs.Manager
	connID := sess.ConnID

	switch msg.Event {
	case game.EventFindGame:
		var want bool
		if err := decodeData(msg.Data, &want); err != nil {
			return err
		}
		return m.FindGame(connID, want)

	case game.EventHostRoom:
		var req game.HostRoom
		if err := decodeData(msg.Data, &req); err != nil {
			return err
		}
		return m.HostRoom(connID, req.RoomCode, req.Signal)

	case game.EventJoinHost:
		var code string
		if err := decodeData(msg.Data, &code); err != nil || code == "" {
			return game.ErrInvalidMessage
		}
		return m.JoinHost(connID, code)

	case game.EventMove:
		var mv game.Move
		if err := decodeData(msg.Data, &mv); err != nil || mv.RoomID == "" {
			return game.ErrInvalidMessage
		}
		return m.SubmitMove(connID, mv)

	case game.EventGameEnd:
		var ge game.GameEnd
		if err := decodeData(msg.Data, &ge); err != nil || ge.RoomID == "" {
			return game.ErrInvalidMessage
		}
		return m.SubmitGameEnd(connID, ge)

	case game.EventRematch:
		var rm game.Rematch
		if err := decodeData(msg.Data, &rm); err != nil || rm.RoomID == "" {
			return game.ErrInvalidMessage
		}
		if rm.Opponent.Decline {
			return m.DeclineRematch(connID, rm.RoomID)
		}
		return m.OfferRematch(connID, rm.RoomID)

	case game.EventPlayerLeave:
		var req leaveRequest
		if err := decodeData(msg.Data, &req); err != nil || req.RoomID == "" {
			return game.ErrInvalidMessage
		}
		return m.Leave(connID, req.RoomID, req.VoidRoom)

	case game.EventPing:
		gs.Registry.Send(connID, session.Event{Event: game.EventPong})
		return nil

	default:
		return game.ErrInvalidMessage
	}
}

func decodeData(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return game.ErrInvalidMessage
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return game.ErrInvalidMessage
	}
	return nil
}

func sendError(reg *session.Registry, connID string, err error) {
	if code, ok := clientError(err); ok {
		reg.Send(connID, session.Event{Event: game.EventError, Data: code})
	}
}

// writePump drains the connection's outbound queue and pings the client
// periodically. It returns when the queue is closed, the context ends or a
// write fails.
func writePump(ctx context.Context, c *websocket.Conn, out <-chan session.Event, logger logrus.FieldLogger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-out:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				logger.WithError(err).Warnf("failed to marshal %s", ev.Event)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.WithError(err).Warn("failed to write to websocket")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.WithError(err).Warn("ping failed, assuming disconnect")
				return
			}
		}
	}
}
