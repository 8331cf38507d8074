// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/parlorgames/trivia/internal/middleware"
	"github.com/parlorgames/trivia/internal/models"
	"github.com/parlorgames/trivia/internal/room"
	"github.com/sirupsen/logrus"
)

// RoomMessage is the envelope for incoming WebSocket messages during a session.
type RoomMessage struct {
	Type string `json:"type"`

	// Text and Origin carry a submitted answer.
	Text   string `json:"text,omitempty"`
	Origin string `json:"origin,omitempty"`

	// GuessID, Decision and Points carry a host adjudication.
	GuessID  string `json:"guessId,omitempty"`
	Decision string `json:"decision,omitempty"`
	Points   *int   `json:"points,omitempty"`
}

// RoomWSHandler upgrades the HTTP connection to WebSocket for a specific room.
// It authenticates the user, reconnects their seat through the engine,
// registers the connection for broadcasts, and starts the read loop.
func RoomWSHandler(logger *logrus.Logger, rs *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/room/ws/"), "/")
		if len(pathParts) < 1 || pathParts[0] == "" {
			http.Error(w, "Missing room code in path (/room/ws/{code})", http.StatusBadRequest)
			return
		}
		code := strings.ToUpper(pathParts[0])

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"room"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for room %s: %v", code, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != "room" {
			c.Close(BadSubprotocolError, "Client must use the 'room' subprotocol.")
			return
		}

		identity, err := EnsureIdentity(w, r)
		if err != nil {
			logger.Warnf("User authentication failed for room %s: %v", code, err)
			c.Close(websocket.StatusPolicyViolation, "Authentication failed.")
			return
		}
		logger.Infof("User %s (%s) connecting to room %s", identity.UserID, r.RemoteAddr, code)

		// Register before Join so the reconnect broadcast reaches this socket too.
		rs.register(code, identity.UserID, c)

		joined, err := rs.Engine.Join(r.Context(), code, identity)
		if err != nil {
			rs.unregister(code, identity.UserID, c)
			if errors.Is(err, room.ErrRoomNotFound) {
				c.Close(InvalidRoomCodeError, "room does not exist")
				return
			}
			var aErr *room.AuthorizationError
			if errors.As(err, &aErr) {
				c.Close(websocket.StatusPolicyViolation, "you hold no seat in this room")
				return
			}
			logger.Warnf("Join failed for user %s in room %s: %v", identity.UserID, code, err)
			c.Close(websocket.StatusInternalError, "failed to join room")
			return
		}

		// Initial snapshot; the host copy carries the canonical answer.
		initial := room.Event{Type: room.EventRoomState, Room: room.ProjectRoom(joined)}
		if joined.IsHostUser(identity.UserID) {
			initial.Game = room.ProjectGameForHost(joined)
		}
		sendWsEvent(c, initial)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		readErr := readRoomMessages(ctx, c, rs, code, identity.UserID, logger)

		middleware.LogWebSocketClose(logger, r.RemoteAddr, r.URL.Path, readErr)
		if rs.unregister(code, identity.UserID, c) {
			// Only the current connection's exit counts as a disconnect; a
			// reconnect that replaced this socket must not flip the seat back.
			rs.Engine.Disconnect(context.Background(), code, identity.UserID)
		}
	}
}

// readRoomMessages continuously reads client messages, routes them to the
// engine, and reports engine errors back on the same socket. Returns the
// abnormal read error that terminated the loop, or nil on a clean close.
func readRoomMessages(ctx context.Context, c *websocket.Conn, rs *RoomServer, code string, userID uuid.UUID, logger *logrus.Logger) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			if strings.Contains(err.Error(), "context canceled") {
				return nil
			}
			logger.Warnf("Error reading from WebSocket for user %s in room %s: %v (Status: %d)", userID, code, err, status)
			return err
		}

		if msgType != websocket.MessageText {
			logger.Warnf("Received non-text message type %d from user %s in room %s. Ignoring.", msgType, userID, code)
			continue
		}

		var msg RoomMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("Invalid JSON received from user %s in room %s: %v", userID, code, err)
			sendWsError(c, "Invalid JSON format.")
			continue
		}

		logger.Debugf("Received action '%s' from user %s in room %s.", msg.Type, userID, code)

		switch msg.Type {
		case "startGame":
			if err := rs.Engine.StartGame(ctx, code, userID); err != nil {
				sendWsError(c, err.Error())
			}
		case "startQuestion":
			if err := rs.Engine.StartQuestion(ctx, code, userID); err != nil {
				sendWsError(c, err.Error())
			}
		case "submitAnswer":
			if _, err := rs.Engine.SubmitAnswer(ctx, code, userID, msg.Text, msg.Origin); err != nil {
				sendWsError(c, err.Error())
			}
		case "judgeAnswer":
			guessID, err := uuid.Parse(msg.GuessID)
			if err != nil {
				sendWsError(c, "invalid guessId")
				continue
			}
			if err := rs.Engine.JudgeAnswer(ctx, code, userID, guessID, models.HostDecision(msg.Decision), msg.Points); err != nil {
				sendWsError(c, err.Error())
			}
		case "nextQuestion":
			if err := rs.Engine.NextQuestion(ctx, code, userID); err != nil {
				sendWsError(c, err.Error())
			}
		case "ping":
			sendWsEvent(c, room.Event{Type: "pong"})
		default:
			logger.Warnf("Unknown action type '%s' from user %s in room %s.", msg.Type, userID, code)
			sendWsError(c, fmt.Sprintf("Unknown action type: %s", msg.Type))
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// sendWsEvent marshals an event and writes it with its own timeout.
func sendWsEvent(c *websocket.Conn, ev room.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.Write(ctx, websocket.MessageText, data)
}

// sendWsError sends a structured game error to the client.
func sendWsError(c *websocket.Conn, errorMsg string) {
	sendWsEvent(c, room.Event{Type: room.EventGameError, Message: errorMsg})
}
