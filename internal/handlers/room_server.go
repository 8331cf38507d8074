// internal/handlers/room_server.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/parlorgames/trivia/internal/room"
)

// RoomServer tracks the live WebSocket connections per room and bridges the
// engine's broadcast callbacks onto them. Connections are process-local; the
// engine itself only knows the callbacks.
type RoomServer struct {
	Engine *room.Engine

	mu    sync.Mutex
	conns map[string]map[uuid.UUID]*websocket.Conn
}

func NewRoomServer(engine *room.Engine) *RoomServer {
	return &RoomServer{
		Engine: engine,
		conns:  make(map[string]map[uuid.UUID]*websocket.Conn),
	}
}

// register stores a connection and installs the room's broadcast hooks.
// A newer connection for the same user replaces the old one.
func (rs *RoomServer) register(code string, userID uuid.UUID, c *websocket.Conn) {
	rs.mu.Lock()
	if rs.conns[code] == nil {
		rs.conns[code] = make(map[uuid.UUID]*websocket.Conn)
	}
	rs.conns[code][userID] = c
	rs.mu.Unlock()

	rs.Engine.SetBroadcast(code, rs.broadcastFunc(code), rs.broadcastToUserFunc(code))
}

// unregister drops a connection, but only if it is still the current one for
// that user (a reconnect may already have replaced it).
func (rs *RoomServer) unregister(code string, userID uuid.UUID, c *websocket.Conn) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.conns[code] == nil || rs.conns[code][userID] != c {
		return false
	}
	delete(rs.conns[code], userID)
	if len(rs.conns[code]) == 0 {
		delete(rs.conns, code)
	}
	return true
}

// broadcastFunc sends an event to every connection in the room. Called while
// the engine holds the room's runtime lock, so the writes happen on a
// separate goroutine with their own timeouts.
func (rs *RoomServer) broadcastFunc(code string) room.BroadcastFunc {
	return func(ev room.Event) {
		rs.mu.Lock()
		targets := make([]*websocket.Conn, 0, len(rs.conns[code]))
		for _, c := range rs.conns[code] {
			targets = append(targets, c)
		}
		rs.mu.Unlock()

		data, err := json.Marshal(ev)
		if err != nil {
			log.Errorf("Failed to marshal broadcast event (%s) for room %s: %v", ev.Type, code, err)
			return
		}
		go func() {
			for _, c := range targets {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				err := c.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					log.Warnf("Failed to write broadcast message in room %s: %v", code, err)
				}
			}
		}()
	}
}

// broadcastToUserFunc sends an event to a single seat's connection.
func (rs *RoomServer) broadcastToUserFunc(code string) room.BroadcastToUserFunc {
	return func(userID uuid.UUID, ev room.Event) {
		rs.mu.Lock()
		c := rs.conns[code][userID]
		rs.mu.Unlock()
		if c == nil {
			return
		}
		data, err := json.Marshal(ev)
		if err != nil {
			log.Errorf("Failed to marshal private event (%s) for user %s in room %s: %v", ev.Type, userID, code, err)
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := c.Write(ctx, websocket.MessageText, data); err != nil {
				log.Warnf("Failed to write private message to user %s in room %s: %v", userID, code, err)
			}
		}()
	}
}

// PingHandler is a trivial liveness endpoint.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
