// internal/handlers/room.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/parlorgames/trivia/internal/models"
	"github.com/parlorgames/trivia/internal/room"
)

type createRoomRequest struct {
	Settings *models.RoomSettings `json:"settings"`
}

// CreateRoomHandler creates a room owned by the caller and seats them as
// host. Omitted settings fall back to the defaults.
func CreateRoomHandler(rs *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		identity, err := EnsureIdentity(w, r)
		if err != nil {
			http.Error(w, "authentication failed", http.StatusForbidden)
			return
		}
		identity.Role = "host"

		var req createRoomRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		settings := models.DefaultRoomSettings()
		if req.Settings != nil {
			settings = *req.Settings
		}

		created, err := rs.Engine.CreateRoom(r.Context(), identity, settings)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(room.ProjectRoom(created))
	}
}

type joinRoomRequest struct {
	Code string `json:"code"`
}

// JoinRoomHandler claims a seat in a lobby room. The WebSocket connect
// afterwards marks the seat live.
func JoinRoomHandler(rs *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		identity, err := EnsureIdentity(w, r)
		if err != nil {
			http.Error(w, "authentication failed", http.StatusForbidden)
			return
		}

		var req joinRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		code := strings.ToUpper(strings.TrimSpace(req.Code))
		if code == "" {
			http.Error(w, "missing room code", http.StatusBadRequest)
			return
		}

		joined, err := rs.Engine.AddSeat(r.Context(), code, identity)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(room.ProjectRoom(joined))
	}
}

// ListRoomsHandler lists every active room.
func ListRoomsHandler(rs *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := rs.Engine.ListRooms(r.Context())
		if err != nil {
			http.Error(w, "failed to list rooms", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(views)
	}
}

// writeEngineError maps engine errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	var vErr *room.ValidationError
	var aErr *room.AuthorizationError
	var sErr *room.StateConflictError
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		http.Error(w, "room not found", http.StatusNotFound)
	case errors.As(err, &vErr):
		http.Error(w, vErr.Error(), http.StatusBadRequest)
	case errors.As(err, &aErr):
		http.Error(w, aErr.Error(), http.StatusForbidden)
	case errors.As(err, &sErr):
		http.Error(w, sErr.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
