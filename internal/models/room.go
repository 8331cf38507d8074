// internal/models/room.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomSettings is the immutable-after-creation configuration for a session.
type RoomSettings struct {
	PlayersMin        int    `json:"players_min"`
	PlayersMax        int    `json:"players_max"`
	DirectSeconds     int    `json:"direct_seconds"`
	PassSeconds       int    `json:"pass_seconds"`
	PointsPerQuestion int    `json:"points_per_question"`
	TotalQuestions    int    `json:"total_questions"`
	InputMode         string `json:"input_mode"` // "text" or "voice"
	AutoAccept        bool   `json:"auto_accept"`
}

// DefaultRoomSettings returns the baseline configuration applied when a host
// creates a room without overriding individual fields.
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		PlayersMin:        2,
		PlayersMax:        4,
		DirectSeconds:     120,
		PassSeconds:       60,
		PointsPerQuestion: 10,
		TotalQuestions:    10,
		InputMode:         "text",
		AutoAccept:        false,
	}
}

// Seat is one player slot in a room. SeatIdx is assigned monotonically and
// never reused for the lifetime of the room.
type Seat struct {
	SeatIdx     int       `json:"seat_idx"`
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	IsHost      bool      `json:"is_host"`
	IsConnected bool      `json:"is_connected"`
	JoinedAt    time.Time `json:"joined_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// Room holds the entire durable state for one trivia session.
type Room struct {
	Code        string       `json:"code"`
	HostUserID  uuid.UUID    `json:"host_user_id"`
	Settings    RoomSettings `json:"settings"`
	Seats       []*Seat      `json:"seats"`
	NextSeatIdx int          `json:"next_seat_idx"`
	Game        GameState    `json:"game"`
	IsActive    bool         `json:"is_active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	// Version is bookkeeping for the optimistic save check; the store owns it.
	Version int64 `json:"-"`
}

// SeatForUser returns the seat belonging to userID, or nil.
func (r *Room) SeatForUser(userID uuid.UUID) *Seat {
	for _, s := range r.Seats {
		if s.UserID == userID {
			return s
		}
	}
	return nil
}

// SeatAt returns the seat with the given index, or nil.
func (r *Room) SeatAt(seatIdx int) *Seat {
	for _, s := range r.Seats {
		if s.SeatIdx == seatIdx {
			return s
		}
	}
	return nil
}

// ConnectedCount returns the number of currently connected seats, host included.
func (r *Room) ConnectedCount() int {
	n := 0
	for _, s := range r.Seats {
		if s.IsConnected {
			n++
		}
	}
	return n
}

// IsHostUser reports whether userID holds the host seat.
func (r *Room) IsHostUser(userID uuid.UUID) bool {
	s := r.SeatForUser(userID)
	return s != nil && s.IsHost
}
