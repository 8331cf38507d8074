// internal/room/events.go
package room

import "github.com/google/uuid"

// EventType names an outbound room-scoped broadcast.
type EventType string

const (
	EventRoomState        EventType = "room:state"
	EventGameState        EventType = "game:state"
	EventGameStarted      EventType = "game:started"
	EventQuestionStarted  EventType = "game:questionStarted"
	EventAnswerSubmitted  EventType = "game:answerSubmitted"
	EventQuestionSolved   EventType = "game:questionSolved"
	EventQuestionUnsolved EventType = "game:questionUnsolved"
	EventTurnAdvanced     EventType = "game:turnAdvanced"
	EventNextQuestion     EventType = "game:nextQuestion"
	EventGameEnded        EventType = "game:ended"
	EventGamePaused       EventType = "game:paused"
	EventGameError        EventType = "game:error"
	EventRoomError        EventType = "room:error"
)

// Event is the single broadcast envelope. Optional fields are omitted when
// empty so every event type shares one wire shape.
type Event struct {
	Type  EventType  `json:"type"`
	Room  *RoomView  `json:"room,omitempty"`
	Game  *GameView  `json:"game,omitempty"`
	Guess *GuessView `json:"guess,omitempty"`
	Seat  *SeatView  `json:"seat,omitempty"`

	// Message carries human-readable context for error and pause events.
	Message string `json:"message,omitempty"`

	Payload map[string]interface{} `json:"payload,omitempty"`
}

// BroadcastFunc sends an event to every connected seat in a room.
type BroadcastFunc func(ev Event)

// BroadcastToUserFunc sends an event to a single seat.
type BroadcastToUserFunc func(userID uuid.UUID, ev Event)
