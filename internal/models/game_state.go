// internal/models/game_state.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomStatus is the session state machine:
// lobby -> open_floor -> question_active -> (paused) -> ended.
type RoomStatus string

const (
	StatusLobby          RoomStatus = "lobby"
	StatusOpenFloor      RoomStatus = "open_floor"
	StatusQuestionActive RoomStatus = "question_active"
	StatusPaused         RoomStatus = "paused"
	StatusEnded          RoomStatus = "ended"
)

// ActiveWindow is the live answer window. At most one exists per room and its
// SeatIdx always equals GameState.TurnOwnerIdx.
type ActiveWindow struct {
	SeatIdx          int       `json:"seat_idx"`
	EndsAt           time.Time `json:"ends_at"`
	Seconds          int       `json:"seconds"`
	IsDirectQuestion bool      `json:"is_direct_question"`
	IsFirstPass      bool      `json:"is_first_pass"`
}

// GameState is the turn/timer state machine embedded in a Room.
type GameState struct {
	Status            RoomStatus    `json:"status"`
	CurrentQuestionID *uuid.UUID    `json:"current_question_id,omitempty"`
	CurrentQuestion   *Question     `json:"current_question,omitempty"`
	TurnOwnerIdx      int           `json:"turn_owner_idx"`
	RoundStartIdx     int           `json:"round_start_idx"`
	ActiveWindow      *ActiveWindow `json:"active_window,omitempty"`
	HintRevealed      bool          `json:"hint_revealed"`

	Scores               map[uuid.UUID]int `json:"scores"`
	QuestionHistory      []uuid.UUID       `json:"question_history"`
	TotalQuestionsAsked  int               `json:"total_questions_asked"`
	TotalQuestionsTarget int               `json:"total_questions_target"`

	// PendingGuess is the submitted answer awaiting host adjudication, if any.
	PendingGuess *Guess `json:"pending_guess,omitempty"`
}

// InHistory reports whether the question was already asked in this session.
func (g *GameState) InHistory(id uuid.UUID) bool {
	for _, h := range g.QuestionHistory {
		if h == id {
			return true
		}
	}
	return false
}
