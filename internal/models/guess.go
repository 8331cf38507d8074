// internal/models/guess.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Verdict describes answer closeness as judged by the validator or the local
// token-overlap heuristic.
type Verdict string

const (
	VerdictCorrect Verdict = "correct"
	VerdictHot     Verdict = "hot"
	VerdictWarm    Verdict = "warm"
	VerdictCold    Verdict = "cold"
)

// ValidVerdict reports whether v is one of the four known verdict labels.
func ValidVerdict(v Verdict) bool {
	switch v {
	case VerdictCorrect, VerdictHot, VerdictWarm, VerdictCold:
		return true
	}
	return false
}

// HostDecision is the host's adjudication of a submitted guess.
type HostDecision string

const (
	DecisionCorrect   HostDecision = "correct"
	DecisionIncorrect HostDecision = "incorrect"
	DecisionPartial   HostDecision = "partial"
)

// ValidDecision reports whether d is a known adjudication label.
func ValidDecision(d HostDecision) bool {
	switch d {
	case DecisionCorrect, DecisionIncorrect, DecisionPartial:
		return true
	}
	return false
}

// Guess origin labels.
const (
	OriginText  = "text"
	OriginVoice = "voice"
)

// Guess is an immutable record of one submitted answer.
type Guess struct {
	ID            uuid.UUID     `json:"id"`
	RoomCode      string        `json:"room_code"`
	QuestionID    uuid.UUID     `json:"question_id"`
	UserID        uuid.UUID     `json:"user_id"`
	SeatIdx       int           `json:"seat_idx"`
	Text          string        `json:"text"`
	Origin        string        `json:"origin"`
	LocalVerdict  Verdict       `json:"local_verdict"`
	OracleVerdict *Verdict      `json:"oracle_verdict,omitempty"`
	FinalVerdict  Verdict       `json:"final_verdict"`
	HostDecision  *HostDecision `json:"host_decision,omitempty"`
	DecidedBy     *uuid.UUID    `json:"decided_by,omitempty"`
	PointsAwarded int           `json:"points_awarded"`
	WindowSeconds int           `json:"window_seconds"`
	SubmittedAt   time.Time     `json:"submitted_at"`
}
