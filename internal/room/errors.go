// internal/room/errors.go
package room

import (
	"errors"
	"fmt"

	"github.com/parlorgames/trivia/internal/models"
)

// Sentinel errors shared across the store and engine.
var (
	// ErrRoomNotFound is returned by Store.Load when the code does not name an
	// active room. Terminal for the event that triggered the load.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomExists is returned by Store.Create on a code collision.
	ErrRoomExists = errors.New("room code already exists")

	// ErrVersionConflict is returned by Store.Save when the persisted version
	// moved since Load. The engine reloads and reapplies.
	ErrVersionConflict = errors.New("room version conflict")

	// ErrNoQuestionsAvailable means the unused approved question pool is
	// exhausted; the session cannot meaningfully continue.
	ErrNoQuestionsAvailable = errors.New("no questions available")

	// ErrTurnExpired means an answer arrived after the window closed — the
	// caller lost the race with the timer.
	ErrTurnExpired = errors.New("answer window expired")
)

// ValidationError rejects a malformed event before any state is touched.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// AuthorizationError rejects an event from a caller who is not permitted to
// issue it (not host, not their turn, not a room member). Reported to the
// caller only; room state is unchanged.
type AuthorizationError struct {
	Msg string
}

func (e *AuthorizationError) Error() string { return e.Msg }

// StateConflictError rejects an event that is not valid for the room's current
// status. Status is included so the client can resync.
type StateConflictError struct {
	Status models.RoomStatus
	Msg    string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s (status=%s)", e.Msg, e.Status)
}

func validationErrf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func authzErrf(format string, args ...interface{}) error {
	return &AuthorizationError{Msg: fmt.Sprintf(format, args...)}
}

func stateErrf(status models.RoomStatus, format string, args ...interface{}) error {
	return &StateConflictError{Status: status, Msg: fmt.Sprintf(format, args...)}
}
