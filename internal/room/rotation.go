// internal/room/rotation.go
package room

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/parlorgames/trivia/internal/models"
)

const (
	roomCodeLength   = 6
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts  = 20
)

// randomRoomCode returns a 6-character uppercase alphanumeric code.
func randomRoomCode() string {
	buf := make([]byte, roomCodeLength)
	max := big.NewInt(int64(len(roomCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken
			buf[i] = roomCodeAlphabet[time.Now().UnixNano()%int64(len(roomCodeAlphabet))]
			continue
		}
		buf[i] = roomCodeAlphabet[n.Int64()]
	}
	return string(buf)
}

func requireHost(r *models.Room, userID uuid.UUID) error {
	seat := r.SeatForUser(userID)
	if seat == nil {
		return authzErrf("you are not a member of room %s", r.Code)
	}
	if !seat.IsHost {
		return authzErrf("only the host may perform this action")
	}
	return nil
}

// firstAnswerSeat returns the lowest-index connected non-host seat.
func firstAnswerSeat(r *models.Room) *models.Seat {
	for _, s := range r.Seats {
		if !s.IsHost && s.IsConnected {
			return s
		}
	}
	return nil
}

// seatPosition returns the slice index of the seat with the given seatIdx,
// or -1. Seats stay sorted by SeatIdx because indices are assigned
// monotonically and removal preserves order.
func seatPosition(r *models.Room, seatIdx int) int {
	for i, s := range r.Seats {
		if s.SeatIdx == seatIdx {
			return i
		}
	}
	return -1
}

// nextSeatAfter walks the seats cyclically starting after fromIdx and returns
// the first connected non-host seat, which may wrap all the way back to
// fromIdx itself. Returns nil when no seat qualifies.
func nextSeatAfter(r *models.Room, fromIdx int) *models.Seat {
	n := len(r.Seats)
	if n == 0 {
		return nil
	}
	start := seatPosition(r, fromIdx)
	for i := 1; i <= n; i++ {
		s := r.Seats[((start+i)%n+n)%n]
		if !s.IsHost && s.IsConnected {
			return s
		}
	}
	return nil
}

// advanceTurn moves the window to the next answer seat after the current
// owner, crediting the new seat with the expired window's unused time when
// the direct window is the one that lapsed. When the rotation returns to the
// round-start seat the round is complete: the floor reopens with the hint
// revealed. Reports whether a new window was opened.
func advanceTurn(r *models.Room, now time.Time) bool {
	g := &r.Game
	expired := g.ActiveWindow

	n := len(r.Seats)
	start := seatPosition(r, g.TurnOwnerIdx)
	var next *models.Seat
	for i := 1; i <= n; i++ {
		s := r.Seats[((start+i)%n+n)%n]
		if s.SeatIdx == g.RoundStartIdx {
			break
		}
		if s.IsHost || !s.IsConnected {
			continue
		}
		next = s
		break
	}

	if next == nil {
		g.Status = models.StatusOpenFloor
		g.HintRevealed = true
		g.ActiveWindow = nil
		g.PendingGuess = nil
		return false
	}
	g.TurnOwnerIdx = next.SeatIdx
	g.ActiveWindow = passWindow(r.Settings, expired, next.SeatIdx, now)
	g.PendingGuess = nil
	return true
}

// endGame terminates the session and deactivates the room.
func endGame(r *models.Room) {
	g := &r.Game
	g.Status = models.StatusEnded
	g.ActiveWindow = nil
	g.PendingGuess = nil
	r.IsActive = false
}

// removeSeat drops a seat from a lobby room. The score entry stays so every
// seat ever added keeps a scores key.
func removeSeat(r *models.Room, userID uuid.UUID) {
	seats := r.Seats[:0]
	for _, s := range r.Seats {
		if s.UserID != userID {
			seats = append(seats, s)
		}
	}
	r.Seats = seats
}

func validateSettings(s models.RoomSettings) error {
	if s.PlayersMin < 2 || s.PlayersMax > 6 || s.PlayersMin > s.PlayersMax {
		return validationErrf("player count must satisfy 2 <= min <= max <= 6")
	}
	if s.DirectSeconds <= 0 || s.PassSeconds <= 0 {
		return validationErrf("window durations must be positive")
	}
	if s.PointsPerQuestion <= 0 {
		return validationErrf("points per question must be positive")
	}
	if s.TotalQuestions <= 0 {
		return validationErrf("total questions must be positive")
	}
	if s.InputMode != models.OriginText && s.InputMode != models.OriginVoice {
		return validationErrf("unknown input mode %q", s.InputMode)
	}
	return nil
}
