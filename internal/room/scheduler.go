// internal/room/scheduler.go
package room

import (
	"math"
	"time"

	"github.com/parlorgames/trivia/internal/models"
)

// Window duration rules:
//   - direct: the round-start seat gets settings.DirectSeconds.
//   - first pass: when the direct window failed or timed out, the next seat
//     gets PassSeconds plus whatever was left of the direct window.
//   - subsequent pass: PassSeconds exactly.

// remainingSeconds is the whole-second remainder of a window at decision time,
// never negative.
func remainingSeconds(endsAt, now time.Time) int {
	rem := int(math.Ceil(endsAt.Sub(now).Seconds()))
	if rem < 0 {
		return 0
	}
	return rem
}

// directWindow builds the window for a freshly started question.
func directWindow(settings models.RoomSettings, seatIdx int, now time.Time) *models.ActiveWindow {
	return &models.ActiveWindow{
		SeatIdx:          seatIdx,
		EndsAt:           now.Add(time.Duration(settings.DirectSeconds) * time.Second),
		Seconds:          settings.DirectSeconds,
		IsDirectQuestion: true,
		IsFirstPass:      false,
	}
}

// passWindow builds the window for the seat receiving the turn after expired
// failed. The first pass inherits the direct window's leftover time; every
// later pass gets PassSeconds exactly.
func passWindow(settings models.RoomSettings, expired *models.ActiveWindow, seatIdx int, now time.Time) *models.ActiveWindow {
	seconds := settings.PassSeconds
	firstPass := false
	if expired != nil && expired.IsDirectQuestion {
		seconds += remainingSeconds(expired.EndsAt, now)
		firstPass = true
	}
	return &models.ActiveWindow{
		SeatIdx:          seatIdx,
		EndsAt:           now.Add(time.Duration(seconds) * time.Second),
		Seconds:          seconds,
		IsDirectQuestion: false,
		IsFirstPass:      firstPass,
	}
}

// armWindow schedules the expiry callback for win, replacing any live timer
// for the room. Must be called with rt.mu held, in the same critical section
// as the state save that installed the window.
func (e *Engine) armWindow(rt *runtime, code string, win *models.ActiveWindow) {
	e.disarmWindow(rt)
	seq := rt.windowSeq
	d := time.Until(win.EndsAt)
	if d < 0 {
		d = 0
	}
	rt.timer = time.AfterFunc(d, func() {
		e.expireWindow(code, seq)
	})
}

// disarmWindow stops any live timer and invalidates its generation so a fire
// already in flight becomes a no-op. Must be called with rt.mu held.
func (e *Engine) disarmWindow(rt *runtime) {
	rt.windowSeq++
	if rt.timer != nil {
		rt.timer.Stop()
		rt.timer = nil
	}
}
