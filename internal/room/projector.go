// internal/room/projector.go
package room

import (
	"time"

	"github.com/google/uuid"
	"github.com/parlorgames/trivia/internal/models"
)

// View types are the wire-facing projections of room state. Projection is the
// only place the canonical answer is filtered: while a question is live the
// answer and answer images never leave the server except to the host, who
// needs them to adjudicate.

type RoomView struct {
	Code      string               `json:"code"`
	HostID    uuid.UUID            `json:"hostId"`
	Settings  models.RoomSettings  `json:"settings"`
	Seats     []*SeatView          `json:"seats"`
	Status    models.RoomStatus    `json:"status"`
	Game      *GameView            `json:"game"`
	CreatedAt time.Time            `json:"createdAt"`
}

type SeatView struct {
	SeatIdx     int       `json:"seatIdx"`
	UserID      uuid.UUID `json:"userId"`
	Username    string    `json:"username"`
	IsHost      bool      `json:"isHost"`
	IsConnected bool      `json:"isConnected"`
	Score       int       `json:"score"`
}

type GameView struct {
	Status          models.RoomStatus `json:"status"`
	Question        *QuestionView     `json:"question,omitempty"`
	TurnOwnerIdx    int               `json:"turnOwnerIdx"`
	RoundStartIdx   int               `json:"roundStartIdx"`
	Window          *WindowView       `json:"window,omitempty"`
	HintRevealed    bool              `json:"hintRevealed"`
	Scores          map[string]int    `json:"scores"`
	QuestionsAsked  int               `json:"questionsAsked"`
	QuestionsTarget int               `json:"questionsTarget"`
	PendingGuess    *GuessView        `json:"pendingGuess,omitempty"`
}

type QuestionView struct {
	ID           uuid.UUID `json:"id"`
	Text         string    `json:"text"`
	Hint         string    `json:"hint,omitempty"`
	Images       []string  `json:"images,omitempty"`
	Answer       string    `json:"answer,omitempty"`
	AnswerImages []string  `json:"answerImages,omitempty"`
}

type WindowView struct {
	SeatIdx          int       `json:"seatIdx"`
	EndsAt           time.Time `json:"endsAt"`
	Seconds          int       `json:"seconds"`
	IsDirectQuestion bool      `json:"isDirectQuestion"`
	IsFirstPass      bool      `json:"isFirstPass"`
}

type GuessView struct {
	ID            uuid.UUID            `json:"id"`
	QuestionID    uuid.UUID            `json:"questionId"`
	UserID        uuid.UUID            `json:"userId"`
	SeatIdx       int                  `json:"seatIdx"`
	Text          string               `json:"text"`
	Origin        string               `json:"origin"`
	Verdict       models.Verdict       `json:"verdict"`
	HostDecision  *models.HostDecision `json:"hostDecision,omitempty"`
	PointsAwarded int                  `json:"pointsAwarded"`
	SubmittedAt   time.Time            `json:"submittedAt"`
}

// ProjectRoom builds the broadcast-safe view of a room.
func ProjectRoom(r *models.Room) *RoomView {
	seats := make([]*SeatView, 0, len(r.Seats))
	for _, s := range r.Seats {
		seats = append(seats, &SeatView{
			SeatIdx:     s.SeatIdx,
			UserID:      s.UserID,
			Username:    s.Username,
			IsHost:      s.IsHost,
			IsConnected: s.IsConnected,
			Score:       r.Game.Scores[s.UserID],
		})
	}
	return &RoomView{
		Code:      r.Code,
		HostID:    r.HostUserID,
		Settings:  r.Settings,
		Seats:     seats,
		Status:    r.Game.Status,
		Game:      ProjectGame(r),
		CreatedAt: r.CreatedAt,
	}
}

// ProjectGame builds the broadcast-safe game view with the answer redacted
// until the round resolves.
func ProjectGame(r *models.Room) *GameView {
	return projectGame(r, false)
}

// ProjectGameForHost includes the canonical answer regardless of round state.
func ProjectGameForHost(r *models.Room) *GameView {
	return projectGame(r, true)
}

func projectGame(r *models.Room, hostEyes bool) *GameView {
	g := &r.Game
	view := &GameView{
		Status:          g.Status,
		TurnOwnerIdx:    g.TurnOwnerIdx,
		RoundStartIdx:   g.RoundStartIdx,
		HintRevealed:    g.HintRevealed,
		Scores:          make(map[string]int, len(g.Scores)),
		QuestionsAsked:  g.TotalQuestionsAsked,
		QuestionsTarget: g.TotalQuestionsTarget,
		PendingGuess:    NewGuessView(g.PendingGuess),
	}
	for uid, score := range g.Scores {
		view.Scores[uid.String()] = score
	}
	if win := g.ActiveWindow; win != nil {
		view.Window = &WindowView{
			SeatIdx:          win.SeatIdx,
			EndsAt:           win.EndsAt,
			Seconds:          win.Seconds,
			IsDirectQuestion: win.IsDirectQuestion,
			IsFirstPass:      win.IsFirstPass,
		}
	}
	if q := g.CurrentQuestion; q != nil {
		qv := &QuestionView{
			ID:     q.ID,
			Text:   q.Text,
			Images: q.Images,
		}
		if g.HintRevealed {
			qv.Hint = q.Hint
		}
		answerRevealed := hostEyes ||
			g.Status == models.StatusEnded ||
			(g.Status == models.StatusOpenFloor && g.HintRevealed)
		if answerRevealed {
			qv.Answer = q.Answer
			qv.AnswerImages = q.AnswerImages
		}
		if hostEyes {
			qv.Hint = q.Hint
		}
		view.Question = qv
	}
	return view
}

// NewGuessView projects a guess; nil-safe. The deterministic and oracle
// verdicts stay internal, only the final verdict is exposed.
func NewGuessView(g *models.Guess) *GuessView {
	if g == nil {
		return nil
	}
	return &GuessView{
		ID:            g.ID,
		QuestionID:    g.QuestionID,
		UserID:        g.UserID,
		SeatIdx:       g.SeatIdx,
		Text:          g.Text,
		Origin:        g.Origin,
		Verdict:       g.FinalVerdict,
		HostDecision:  g.HostDecision,
		PointsAwarded: g.PointsAwarded,
		SubmittedAt:   g.SubmittedAt,
	}
}
