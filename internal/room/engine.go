// internal/room/engine.go
package room

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parlorgames/trivia/internal/cache"
	"github.com/parlorgames/trivia/internal/models"
)

// QuestionSource supplies unused approved questions. Returns (nil, nil) when
// the pool excluding excludeIDs is exhausted.
type QuestionSource interface {
	DrawRandomApproved(ctx context.Context, excludeIDs []uuid.UUID) (*models.Question, error)
}

// OracleClient is the external semantic validator. It is untrusted and
// possibly unavailable; the engine never lets it gate a verdict.
type OracleClient interface {
	Validate(ctx context.Context, questionText, canonicalAnswer, guessText string) (models.Verdict, float64, error)
}

// GuessLog persists guess records and their adjudication outcomes.
type GuessLog interface {
	InsertGuess(ctx context.Context, g *models.Guess) error
	UpdateGuessVerdict(ctx context.Context, id uuid.UUID, oracle, final models.Verdict) error
	UpdateGuessDecision(ctx context.Context, id uuid.UUID, decision models.HostDecision, decidedBy uuid.UUID, points int) error
}

// LocalVerdictFunc is the deterministic fallback verdict heuristic.
type LocalVerdictFunc func(canonicalAnswer, guessText string) models.Verdict

// maxSaveAttempts bounds the reload-and-reapply loop on save conflicts.
const maxSaveAttempts = 3

// errNoop aborts an update closure without surfacing an error (stale timer,
// already-disconnected seat, and similar benign races).
var errNoop = errors.New("no-op")

// Engine serializes every session-mutating event for a room through that
// room's runtime mutex: load, validate, mutate, save, then (re)arm or disarm
// the timer in the same critical section.
type Engine struct {
	store     Store
	questions QuestionSource
	oracle    OracleClient
	guesses   GuessLog
	verdict   LocalVerdictFunc

	// OracleTimeout bounds each validator call. The deterministic verdict is
	// always recorded first; the oracle only upgrades it.
	OracleTimeout time.Duration

	mu    sync.Mutex
	rooms map[string]*runtime
}

// runtime is the per-room in-process state: the serialization mutex, the
// single live timer, and the broadcast hooks installed by the transport.
// Timers are process-local and not persisted; a restart loses in-flight
// countdowns and such rooms are treated as paused on the next event.
type runtime struct {
	mu            sync.Mutex
	timer         *time.Timer
	windowSeq     int
	broadcastFn   BroadcastFunc
	broadcastToFn BroadcastToUserFunc
}

func (rt *runtime) fire(ev Event) {
	if rt.broadcastFn != nil {
		rt.broadcastFn(ev)
	}
}

func (rt *runtime) fireTo(userID uuid.UUID, ev Event) {
	if rt.broadcastToFn != nil {
		rt.broadcastToFn(userID, ev)
	}
}

// NewEngine builds an engine. oracle and guesses may be nil; verdict must not.
func NewEngine(store Store, questions QuestionSource, oracle OracleClient, guesses GuessLog, verdict LocalVerdictFunc) *Engine {
	return &Engine{
		store:         store,
		questions:     questions,
		oracle:        oracle,
		guesses:       guesses,
		verdict:       verdict,
		OracleTimeout: 3 * time.Second,
		rooms:         make(map[string]*runtime),
	}
}

func (e *Engine) runtimeFor(code string) *runtime {
	e.mu.Lock()
	defer e.mu.Unlock()
	rt, ok := e.rooms[code]
	if !ok {
		rt = &runtime{}
		e.rooms[code] = rt
	}
	return rt
}

// SetBroadcast installs the transport's fan-out hooks for a room.
func (e *Engine) SetBroadcast(code string, all BroadcastFunc, to BroadcastToUserFunc) {
	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.broadcastFn = all
	rt.broadcastToFn = to
}

// update runs fn against freshly loaded state and saves the result, reloading
// and reapplying on a version conflict. Callers hold the room's runtime mutex.
func (e *Engine) update(ctx context.Context, code string, fn func(r *models.Room) error) (*models.Room, error) {
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		r, err := e.store.Load(ctx, code)
		if err != nil {
			return nil, err
		}
		if err := fn(r); err != nil {
			return nil, err
		}
		if err := e.store.Save(ctx, r); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				continue
			}
			return nil, err
		}
		return r, nil
	}
	return nil, &StateConflictError{Msg: "room state changed concurrently, retries exhausted"}
}

// CreateRoom validates settings, ends any prior active room owned by the same
// host, and persists a fresh room in lobby state with the host seated.
func (e *Engine) CreateRoom(ctx context.Context, host models.Identity, settings models.RoomSettings) (*models.Room, error) {
	if err := validateSettings(settings); err != nil {
		return nil, err
	}
	e.endRoomsOwnedBy(ctx, host.UserID)

	now := time.Now()
	r := &models.Room{
		HostUserID:  host.UserID,
		Settings:    settings,
		NextSeatIdx: 1,
		Seats: []*models.Seat{{
			SeatIdx:    0,
			UserID:     host.UserID,
			Username:   host.Username,
			IsHost:     true,
			JoinedAt:   now,
			LastSeenAt: now,
		}},
		Game: models.GameState{
			Status:               models.StatusLobby,
			TurnOwnerIdx:         -1,
			RoundStartIdx:        -1,
			Scores:               map[uuid.UUID]int{host.UserID: 0},
			TotalQuestionsTarget: settings.TotalQuestions,
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Rejection-sample codes against the active set until one sticks.
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		r.Code = randomRoomCode()
		err := e.store.Create(ctx, r)
		if err == nil {
			e.logEvent(r.Code, host.UserID, "room_created", nil)
			return r, nil
		}
		if !errors.Is(err, ErrRoomExists) {
			return nil, err
		}
	}
	return nil, errors.New("could not allocate a unique room code")
}

// endRoomsOwnedBy marks every active room hosted by userID as ended.
func (e *Engine) endRoomsOwnedBy(ctx context.Context, userID uuid.UUID) {
	active, err := e.store.ListActive(ctx)
	if err != nil {
		log.Printf("failed to list active rooms for host %s: %v", userID, err)
		return
	}
	for _, r := range active {
		if r.HostUserID != userID {
			continue
		}
		e.EndRoom(ctx, r.Code, "host started a new room")
	}
}

// EndRoom transitions a room to ended and deactivates it.
func (e *Engine) EndRoom(ctx context.Context, code, reason string) error {
	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	r, err := e.update(ctx, code, func(r *models.Room) error {
		endGame(r)
		return nil
	})
	if err != nil {
		return err
	}
	e.disarmWindow(rt)
	rt.fire(Event{Type: EventGameEnded, Game: ProjectGame(r), Message: reason})
	e.logEvent(code, uuid.Nil, "room_ended", map[string]interface{}{"reason": reason})
	return nil
}

// AddSeat seats a new player while the room is still in lobby. Idempotent for
// a user who already holds a seat.
func (e *Engine) AddSeat(ctx context.Context, code string, user models.Identity) (*models.Room, error) {
	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	now := time.Now()
	r, err := e.update(ctx, code, func(r *models.Room) error {
		if r.SeatForUser(user.UserID) != nil {
			return nil
		}
		if r.Game.Status != models.StatusLobby {
			return stateErrf(r.Game.Status, "room is no longer accepting players")
		}
		if len(r.Seats) >= r.Settings.PlayersMax {
			return stateErrf(r.Game.Status, "room is full")
		}
		seat := &models.Seat{
			SeatIdx:    r.NextSeatIdx,
			UserID:     user.UserID,
			Username:   user.Username,
			IsHost:     user.UserID == r.HostUserID,
			JoinedAt:   now,
			LastSeenAt: now,
		}
		r.NextSeatIdx++
		r.Seats = append(r.Seats, seat)
		if _, ok := r.Game.Scores[user.UserID]; !ok {
			r.Game.Scores[user.UserID] = 0
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	rt.fire(Event{Type: EventRoomState, Room: ProjectRoom(r)})
	return r, nil
}

// Join is a pure reconnect: the seat must already exist. Marks the seat
// connected and, when the returning user is the host of a paused room,
// resumes the frozen answer window.
func (e *Engine) Join(ctx context.Context, code string, user models.Identity) (*models.Room, error) {
	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	now := time.Now()
	resumed := false
	r, err := e.update(ctx, code, func(r *models.Room) error {
		resumed = false
		seat := r.SeatForUser(user.UserID)
		if seat == nil {
			return authzErrf("you are not a member of room %s", code)
		}
		seat.IsConnected = true
		seat.LastSeenAt = now
		if user.Username != "" {
			seat.Username = user.Username
		}
		g := &r.Game
		if g.Status == models.StatusPaused && seat.IsHost {
			if win := g.ActiveWindow; win != nil {
				win.EndsAt = now.Add(time.Duration(win.Seconds) * time.Second)
			}
			g.Status = models.StatusQuestionActive
			resumed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if resumed && r.Game.ActiveWindow != nil && r.Game.PendingGuess == nil {
		e.armWindow(rt, code, r.Game.ActiveWindow)
	}
	rt.fire(Event{Type: EventRoomState, Room: ProjectRoom(r)})
	if resumed {
		rt.fire(Event{Type: EventGameState, Game: ProjectGame(r)})
	}
	return r, nil
}

// StartGame moves lobby -> open_floor once every expected seat is connected.
func (e *Engine) StartGame(ctx context.Context, code string, userID uuid.UUID) error {
	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	r, err := e.update(ctx, code, func(r *models.Room) error {
		if err := requireHost(r, userID); err != nil {
			return err
		}
		g := &r.Game
		if g.Status != models.StatusLobby {
			return stateErrf(g.Status, "game already started")
		}
		if r.ConnectedCount() != r.Settings.PlayersMax {
			return stateErrf(g.Status, "waiting for players: %d of %d connected", r.ConnectedCount(), r.Settings.PlayersMax)
		}
		first := firstAnswerSeat(r)
		if first == nil {
			return stateErrf(g.Status, "no connected answer seats")
		}
		g.Status = models.StatusOpenFloor
		g.TurnOwnerIdx = first.SeatIdx
		g.RoundStartIdx = first.SeatIdx
		g.QuestionHistory = nil
		g.HintRevealed = false
		g.TotalQuestionsAsked = 0
		return nil
	})
	if err != nil {
		return err
	}
	rt.fire(Event{Type: EventGameStarted, Game: ProjectGame(r)})
	rt.fire(Event{Type: EventGameState, Game: ProjectGame(r)})
	e.logEvent(code, userID, "game_started", nil)
	return nil
}

// StartQuestion opens the answer window for the loaded question, drawing one
// first if none is loaded. The window always opens at the round-start seat,
// so the direct rule applies.
func (e *Engine) StartQuestion(ctx context.Context, code string, userID uuid.UUID) error {
	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	now := time.Now()
	r, err := e.update(ctx, code, func(r *models.Room) error {
		if err := requireHost(r, userID); err != nil {
			return err
		}
		g := &r.Game
		if g.Status != models.StatusOpenFloor {
			return stateErrf(g.Status, "cannot start a question now")
		}
		if g.CurrentQuestion == nil {
			q, err := e.questions.DrawRandomApproved(ctx, g.QuestionHistory)
			if err != nil {
				return err
			}
			if q == nil {
				return ErrNoQuestionsAvailable
			}
			qid := q.ID
			g.CurrentQuestion = q
			g.CurrentQuestionID = &qid
			g.QuestionHistory = append(g.QuestionHistory, q.ID)
			g.TotalQuestionsAsked++
		}
		if r.SeatAt(g.RoundStartIdx) == nil || !r.SeatAt(g.RoundStartIdx).IsConnected {
			if next := nextSeatAfter(r, g.RoundStartIdx); next != nil {
				g.RoundStartIdx = next.SeatIdx
			}
		}
		g.Status = models.StatusQuestionActive
		g.HintRevealed = false
		g.TurnOwnerIdx = g.RoundStartIdx
		g.ActiveWindow = directWindow(r.Settings, g.RoundStartIdx, now)
		g.PendingGuess = nil
		return nil
	})
	if err != nil {
		return err
	}
	e.armWindow(rt, code, r.Game.ActiveWindow)
	rt.fire(Event{Type: EventQuestionStarted, Game: ProjectGame(r)})
	rt.fire(Event{Type: EventGameState, Game: ProjectGame(r)})
	// the host adjudicates, so their copy carries the canonical answer
	rt.fireTo(r.HostUserID, Event{Type: EventGameState, Game: ProjectGameForHost(r)})
	e.logEvent(code, userID, "question_started", map[string]interface{}{"question_id": r.Game.CurrentQuestionID})
	return nil
}

// SubmitAnswer records the turn owner's guess with its deterministic verdict,
// stops the expiry timer, and kicks off a best-effort oracle consult. It never
// advances the turn; adjudication is a separate required step.
func (e *Engine) SubmitAnswer(ctx context.Context, code string, userID uuid.UUID, text, origin string) (*models.Guess, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationErrf("answer must not be empty")
	}
	if origin == "" {
		origin = models.OriginText
	}
	if origin != models.OriginText && origin != models.OriginVoice {
		return nil, validationErrf("unknown answer origin %q", origin)
	}

	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	now := time.Now()
	var guess *models.Guess
	r, err := e.update(ctx, code, func(r *models.Room) error {
		seat := r.SeatForUser(userID)
		if seat == nil {
			return authzErrf("you are not a member of room %s", code)
		}
		g := &r.Game
		if g.Status != models.StatusQuestionActive {
			return stateErrf(g.Status, "no question is active")
		}
		win := g.ActiveWindow
		if win == nil || win.SeatIdx != seat.SeatIdx {
			return authzErrf("it is not your turn")
		}
		if now.After(win.EndsAt) {
			return ErrTurnExpired
		}
		if g.PendingGuess != nil {
			return stateErrf(g.Status, "an answer is already awaiting adjudication")
		}
		q := g.CurrentQuestion
		local := e.verdict(q.Answer, text)
		guess = &models.Guess{
			ID:            uuid.New(),
			RoomCode:      code,
			QuestionID:    q.ID,
			UserID:        userID,
			SeatIdx:       seat.SeatIdx,
			Text:          text,
			Origin:        origin,
			LocalVerdict:  local,
			FinalVerdict:  local,
			WindowSeconds: win.Seconds,
			SubmittedAt:   now,
		}
		g.PendingGuess = guess
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The guess now gates the round; stop the expiry so the timer and the
	// host's decision cannot both advance the same window.
	e.disarmWindow(rt)

	if e.guesses != nil {
		go func(g models.Guess) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.guesses.InsertGuess(ctx, &g); err != nil {
				log.Printf("room %s: failed to persist guess %s: %v", code, g.ID, err)
			}
		}(*guess)
	}

	rt.fire(Event{Type: EventAnswerSubmitted, Guess: NewGuessView(guess), Game: ProjectGame(r)})
	e.logEvent(code, userID, "answer_submitted", map[string]interface{}{
		"guess_id": guess.ID, "verdict": guess.FinalVerdict,
	})

	if e.oracle != nil {
		go e.consultOracle(code, *r.Game.CurrentQuestion, *guess)
	}
	return guess, nil
}

// consultOracle calls the external validator once for a submitted guess and,
// when it answers before adjudication, upgrades the recorded verdict.
// Failures are swallowed; the deterministic verdict already stands.
func (e *Engine) consultOracle(code string, q models.Question, guess models.Guess) {
	ctx, cancel := context.WithTimeout(context.Background(), e.OracleTimeout)
	defer cancel()
	verdict, _, err := e.oracle.Validate(ctx, q.Text, q.Answer, guess.Text)
	if err != nil {
		log.Printf("room %s: oracle validation failed for guess %s: %v", code, guess.ID, err)
		return
	}
	if !models.ValidVerdict(verdict) {
		log.Printf("room %s: oracle returned unknown verdict %q for guess %s", code, verdict, guess.ID)
		return
	}

	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	r, err := e.update(context.Background(), code, func(r *models.Room) error {
		pg := r.Game.PendingGuess
		if pg == nil || pg.ID != guess.ID || pg.HostDecision != nil {
			return errNoop
		}
		v := verdict
		pg.OracleVerdict = &v
		pg.FinalVerdict = v
		return nil
	})
	if err != nil {
		if !errors.Is(err, errNoop) && !errors.Is(err, ErrRoomNotFound) {
			log.Printf("room %s: failed to record oracle verdict for guess %s: %v", code, guess.ID, err)
		}
		return
	}
	if e.guesses != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.guesses.UpdateGuessVerdict(ctx, guess.ID, verdict, verdict); err != nil {
				log.Printf("room %s: failed to persist oracle verdict for guess %s: %v", code, guess.ID, err)
			}
		}()
	}
	rt.fire(Event{Type: EventAnswerSubmitted, Guess: NewGuessView(r.Game.PendingGuess), Game: ProjectGame(r)})
}

// JudgeAnswer applies the host's decision to the pending guess. correct ends
// the round immediately and awards full points regardless of turn position;
// incorrect and partial advance the turn the same way timer expiry does.
func (e *Engine) JudgeAnswer(ctx context.Context, code string, userID, guessID uuid.UUID, decision models.HostDecision, points *int) error {
	if !models.ValidDecision(decision) {
		return validationErrf("unknown decision %q", decision)
	}

	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	now := time.Now()
	var judged models.Guess
	var solved, advanced bool
	r, err := e.update(ctx, code, func(r *models.Room) error {
		solved, advanced = false, false
		if err := requireHost(r, userID); err != nil {
			return err
		}
		g := &r.Game
		if g.Status != models.StatusQuestionActive || g.PendingGuess == nil {
			return stateErrf(g.Status, "no answer awaiting adjudication")
		}
		pg := g.PendingGuess
		if pg.ID != guessID {
			return validationErrf("guess %s is not the pending answer", guessID)
		}

		d := decision
		uid := userID
		pg.HostDecision = &d
		pg.DecidedBy = &uid

		awarded := 0
		switch decision {
		case models.DecisionCorrect:
			awarded = r.Settings.PointsPerQuestion
		case models.DecisionPartial:
			if points != nil {
				awarded = *points
			}
			if awarded < 0 {
				awarded = 0
			}
			if awarded > r.Settings.PointsPerQuestion {
				awarded = r.Settings.PointsPerQuestion
			}
		}
		pg.PointsAwarded = awarded
		if awarded > 0 {
			g.Scores[pg.UserID] += awarded
		}
		judged = *pg

		if decision == models.DecisionCorrect {
			g.Status = models.StatusOpenFloor
			g.HintRevealed = true
			g.ActiveWindow = nil
			g.PendingGuess = nil
			solved = true
			return nil
		}
		advanced = advanceTurn(r, now)
		return nil
	})
	if err != nil {
		return err
	}

	if e.guesses != nil {
		go func(g models.Guess) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.guesses.UpdateGuessDecision(ctx, g.ID, *g.HostDecision, *g.DecidedBy, g.PointsAwarded); err != nil {
				log.Printf("room %s: failed to persist decision for guess %s: %v", code, g.ID, err)
			}
		}(judged)
	}

	switch {
	case solved:
		e.disarmWindow(rt)
		rt.fire(Event{Type: EventQuestionSolved, Guess: NewGuessView(&judged), Game: ProjectGame(r)})
	case advanced:
		e.armWindow(rt, code, r.Game.ActiveWindow)
		rt.fire(Event{Type: EventTurnAdvanced, Guess: NewGuessView(&judged), Game: ProjectGame(r)})
	default:
		e.disarmWindow(rt)
		rt.fire(Event{Type: EventQuestionUnsolved, Guess: NewGuessView(&judged), Game: ProjectGame(r)})
	}
	rt.fire(Event{Type: EventGameState, Game: ProjectGame(r)})
	e.logEvent(code, userID, "answer_judged", map[string]interface{}{
		"guess_id": guessID, "decision": decision, "points": judged.PointsAwarded,
	})
	return nil
}

// NextQuestion draws the next unused question and rotates the round start to
// the seat after the previous turn owner. Ends the session when the target
// count is reached or the pool is exhausted.
func (e *Engine) NextQuestion(ctx context.Context, code string, userID uuid.UUID) error {
	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	ended := false
	r, err := e.update(ctx, code, func(r *models.Room) error {
		ended = false
		if err := requireHost(r, userID); err != nil {
			return err
		}
		g := &r.Game
		if g.Status != models.StatusOpenFloor {
			return stateErrf(g.Status, "cannot advance to the next question now")
		}
		if g.TotalQuestionsAsked >= g.TotalQuestionsTarget {
			endGame(r)
			ended = true
			return nil
		}
		q, err := e.questions.DrawRandomApproved(ctx, g.QuestionHistory)
		if err != nil {
			return err
		}
		if q == nil {
			endGame(r)
			ended = true
			return nil
		}
		next := nextSeatAfter(r, g.TurnOwnerIdx)
		if next == nil {
			return stateErrf(g.Status, "no connected answer seats")
		}
		qid := q.ID
		g.CurrentQuestion = q
		g.CurrentQuestionID = &qid
		g.QuestionHistory = append(g.QuestionHistory, q.ID)
		g.TotalQuestionsAsked++
		g.TurnOwnerIdx = next.SeatIdx
		g.RoundStartIdx = next.SeatIdx
		g.HintRevealed = false
		g.ActiveWindow = nil
		g.PendingGuess = nil
		return nil
	})
	if err != nil {
		return err
	}

	e.disarmWindow(rt)
	if ended {
		rt.fire(Event{Type: EventGameEnded, Game: ProjectGame(r)})
		e.logEvent(code, userID, "game_ended", nil)
		return nil
	}
	rt.fire(Event{Type: EventNextQuestion, Game: ProjectGame(r)})
	rt.fire(Event{Type: EventGameState, Game: ProjectGame(r)})
	e.logEvent(code, userID, "next_question", map[string]interface{}{"question_id": r.Game.CurrentQuestionID})
	return nil
}

// Disconnect marks a seat disconnected. In lobby the seat is removed entirely
// (a departing host ends the room); mid-question a departing host pauses the
// session and freezes the live window.
func (e *Engine) Disconnect(ctx context.Context, code string, userID uuid.UUID) {
	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	now := time.Now()
	var hostPaused, endedRoom bool
	r, err := e.update(ctx, code, func(r *models.Room) error {
		hostPaused, endedRoom = false, false
		seat := r.SeatForUser(userID)
		if seat == nil {
			return errNoop
		}
		g := &r.Game
		if g.Status == models.StatusLobby {
			if seat.IsHost {
				endGame(r)
				endedRoom = true
				return nil
			}
			removeSeat(r, userID)
			return nil
		}
		seat.IsConnected = false
		seat.LastSeenAt = now
		if seat.IsHost && g.Status == models.StatusQuestionActive {
			if win := g.ActiveWindow; win != nil {
				win.Seconds = remainingSeconds(win.EndsAt, now)
			}
			g.Status = models.StatusPaused
			hostPaused = true
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, errNoop) && !errors.Is(err, ErrRoomNotFound) {
			log.Printf("room %s: disconnect handling for %s failed: %v", code, userID, err)
		}
		return
	}

	if hostPaused || endedRoom {
		e.disarmWindow(rt)
	}
	if endedRoom {
		rt.fire(Event{Type: EventGameEnded, Game: ProjectGame(r), Message: "host left the room"})
		return
	}
	if hostPaused {
		rt.fire(Event{Type: EventGamePaused, Game: ProjectGame(r), Message: "host disconnected"})
	}
	rt.fire(Event{Type: EventRoomState, Room: ProjectRoom(r)})
}

// expireWindow is the timer callback. It re-validates against freshly loaded
// state and performs the same advance a host "mark incorrect" produces; a
// stale generation or a room no longer in question_active is a no-op.
func (e *Engine) expireWindow(code string, seq int) {
	rt := e.runtimeFor(code)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if seq != rt.windowSeq {
		return
	}

	now := time.Now()
	advanced := false
	r, err := e.update(context.Background(), code, func(r *models.Room) error {
		advanced = false
		g := &r.Game
		if g.Status != models.StatusQuestionActive || g.ActiveWindow == nil || g.PendingGuess != nil {
			return errNoop
		}
		advanced = advanceTurn(r, now)
		return nil
	})
	if err != nil {
		if !errors.Is(err, errNoop) && !errors.Is(err, ErrRoomNotFound) {
			log.Printf("room %s: window expiry failed: %v", code, err)
		}
		return
	}

	if advanced {
		e.armWindow(rt, code, r.Game.ActiveWindow)
		rt.fire(Event{Type: EventTurnAdvanced, Game: ProjectGame(r)})
	} else {
		e.disarmWindow(rt)
		rt.fire(Event{Type: EventQuestionUnsolved, Game: ProjectGame(r)})
	}
	rt.fire(Event{Type: EventGameState, Game: ProjectGame(r)})
	e.logEvent(code, uuid.Nil, "window_expired", map[string]interface{}{"advanced": advanced})
}

// View loads and projects a room without mutating anything.
func (e *Engine) View(ctx context.Context, code string) (*RoomView, error) {
	r, err := e.store.Load(ctx, code)
	if err != nil {
		return nil, err
	}
	return ProjectRoom(r), nil
}

// ListRooms projects every active room (matchmaking/debug listing).
func (e *Engine) ListRooms(ctx context.Context) ([]*RoomView, error) {
	active, err := e.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]*RoomView, 0, len(active))
	for _, r := range active {
		views = append(views, ProjectRoom(r))
	}
	return views, nil
}

// StartInactivitySweep ends rooms whose every seat has been disconnected for
// longer than idle. Runs until ctx is cancelled.
func (e *Engine) StartInactivitySweep(ctx context.Context, idle, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.sweepIdleRooms(ctx, idle)
			}
		}
	}()
}

func (e *Engine) sweepIdleRooms(ctx context.Context, idle time.Duration) {
	active, err := e.store.ListActive(ctx)
	if err != nil {
		log.Printf("inactivity sweep: list failed: %v", err)
		return
	}
	cutoff := time.Now().Add(-idle)
	for _, r := range active {
		if r.ConnectedCount() > 0 || r.UpdatedAt.After(cutoff) {
			continue
		}
		if err := e.EndRoom(ctx, r.Code, "room idle"); err != nil && !errors.Is(err, ErrRoomNotFound) {
			log.Printf("inactivity sweep: failed to end room %s: %v", r.Code, err)
		}
	}
}

// logEvent pushes an audit record onto the Redis queue when a client is
// connected. Best-effort and asynchronous.
func (e *Engine) logEvent(code string, actor uuid.UUID, eventType string, payload map[string]interface{}) {
	if cache.Rdb == nil {
		return
	}
	rec := cache.RoomEventRecord{
		RoomCode:    code,
		ActorUserID: actor,
		EventType:   eventType,
		Payload:     payload,
		Timestamp:   time.Now().UnixMilli(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishRoomEvent(ctx, rec); err != nil {
			log.Printf("room %s: failed to publish %s event: %v", code, eventType, err)
		}
	}()
}
