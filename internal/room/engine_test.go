// internal/room/engine_test.go
package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/parlorgames/trivia/internal/models"
	"github.com/parlorgames/trivia/internal/oracle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu         sync.Mutex
	allEvents  []Event
	userEvents map[uuid.UUID][]Event
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{userEvents: make(map[uuid.UUID][]Event)}
}

func (mb *mockBroadcaster) fire(ev Event) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) fireTo(userID uuid.UUID, ev Event) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.userEvents[userID] = append(mb.userEvents[userID], ev)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = nil
	mb.userEvents = make(map[uuid.UUID][]Event)
}

func (mb *mockBroadcaster) lastOfType(typ EventType) *Event {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for i := len(mb.allEvents) - 1; i >= 0; i-- {
		if mb.allEvents[i].Type == typ {
			ev := mb.allEvents[i]
			return &ev
		}
	}
	return nil
}

func (mb *mockBroadcaster) countOfType(typ EventType) int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	n := 0
	for _, ev := range mb.allEvents {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// stubQuestions serves a fixed pool in order, skipping already-asked ids.
type stubQuestions struct {
	mu   sync.Mutex
	pool []*models.Question
}

func newStubQuestions(n int) *stubQuestions {
	sq := &stubQuestions{}
	for i := 0; i < n; i++ {
		sq.pool = append(sq.pool, &models.Question{
			ID:       uuid.New(),
			Text:     "What is the capital of Atlantis?",
			Answer:   "new atlantis city",
			Hint:     "it sank",
			Approved: true,
		})
	}
	return sq
}

func (sq *stubQuestions) DrawRandomApproved(ctx context.Context, exclude []uuid.UUID) (*models.Question, error) {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	used := make(map[uuid.UUID]bool, len(exclude))
	for _, id := range exclude {
		used[id] = true
	}
	for _, q := range sq.pool {
		if !used[q.ID] {
			qc := *q
			return &qc, nil
		}
	}
	return nil, nil
}

// stubOracle returns a fixed verdict after an optional delay.
type stubOracle struct {
	verdict models.Verdict
	err     error
	delay   time.Duration
}

func (so *stubOracle) Validate(ctx context.Context, q, a, g string) (models.Verdict, float64, error) {
	if so.delay > 0 {
		select {
		case <-time.After(so.delay):
		case <-ctx.Done():
			return "", 0, ctx.Err()
		}
	}
	if so.err != nil {
		return "", 0, so.err
	}
	return so.verdict, 0.9, nil
}

type testFixture struct {
	engine *Engine
	store  *MemoryStore
	mb     *mockBroadcaster
	code   string
	host   models.Identity
	// players are the non-host identities in seat order.
	players []models.Identity
}

// setupTestRoom creates a started room with a host and numPlayers answer
// seats, everyone connected, floor open.
func setupTestRoom(t *testing.T, numPlayers int, oracleClient OracleClient) *testFixture {
	t.Helper()
	ctx := context.Background()
	store := NewMemoryStore()
	e := NewEngine(store, newStubQuestions(20), oracleClient, nil, oracle.LocalVerdict)
	e.OracleTimeout = 500 * time.Millisecond

	host := models.Identity{UserID: uuid.New(), Username: "Host", Role: "host"}
	settings := models.DefaultRoomSettings()
	settings.PlayersMax = numPlayers + 1
	settings.TotalQuestions = 3

	r, err := e.CreateRoom(ctx, host, settings)
	require.NoError(t, err)

	var players []models.Identity
	for i := 0; i < numPlayers; i++ {
		p := models.Identity{UserID: uuid.New(), Username: "Player", Role: "player"}
		players = append(players, p)
		_, err := e.AddSeat(ctx, r.Code, p)
		require.NoError(t, err)
	}

	mb := newMockBroadcaster()
	e.SetBroadcast(r.Code, mb.fire, mb.fireTo)

	_, err = e.Join(ctx, r.Code, host)
	require.NoError(t, err)
	for _, p := range players {
		_, err := e.Join(ctx, r.Code, p)
		require.NoError(t, err)
	}

	require.NoError(t, e.StartGame(ctx, r.Code, host.UserID))
	mb.clear()

	return &testFixture{engine: e, store: store, mb: mb, code: r.Code, host: host, players: players}
}

func (f *testFixture) room(t *testing.T) *models.Room {
	t.Helper()
	r, err := f.store.Load(context.Background(), f.code)
	require.NoError(t, err)
	return r
}

// currentSeq reads the live timer generation for the room.
func (f *testFixture) currentSeq() int {
	rt := f.engine.runtimeFor(f.code)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.windowSeq
}

// rewindWindow rewrites the stored window deadline so expiry math sees the
// given remainder.
func (f *testFixture) rewindWindow(t *testing.T, remaining time.Duration) {
	t.Helper()
	r := f.room(t)
	require.NotNil(t, r.Game.ActiveWindow)
	r.Game.ActiveWindow.EndsAt = time.Now().Add(remaining)
	require.NoError(t, f.store.Save(context.Background(), r))
}

func TestCreateRoomSeatsHostInLobby(t *testing.T) {
	e := NewEngine(NewMemoryStore(), newStubQuestions(5), nil, nil, oracle.LocalVerdict)
	host := models.Identity{UserID: uuid.New(), Username: "Host"}

	r, err := e.CreateRoom(context.Background(), host, models.DefaultRoomSettings())
	require.NoError(t, err)

	assert.Len(t, r.Code, 6)
	assert.Equal(t, models.StatusLobby, r.Game.Status)
	require.Len(t, r.Seats, 1)
	assert.True(t, r.Seats[0].IsHost)
	assert.Equal(t, 0, r.Seats[0].SeatIdx)
	assert.Contains(t, r.Game.Scores, host.UserID)
}

func TestCreateRoomEndsHostsPriorRoom(t *testing.T) {
	e := NewEngine(NewMemoryStore(), newStubQuestions(5), nil, nil, oracle.LocalVerdict)
	host := models.Identity{UserID: uuid.New(), Username: "Host"}
	ctx := context.Background()

	first, err := e.CreateRoom(ctx, host, models.DefaultRoomSettings())
	require.NoError(t, err)
	second, err := e.CreateRoom(ctx, host, models.DefaultRoomSettings())
	require.NoError(t, err)

	_, err = e.store.Load(ctx, first.Code)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = e.store.Load(ctx, second.Code)
	assert.NoError(t, err)
}

func TestCreateRoomRejectsBadSettings(t *testing.T) {
	e := NewEngine(NewMemoryStore(), newStubQuestions(5), nil, nil, oracle.LocalVerdict)
	settings := models.DefaultRoomSettings()
	settings.DirectSeconds = 0

	_, err := e.CreateRoom(context.Background(), models.Identity{UserID: uuid.New()}, settings)
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestAddSeatRejectsWhenFull(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(NewMemoryStore(), newStubQuestions(5), nil, nil, oracle.LocalVerdict)
	settings := models.DefaultRoomSettings()
	settings.PlayersMax = 2

	r, err := e.CreateRoom(ctx, models.Identity{UserID: uuid.New(), Username: "Host"}, settings)
	require.NoError(t, err)
	_, err = e.AddSeat(ctx, r.Code, models.Identity{UserID: uuid.New()})
	require.NoError(t, err)

	_, err = e.AddSeat(ctx, r.Code, models.Identity{UserID: uuid.New()})
	var sErr *StateConflictError
	assert.ErrorAs(t, err, &sErr)
}

func TestStartGameRequiresHostAndFullRoom(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(NewMemoryStore(), newStubQuestions(5), nil, nil, oracle.LocalVerdict)
	host := models.Identity{UserID: uuid.New(), Username: "Host"}
	settings := models.DefaultRoomSettings()
	settings.PlayersMax = 3

	r, err := e.CreateRoom(ctx, host, settings)
	require.NoError(t, err)
	player := models.Identity{UserID: uuid.New(), Username: "P"}
	_, err = e.AddSeat(ctx, r.Code, player)
	require.NoError(t, err)
	_, err = e.Join(ctx, r.Code, host)
	require.NoError(t, err)
	_, err = e.Join(ctx, r.Code, player)
	require.NoError(t, err)

	var aErr *AuthorizationError
	err = e.StartGame(ctx, r.Code, player.UserID)
	assert.ErrorAs(t, err, &aErr)

	// only 2 of 3 seats connected
	var sErr *StateConflictError
	err = e.StartGame(ctx, r.Code, host.UserID)
	assert.ErrorAs(t, err, &sErr)
}

func TestStartQuestionOpensDirectWindow(t *testing.T) {
	f := setupTestRoom(t, 2, nil)
	ctx := context.Background()

	require.NoError(t, f.engine.StartQuestion(ctx, f.code, f.host.UserID))

	r := f.room(t)
	assert.Equal(t, models.StatusQuestionActive, r.Game.Status)
	require.NotNil(t, r.Game.CurrentQuestion)
	require.NotNil(t, r.Game.ActiveWindow)
	assert.True(t, r.Game.ActiveWindow.IsDirectQuestion)
	assert.Equal(t, r.Game.RoundStartIdx, r.Game.ActiveWindow.SeatIdx)
	assert.Equal(t, r.Game.TurnOwnerIdx, r.Game.ActiveWindow.SeatIdx)
	assert.Equal(t, r.Settings.DirectSeconds, r.Game.ActiveWindow.Seconds)
	assert.Equal(t, 1, r.Game.TotalQuestionsAsked)

	assert.NotNil(t, f.mb.lastOfType(EventQuestionStarted))
	// the broadcast view must not leak the answer
	ev := f.mb.lastOfType(EventGameState)
	require.NotNil(t, ev)
	require.NotNil(t, ev.Game.Question)
	assert.Empty(t, ev.Game.Question.Answer)
}

func TestStartQuestionRejectsNonHost(t *testing.T) {
	f := setupTestRoom(t, 2, nil)
	err := f.engine.StartQuestion(context.Background(), f.code, f.players[0].UserID)
	var aErr *AuthorizationError
	assert.ErrorAs(t, err, &aErr)
}

// Direct window expires untouched: the next seat's first pass window gets
// PassSeconds plus the (zero) remainder, flagged as first pass.
func TestDirectExpiryPassesTurn(t *testing.T) {
	f := setupTestRoom(t, 2, nil)
	ctx := context.Background()
	require.NoError(t, f.engine.StartQuestion(ctx, f.code, f.host.UserID))
	firstOwner := f.room(t).Game.TurnOwnerIdx

	f.rewindWindow(t, 0)
	f.engine.expireWindow(f.code, f.currentSeq())

	r := f.room(t)
	assert.Equal(t, models.StatusQuestionActive, r.Game.Status)
	assert.NotEqual(t, firstOwner, r.Game.TurnOwnerIdx)
	require.NotNil(t, r.Game.ActiveWindow)
	assert.False(t, r.Game.ActiveWindow.IsDirectQuestion)
	assert.True(t, r.Game.ActiveWindow.IsFirstPass)
	assert.Equal(t, r.Settings.PassSeconds, r.Game.ActiveWindow.Seconds)
	assert.NotNil(t, f.mb.lastOfType(EventTurnAdvanced))
}

// An incorrect verdict mid-direct-window credits the unused remainder to the
// first pass window.
func TestFirstPassInheritsDirectRemainder(t *testing.T) {
	f := setupTestRoom(t, 2, nil)
	ctx := context.Background()
	require.NoError(t, f.engine.StartQuestion(ctx, f.code, f.host.UserID))

	owner := f.room(t).Game.ActiveWindow.SeatIdx
	ownerID := f.seatUser(t, owner)
	guess, err := f.engine.SubmitAnswer(ctx, f.code, ownerID, "wrong", models.OriginText)
	require.NoError(t, err)

	// pretend 30 seconds were left on the direct clock at decision time
	r := f.room(t)
	r.Game.ActiveWindow.EndsAt = time.Now().Add(30 * time.Second)
	require.NoError(t, f.store.Save(ctx, r))

	require.NoError(t, f.engine.JudgeAnswer(ctx, f.code, f.host.UserID, guess.ID, models.DecisionIncorrect, nil))

	r = f.room(t)
	require.NotNil(t, r.Game.ActiveWindow)
	assert.True(t, r.Game.ActiveWindow.IsFirstPass)
	assert.Equal(t, r.Settings.PassSeconds+30, r.Game.ActiveWindow.Seconds)
	assert.Nil(t, r.Game.PendingGuess)
}

func TestSubmitAnswerRecordsPendingGuess(t *testing.T) {
	f := setupTestRoom(t, 2, nil)
	ctx := context.Background()
	require.NoError(t, f.engine.StartQuestion(ctx, f.code, f.host.UserID))

	owner := f.room(t).Game.ActiveWindow.SeatIdx
	ownerID := f.seatUser(t, owner)
	guess, err := f.engine.SubmitAnswer(ctx, f.code, ownerID, "New Atlantis City", models.OriginText)
	require.NoError(t, err)

	assert.Equal(t, models.VerdictCorrect, guess.LocalVerdict)
	r := f.room(t)
	require.NotNil(t, r.Game.PendingGuess)
	assert.Equal(t, guess.ID, r.Game.PendingGuess.ID)
	// submission never advances anything on its own
	assert.Equal(t, models.StatusQuestionActive, r.Game.Status)
	assert.Equal(t, owner, r.Game.TurnOwnerIdx)
	assert.NotNil(t, f.mb.lastOfType(EventAnswerSubmitted))
}

func TestSubmitAnswerRejectsWrongSeatAndDeadline(t *testing.T) {
	f := setupTestRoom(t, 2, nil)
	ctx := context.Background()
	require.NoError(t, f.engine.StartQuestion(ctx, f.code, f.host.UserID))

	owner := f.room(t).Game.ActiveWindow.SeatIdx
	var other models.Identity
	for _, p := range f.players {
		if f.seatIdx(t, p.UserID) != owner {
			other = p
			break
		}
	}
	_, err := f.engine.SubmitAnswer(ctx, f.code, other.UserID, "x", models.OriginText)
	var aErr *AuthorizationError
	assert.ErrorAs(t, err, &aErr)

	f.rewindWindow(t, -time.Second)
	_, err = f.engine.SubmitAnswer(ctx, f.code, f.seatUser(t, owner), "x", models.OriginText)
	assert.ErrorIs(t, err, ErrTurnExpired)
}

// The timer loses the race against a submitted answer: once the guess is
// pending, a stale expiry fire must not advance the turn.
func TestStaleExpiryAfterSubmitIsNoop(t *testing.T) {
	f := setupTestRoom(t, 2, nil)
	ctx := context.Background()
	require.NoError(t, f.engine.StartQuestion(ctx, f.code, f.host.UserID))

	staleSeq := f.currentSeq()
	owner := f.room(t).Game.ActiveWindow.SeatIdx
	_, err := f.engine.SubmitAnswer(ctx, f.code, f.seatUser(t, owner), "wrong", models.OriginText)
	require.NoError(t, err)

	f.mb.clear()
	f.engine.expireWindow(f.code, staleSeq)

	r := f.room(t)
	assert.Equal(t, owner, r.Game.TurnOwnerIdx)
	require.NotNil(t, r.Game.PendingGuess)
	assert.Equal(t, 0, f.mb.countOfType(EventTurnAdvanced))
	assert.Equal(t, 0, f.mb.countOfType(EventQuestionUnsolved))
}

func TestJudgeCorrectAwardsPointsAndClosesRound(t *testing.T) {
	f := setupTestRoom(t, 2, nil)
	ctx := context.Background()
	require.NoError(t, f.engine.StartQuestion(ctx, f.code, f.host.UserID))

	owner := f.room(t).Game.ActiveWindow.SeatIdx
	ownerID := f.seatUser(t, owner)
	guess, err := f.engine.SubmitAnswer(ctx, f.code, ownerID, "new atlantis city", models.OriginText)
	require.NoError(t, err)

	require.NoError(t, f.engine.JudgeAnswer(ctx, f.code, f.host.UserID, guess.ID, models.DecisionCorrect, nil))

	r := f.room(t)
	assert.Equal(t, models.StatusOpenFloor, r.Game.Status)
	assert.True(t, r.Game.HintRevealed)
	assert.Nil(t, r.Game.ActiveWindow)
	assert.Nil(t, r.Game.PendingGuess)
	assert.Equal(t, r.Settings.PointsPerQuestion, r.Game.Scores[ownerID])

	ev := f.mb.lastOfType(EventQuestionSolved)
	require.NotNil(t, ev)
	assert.Equal(t, r.Settings.PointsPerQuestion, ev.Guess.PointsAwarded)
	// the answer is broadcast once the round resolves
	state := f.mb.lastOfType(EventGameState)
	require.NotNil(t, state)
	require.NotNil(t, state.Game.Question)
	assert.NotEmpty(t, state.Game.Question.Answer)
}

func TestJudgePartialClampsPoints(t *testing.T) {
	f := setupTestRoom(t, 2, nil)
	ctx := context.Background()
	require.NoError(t, f.engine.StartQuestion(ctx, f.code, f.host.UserID))

	owner := f.room(t).Game.ActiveWindow.SeatIdx
	ownerID := f.seatUser(t, owner)
	guess, err := f.engine.SubmitAnswer(ctx, f.code, ownerID, "atlantis", models.OriginText)
	require.NoError(t, err)

	over := 999
	require.NoError(t, f.engine.JudgeAnswer(ctx, f.code, f.host.UserID, guess.ID, models.DecisionPartial, &over))

	r := f.room(t)
	assert.Equal(t, r.Settings.PointsPerQuestion, r.Game.Scores[ownerID])
	// partial still advances the turn
	assert.Equal(t, models.StatusQuestionActive, r.Game.Status)
	assert.NotEqual(t, owner, r.Game.TurnOwnerIdx)
}

func TestJudgeRejectsNonHostAndStaleGuess(t *testing.T) {
	f := setupTestRoom(t, 2, nil)
	ctx := context.Background()
	require.NoError(t, f.engine.StartQuestion(ctx, f.code, f.host.UserID))

	owner := f.room(t).Game.ActiveWindow.SeatIdx
	guess, err := f.engine.SubmitAnswer(ctx, f.code, f.seatUser(t, owner), "wrong", models.OriginText)
	require.NoError(t, err)

	var aErr *AuthorizationError
	err = f.engine.JudgeAnswer(ctx, f.code, f.players[0].UserID, guess.ID, models.DecisionCorrect, nil)
	assert.ErrorAs(t, err, &aErr)

	var vErr *ValidationError
	err = f.engine.JudgeAnswer(ctx, f.code, f.host.UserID, uuid.New(), models.DecisionCorrect, nil)
	assert.ErrorAs(t, err, &vErr)
}

// Every answer seat misses in turn; when the rotation returns to the starter
// the round closes unsolved with the hint revealed.
func TestRoundClosesUnsolvedAfterFullRotation(t *testing.T) {
	f := setupTestRoom(t, 3, nil)
	ctx := context.Background()
	require.NoError(t, f.engine.StartQuestion(ctx, f.code, f.host.UserID))

	// three answer seats: start seat + two passes, then round complete
	for i := 0; i < 2; i++ {
		f.rewindWindow(t, 0)
		f.engine.expireWindow(f.code, f.currentSeq())
		r := f.room(t)
		require.Equal(t, models.StatusQuestionActive, r.Game.Status, "pass %d", i+1)
	}
	f.rewindWindow(t, 0)
	f.engine.expireWindow(f.code, f.currentSeq())

	r := f.room(t)
	assert.Equal(t, models.StatusOpenFloor, r.Game.Status)
	assert.True(t, r.Game.HintRevealed)
	assert.Nil(t, r.Game.ActiveWindow)
	assert.NotNil(t, f.mb.lastOfType(EventQuestionUnsolved))
}

func TestNextQuestionRotatesRoundStart(t *testing.T) {
	f := setupTestRoom(t, 2, nil)
	ctx := context.Background()
	require.NoError(t, f.engine.StartQuestion(ctx, f.code, f.host.UserID))

	firstQ := *f.room(t).Game.CurrentQuestionID
	firstStart := f.room(t).Game.RoundStartIdx

	owner := f.room(t).Game.ActiveWindow.SeatIdx
	guess, err := f.engine.SubmitAnswer(ctx, f.code, f.seatUser(t, owner), "new atlantis city", models.OriginText)
	require.NoError(t, err)
	require.NoError(t, f.engine.JudgeAnswer(ctx, f.code, f.host.UserID, guess.ID, models.DecisionCorrect, nil))

	require.NoError(t, f.engine.NextQuestion(ctx, f.code, f.host.UserID))

	r := f.room(t)
	assert.Equal(t, models.StatusOpenFloor, r.Game.Status)
	require.NotNil(t, r.Game.CurrentQuestionID)
	assert.NotEqual(t, firstQ, *r.Game.CurrentQuestionID)
	assert.NotEqual(t, firstStart, r.Game.RoundStartIdx)
	assert.Equal(t, r.Game.RoundStartIdx, r.Game.TurnOwnerIdx)
	assert.False(t, r.Game.HintRevealed)
	assert.Equal(t, 2, r.Game.TotalQuestionsAsked)
	assert.True(t, r.Game.InHistory(firstQ))
}

func TestGameEndsAtQuestionTarget(t *testing.T) {
	f := setupTestRoom(t, 2, nil)
	ctx := context.Background()

	// burn through all three questions
	for i := 0; i < 3; i++ {
		require.NoError(t, f.engine.StartQuestion(ctx, f.code, f.host.UserID))
		owner := f.room(t).Game.ActiveWindow.SeatIdx
		guess, err := f.engine.SubmitAnswer(ctx, f.code, f.seatUser(t, owner), "new atlantis city", models.OriginText)
		require.NoError(t, err)
		require.NoError(t, f.engine.JudgeAnswer(ctx, f.code, f.host.UserID, guess.ID, models.DecisionCorrect, nil))
		if i < 2 {
			require.NoError(t, f.engine.NextQuestion(ctx, f.code, f.host.UserID))
		}
	}

	require.NoError(t, f.engine.NextQuestion(ctx, f.code, f.host.UserID))

	_, err := f.store.Load(ctx, f.code)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.NotNil(t, f.mb.lastOfType(EventGameEnded))
}

func TestHostDisconnectPausesAndRejoinResumes(t *testing.T) {
	f := setupTestRoom(t, 2, nil)
	ctx := context.Background()
	require.NoError(t, f.engine.StartQuestion(ctx, f.code, f.host.UserID))

	f.engine.Disconnect(ctx, f.code, f.host.UserID)

	r := f.room(t)
	assert.Equal(t, models.StatusPaused, r.Game.Status)
	require.NotNil(t, r.Game.ActiveWindow)
	frozen := r.Game.ActiveWindow.Seconds
	assert.Greater(t, frozen, 0)
	assert.NotNil(t, f.mb.lastOfType(EventGamePaused))

	// a stale timer fire while paused is a no-op
	f.engine.expireWindow(f.code, f.currentSeq())
	assert.Equal(t, models.StatusPaused, f.room(t).Game.Status)

	_, err := f.engine.Join(ctx, f.code, f.host)
	require.NoError(t, err)

	r = f.room(t)
	assert.Equal(t, models.StatusQuestionActive, r.Game.Status)
	require.NotNil(t, r.Game.ActiveWindow)
	assert.WithinDuration(t, time.Now().Add(time.Duration(frozen)*time.Second), r.Game.ActiveWindow.EndsAt, 2*time.Second)
}

func TestPlayerDisconnectInLobbyFreesSeat(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(NewMemoryStore(), newStubQuestions(5), nil, nil, oracle.LocalVerdict)
	host := models.Identity{UserID: uuid.New(), Username: "Host"}
	r, err := e.CreateRoom(ctx, host, models.DefaultRoomSettings())
	require.NoError(t, err)

	player := models.Identity{UserID: uuid.New(), Username: "P"}
	_, err = e.AddSeat(ctx, r.Code, player)
	require.NoError(t, err)
	_, err = e.Join(ctx, r.Code, player)
	require.NoError(t, err)

	e.Disconnect(ctx, r.Code, player.UserID)

	got, err := e.store.Load(ctx, r.Code)
	require.NoError(t, err)
	assert.Nil(t, got.SeatForUser(player.UserID))

	// host leaving the lobby ends the room
	e.Disconnect(ctx, r.Code, host.UserID)
	_, err = e.store.Load(ctx, r.Code)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestOracleUpgradesPendingVerdict(t *testing.T) {
	f := setupTestRoom(t, 2, nil)
	f.engine.oracle = &stubOracle{verdict: models.VerdictCorrect}
	ctx := context.Background()
	require.NoError(t, f.engine.StartQuestion(ctx, f.code, f.host.UserID))

	owner := f.room(t).Game.ActiveWindow.SeatIdx
	guess, err := f.engine.SubmitAnswer(ctx, f.code, f.seatUser(t, owner), "some wild guess", models.OriginText)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictCold, guess.LocalVerdict)

	require.Eventually(t, func() bool {
		pg := f.room(t).Game.PendingGuess
		return pg != nil && pg.OracleVerdict != nil
	}, 2*time.Second, 10*time.Millisecond)

	pg := f.room(t).Game.PendingGuess
	assert.Equal(t, models.VerdictCorrect, pg.FinalVerdict)
	assert.GreaterOrEqual(t, f.mb.countOfType(EventAnswerSubmitted), 2)
}

func TestOracleFailureKeepsLocalVerdict(t *testing.T) {
	f := setupTestRoom(t, 2, nil)
	f.engine.oracle = &stubOracle{delay: 5 * time.Second, verdict: models.VerdictCorrect}
	f.engine.OracleTimeout = 50 * time.Millisecond
	ctx := context.Background()
	require.NoError(t, f.engine.StartQuestion(ctx, f.code, f.host.UserID))

	owner := f.room(t).Game.ActiveWindow.SeatIdx
	_, err := f.engine.SubmitAnswer(ctx, f.code, f.seatUser(t, owner), "some wild guess", models.OriginText)
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	pg := f.room(t).Game.PendingGuess
	require.NotNil(t, pg)
	assert.Nil(t, pg.OracleVerdict)
	assert.Equal(t, models.VerdictCold, pg.FinalVerdict)
}

func TestUpdateRetriesOnVersionConflict(t *testing.T) {
	f := setupTestRoom(t, 2, nil)
	ctx := context.Background()

	calls := 0
	_, err := f.engine.update(ctx, f.code, func(r *models.Room) error {
		calls++
		if calls == 1 {
			// sneak a concurrent save in between load and save
			other, loadErr := f.store.Load(ctx, f.code)
			require.NoError(t, loadErr)
			require.NoError(t, f.store.Save(ctx, other))
		}
		r.Game.HintRevealed = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, f.room(t).Game.HintRevealed)
}

func (f *testFixture) seatIdx(t *testing.T, userID uuid.UUID) int {
	t.Helper()
	seat := f.room(t).SeatForUser(userID)
	require.NotNil(t, seat)
	return seat.SeatIdx
}

func (f *testFixture) seatUser(t *testing.T, seatIdx int) uuid.UUID {
	t.Helper()
	seat := f.room(t).SeatAt(seatIdx)
	require.NotNil(t, seat)
	return seat.UserID
}
