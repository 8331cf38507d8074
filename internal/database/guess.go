// internal/database/guess.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/parlorgames/trivia/internal/models"
)

// PgGuessLog is the durable audit trail of submitted answers and their
// adjudications. Implements room.GuessLog.
//
// Schema:
//
//	CREATE TABLE guesses (
//	    id             UUID PRIMARY KEY,
//	    room_code      TEXT NOT NULL,
//	    question_id    UUID NOT NULL,
//	    user_id        UUID NOT NULL,
//	    seat_idx       INT NOT NULL,
//	    text           TEXT NOT NULL,
//	    origin         TEXT NOT NULL,
//	    local_verdict  TEXT NOT NULL,
//	    oracle_verdict TEXT,
//	    final_verdict  TEXT NOT NULL,
//	    host_decision  TEXT,
//	    decided_by     UUID,
//	    points_awarded INT NOT NULL DEFAULT 0,
//	    window_seconds INT NOT NULL,
//	    submitted_at   TIMESTAMPTZ NOT NULL
//	);
type PgGuessLog struct{}

func NewGuessLog() *PgGuessLog {
	return &PgGuessLog{}
}

func (l *PgGuessLog) InsertGuess(ctx context.Context, g *models.Guess) error {
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, `
			INSERT INTO guesses
				(id, room_code, question_id, user_id, seat_idx, text, origin,
				 local_verdict, oracle_verdict, final_verdict, host_decision,
				 decided_by, points_awarded, window_seconds, submitted_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
			ON CONFLICT (id) DO NOTHING
		`, g.ID, g.RoomCode, g.QuestionID, g.UserID, g.SeatIdx, g.Text, g.Origin,
			g.LocalVerdict, g.OracleVerdict, g.FinalVerdict, g.HostDecision,
			g.DecidedBy, g.PointsAwarded, g.WindowSeconds, g.SubmittedAt)
		return e
	})
	if err != nil {
		return fmt.Errorf("insert guess %s: %w", g.ID, err)
	}
	return nil
}

func (l *PgGuessLog) UpdateGuessVerdict(ctx context.Context, id uuid.UUID, oracle, final models.Verdict) error {
	_, err := DB.Exec(ctx, `
		UPDATE guesses SET oracle_verdict = $1, final_verdict = $2 WHERE id = $3
	`, oracle, final, id)
	if err != nil {
		return fmt.Errorf("update guess %s verdict: %w", id, err)
	}
	return nil
}

func (l *PgGuessLog) UpdateGuessDecision(ctx context.Context, id uuid.UUID, decision models.HostDecision, decidedBy uuid.UUID, points int) error {
	_, err := DB.Exec(ctx, `
		UPDATE guesses SET host_decision = $1, decided_by = $2, points_awarded = $3 WHERE id = $4
	`, decision, decidedBy, points, id)
	if err != nil {
		return fmt.Errorf("update guess %s decision: %w", id, err)
	}
	return nil
}
