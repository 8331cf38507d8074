// internal/database/question.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/parlorgames/trivia/internal/models"
)

// PgQuestionSource draws approved questions from Postgres. Implements
// room.QuestionSource.
//
// Schema:
//
//	CREATE TABLE questions (
//	    id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//	    text          TEXT NOT NULL,
//	    answer        TEXT NOT NULL,
//	    hint          TEXT NOT NULL DEFAULT '',
//	    images        TEXT[] NOT NULL DEFAULT '{}',
//	    answer_images TEXT[] NOT NULL DEFAULT '{}',
//	    approved      BOOLEAN NOT NULL DEFAULT FALSE
//	);
type PgQuestionSource struct{}

func NewQuestionSource() *PgQuestionSource {
	return &PgQuestionSource{}
}

// DrawRandomApproved picks a uniformly random approved question whose id is
// not in excludeIDs. Returns (nil, nil) when none remain.
func (s *PgQuestionSource) DrawRandomApproved(ctx context.Context, excludeIDs []uuid.UUID) (*models.Question, error) {
	exclude := excludeIDs
	if exclude == nil {
		exclude = []uuid.UUID{}
	}
	var q models.Question
	err := DB.QueryRow(ctx, `
		SELECT id, text, answer, hint, images, answer_images
		FROM questions
		WHERE approved = TRUE AND NOT (id = ANY($1))
		ORDER BY random()
		LIMIT 1
	`, exclude).Scan(&q.ID, &q.Text, &q.Answer, &q.Hint, &q.Images, &q.AnswerImages)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("draw question: %w", err)
	}
	q.Approved = true
	return &q, nil
}

// InsertQuestion adds a question to the pool (seeding/admin tooling).
func InsertQuestion(ctx context.Context, q *models.Question) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	_, err := DB.Exec(ctx, `
		INSERT INTO questions (id, text, answer, hint, images, answer_images, approved)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, q.ID, q.Text, q.Answer, q.Hint, q.Images, q.AnswerImages, q.Approved)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}
