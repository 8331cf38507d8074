// internal/models/question.go
package models

import "github.com/google/uuid"

// Question is one approved trivia question with its canonical answer and hint.
// Answer, AnswerImages and Hint must never reach clients before the round
// resolves; the projector enforces that.
type Question struct {
	ID           uuid.UUID `json:"id"`
	Text         string    `json:"text"`
	Answer       string    `json:"answer"`
	Hint         string    `json:"hint"`
	Images       []string  `json:"images,omitempty"`
	AnswerImages []string  `json:"answer_images,omitempty"`
	Approved     bool      `json:"approved"`
}
