// internal/oracle/local.go
package oracle

import (
	"strings"
	"unicode"

	"github.com/parlorgames/trivia/internal/models"
)

// LocalVerdict grades a guess against the canonical answer without any
// external service. Pure and total: normalized exact match is correct,
// otherwise the verdict follows the share of answer tokens present in the
// guess. Used both as the immediate verdict on submission and as the fallback
// when the oracle is down.
func LocalVerdict(canonicalAnswer, guessText string) models.Verdict {
	answer := normalize(canonicalAnswer)
	guess := normalize(guessText)
	if answer == "" || guess == "" {
		return models.VerdictCold
	}
	if answer == guess {
		return models.VerdictCorrect
	}

	answerTokens := strings.Fields(answer)
	guessSet := make(map[string]struct{})
	for _, t := range strings.Fields(guess) {
		guessSet[t] = struct{}{}
	}
	matched := 0
	for _, t := range answerTokens {
		if _, ok := guessSet[t]; ok {
			matched++
		}
	}
	ratio := float64(matched) / float64(len(answerTokens))
	switch {
	case ratio >= 0.5:
		return models.VerdictHot
	case ratio > 0:
		return models.VerdictWarm
	default:
		return models.VerdictCold
	}
}

// normalize lowercases, strips everything but letters, digits and spaces, and
// collapses runs of whitespace.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_':
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
