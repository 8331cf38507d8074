// internal/oracle/client.go
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/parlorgames/trivia/internal/models"
)

// Client talks to the external answer-validation service. Every call carries
// a hard timeout; callers must treat failures as "no opinion" and fall back
// to the deterministic verdict.
type Client struct {
	BaseURL string
	APIKey  string
	http    *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type validateRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Guess    string `json:"guess"`
}

type validateResponse struct {
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"`
}

// Validate asks the service to grade guessText against the canonical answer.
func (c *Client) Validate(ctx context.Context, questionText, canonicalAnswer, guessText string) (models.Verdict, float64, error) {
	if c.BaseURL == "" {
		return "", 0, errors.New("oracle base URL not configured")
	}
	b, _ := json.Marshal(validateRequest{
		Question: questionText,
		Answer:   canonicalAnswer,
		Guess:    guessText,
	})
	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/validate", bytes.NewReader(b))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", 0, fmt.Errorf("oracle status %d", resp.StatusCode)
	}
	var out validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, err
	}
	verdict := models.Verdict(strings.ToLower(strings.TrimSpace(out.Verdict)))
	if !models.ValidVerdict(verdict) {
		return "", 0, fmt.Errorf("oracle returned unknown verdict %q", out.Verdict)
	}
	return verdict, out.Confidence, nil
}
