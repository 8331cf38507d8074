// internal/handlers/identity.go
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/parlorgames/trivia/internal/auth"
	"github.com/parlorgames/trivia/internal/models"
)

// EnsureIdentity resolves the caller's identity from the auth_token cookie.
// A caller without a valid token gets a fresh guest identity minted on the
// spot and set as a cookie, so joining a room never requires signup.
func EnsureIdentity(w http.ResponseWriter, r *http.Request) (models.Identity, error) {
	cookieHeader := r.Header.Get("Cookie")
	if strings.Contains(cookieHeader, "auth_token=") {
		token := extractCookieToken(cookieHeader, "auth_token")
		identity, err := auth.AuthenticateJWT(token)
		if err == nil {
			if name := r.URL.Query().Get("name"); name != "" {
				identity.Username = name
			}
			return identity, nil
		}
		// fall through to a fresh guest identity
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "Guest"
	}
	identity := models.Identity{
		UserID:   uuid.New(),
		Username: name,
		Role:     "player",
	}
	token, err := auth.CreateJWT(identity)
	if err != nil {
		return models.Identity{}, fmt.Errorf("failed to create guest JWT: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	return identity, nil
}
