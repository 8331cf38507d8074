package models

import "github.com/google/uuid"

// Identity is the authenticated caller of an inbound connection, resolved once
// at connect time. Issuance and account management live in a separate service.
type Identity struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
}
