package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents the account.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser holds the fields the caller supplies when creating an account.
// The store assigns the ID and timestamps.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
}
