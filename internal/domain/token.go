package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenType distinguishes what a single-use token may be consumed for.
type TokenType string

const (
	TokenTypeEmailVerify   TokenType = "EMAIL_VERIFY"
	TokenTypePasswordReset TokenType = "PASSWORD_RESET"
)

// Valid reports whether t is a known token type.
func (t TokenType) Valid() bool {
	return t == TokenTypeEmailVerify || t == TokenTypePasswordReset
}

// Token is a stored single-use token. Only the hash of the raw value is kept.
type Token struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	Type      TokenType
	Used      bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Consumable reports whether the token can still be consumed for typ at now.
func (t *Token) Consumable(typ TokenType, now time.Time) bool {
	return !t.Used && t.Type == typ && now.Before(t.ExpiresAt)
}
