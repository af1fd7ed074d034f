package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-auth/internal/domain"
)

// UserStore persists accounts. CreateUser returns domain.ErrDuplicateEmail
// when the unique email constraint rejects the insert; lookups return
// domain.ErrUserNotFound.
type UserStore interface {
	CreateUser(ctx context.Context, u domain.NewUser) (*domain.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	MarkUserVerified(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// TokenStore persists single-use tokens.
type TokenStore interface {
	CreateToken(ctx context.Context, t *domain.Token) error
	// ReplaceTokens deletes every token of t.UserID and inserts t in one transaction.
	ReplaceTokens(ctx context.Context, t *domain.Token) error
	// ConsumeToken atomically marks the matching unused, unexpired token as used
	// and returns its owner. Returns domain.ErrInvalidOrExpiredToken otherwise.
	ConsumeToken(ctx context.Context, tokenHash string, typ domain.TokenType, now time.Time) (uuid.UUID, error)
	DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}

// Store is the credential store.
type Store interface {
	UserStore
	TokenStore
}
