package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-auth/internal/domain"
)

const (
	// rawTokenLen is 256 bits of entropy.
	rawTokenLen = 32

	DefaultTokenTTL = 15 * time.Minute
)

// GenerateToken returns n random bytes encoded for use in a URL path.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken returns the hex SHA-256 of a raw token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenService issues and consumes opaque single-use tokens.
type TokenService struct {
	store TokenStore
	Now   func() time.Time
}

// NewTokenService creates a new token service.
func NewTokenService(store TokenStore) *TokenService {
	return &TokenService{store: store, Now: time.Now}
}

// Issue stores a new token for userID and returns the raw value.
func (s *TokenService) Issue(ctx context.Context, userID uuid.UUID, typ domain.TokenType, ttl time.Duration) (string, error) {
	raw, t, err := s.newToken(userID, typ, ttl)
	if err != nil {
		return "", err
	}
	if err := s.store.CreateToken(ctx, t); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return raw, nil
}

// Reissue is like Issue but first removes every existing token of the user.
func (s *TokenService) Reissue(ctx context.Context, userID uuid.UUID, typ domain.TokenType, ttl time.Duration) (string, error) {
	raw, t, err := s.newToken(userID, typ, ttl)
	if err != nil {
		return "", err
	}
	if err := s.store.ReplaceTokens(ctx, t); err != nil {
		return "", fmt.Errorf("replace tokens: %w", err)
	}
	return raw, nil
}

// Consume marks the token as used and returns its owner. A token that is
// unknown, expired, already used or of another type yields
// domain.ErrInvalidOrExpiredToken.
func (s *TokenService) Consume(ctx context.Context, raw string, typ domain.TokenType) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, domain.ErrInvalidOrExpiredToken
	}
	return s.store.ConsumeToken(ctx, HashToken(raw), typ, s.Now())
}

func (s *TokenService) newToken(userID uuid.UUID, typ domain.TokenType, ttl time.Duration) (string, *domain.Token, error) {
	if !typ.Valid() {
		return "", nil, fmt.Errorf("unknown token type %q", typ)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	raw, err := GenerateToken(rawTokenLen)
	if err != nil {
		return "", nil, err
	}
	now := s.Now()
	return raw, &domain.Token{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: HashToken(raw),
		Type:      typ,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}
