package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-auth/internal/domain"
)

func newUser(t *testing.T, s *Store, email string) *domain.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), domain.NewUser{Username: "alice", Email: email, PasswordHash: "h"})
	require.NoError(t, err)
	return u
}

func TestCreateUser_Duplicate(t *testing.T) {
	s := New()
	u := newUser(t, s, "a@example.com")
	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.False(t, u.Verified)

	_, err := s.CreateUser(context.Background(), domain.NewUser{Username: "bob", Email: "a@example.com"})
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
}

func TestGetUser_NotFound(t *testing.T) {
	s := New()
	_, err := s.GetUserByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	_, err = s.GetUserByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestMarkVerifiedAndUpdatePassword(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := newUser(t, s, "a@example.com")

	got, err := s.MarkUserVerified(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Verified)

	require.NoError(t, s.UpdatePassword(ctx, u.ID, "h2"))
	got, err = s.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.PasswordHash)
	assert.True(t, got.Verified)
}

func TestConsumeToken(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := newUser(t, s, "a@example.com")
	now := time.Now()

	tok := &domain.Token{ID: uuid.New(), UserID: u.ID, TokenHash: "hash", Type: domain.TokenTypeEmailVerify, ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, s.CreateToken(ctx, tok))

	_, err := s.ConsumeToken(ctx, "hash", domain.TokenTypePasswordReset, now)
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredToken, "wrong type")

	_, err = s.ConsumeToken(ctx, "hash", domain.TokenTypeEmailVerify, now.Add(2*time.Minute))
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredToken, "expired")

	id, err := s.ConsumeToken(ctx, "hash", domain.TokenTypeEmailVerify, now)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	_, err = s.ConsumeToken(ctx, "hash", domain.TokenTypeEmailVerify, now)
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredToken, "already used")
}

func TestConsumeToken_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := newUser(t, s, "a@example.com")
	now := time.Now()
	require.NoError(t, s.CreateToken(ctx, &domain.Token{ID: uuid.New(), UserID: u.ID, TokenHash: "hash", Type: domain.TokenTypePasswordReset, ExpiresAt: now.Add(time.Minute)}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ConsumeToken(ctx, "hash", domain.TokenTypePasswordReset, now); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestReplaceTokens(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := newUser(t, s, "a@example.com")
	exp := time.Now().Add(time.Minute)

	require.NoError(t, s.CreateToken(ctx, &domain.Token{ID: uuid.New(), UserID: u.ID, TokenHash: "old1", Type: domain.TokenTypeEmailVerify, ExpiresAt: exp}))
	require.NoError(t, s.CreateToken(ctx, &domain.Token{ID: uuid.New(), UserID: u.ID, TokenHash: "old2", Type: domain.TokenTypePasswordReset, ExpiresAt: exp}))
	require.NoError(t, s.ReplaceTokens(ctx, &domain.Token{ID: uuid.New(), UserID: u.ID, TokenHash: "new", Type: domain.TokenTypeEmailVerify, ExpiresAt: exp}))

	tokens := s.TokensFor(u.ID)
	require.Len(t, tokens, 1)
	assert.Equal(t, "new", tokens[0].TokenHash)
}

func TestDeleteExpiredTokens(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := newUser(t, s, "a@example.com")
	now := time.Now()

	require.NoError(t, s.CreateToken(ctx, &domain.Token{ID: uuid.New(), UserID: u.ID, TokenHash: "stale", Type: domain.TokenTypeEmailVerify, ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, s.CreateToken(ctx, &domain.Token{ID: uuid.New(), UserID: u.ID, TokenHash: "fresh", Type: domain.TokenTypeEmailVerify, ExpiresAt: now.Add(time.Minute)}))

	n, err := s.DeleteExpiredTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, s.TokensFor(u.ID), 1)
}
