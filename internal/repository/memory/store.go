// Package memory is an in-process credential store for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-auth/internal/domain"
)

// Store keeps users and tokens in maps guarded by a single mutex.
type Store struct {
	mu      sync.Mutex
	users   map[uuid.UUID]domain.User
	byEmail map[string]uuid.UUID
	tokens  map[string]domain.Token // keyed by token hash
	now     func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:   make(map[uuid.UUID]domain.User),
		byEmail: make(map[string]uuid.UUID),
		tokens:  make(map[string]domain.Token),
		now:     time.Now,
	}
}

func (s *Store) CreateUser(ctx context.Context, u domain.NewUser) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[u.Email]; ok {
		return nil, domain.ErrDuplicateEmail
	}
	now := s.now().UTC()
	user := domain.User{
		ID:           uuid.New(),
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[user.ID] = user
	s.byEmail[user.Email] = user.ID
	return &user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	user := s.users[id]
	return &user, nil
}

func (s *Store) MarkUserVerified(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	user.Verified = true
	user.UpdatedAt = s.now().UTC()
	s.users[id] = user
	return &user, nil
}

func (s *Store) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = s.now().UTC()
	s.users[id] = user
	return nil
}

func (s *Store) CreateToken(ctx context.Context, t *domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertToken(t)
}

func (s *Store) ReplaceTokens(ctx context.Context, t *domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, existing := range s.tokens {
		if existing.UserID == t.UserID {
			delete(s.tokens, hash)
		}
	}
	return s.insertToken(t)
}

func (s *Store) insertToken(t *domain.Token) error {
	if _, ok := s.users[t.UserID]; !ok {
		return domain.ErrUserNotFound
	}
	s.tokens[t.TokenHash] = *t
	return nil
}

func (s *Store) ConsumeToken(ctx context.Context, tokenHash string, typ domain.TokenType, now time.Time) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[tokenHash]
	if !ok || !t.Consumable(typ, now) {
		return uuid.Nil, domain.ErrInvalidOrExpiredToken
	}
	t.Used = true
	s.tokens[tokenHash] = t
	return t.UserID, nil
}

func (s *Store) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, t := range s.tokens {
		if t.ExpiresAt.Before(before) {
			delete(s.tokens, hash)
			n++
		}
	}
	return n, nil
}

// TokensFor returns a copy of the tokens stored for userID.
func (s *Store) TokensFor(userID uuid.UUID) []domain.Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Token
	for _, t := range s.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

// Migrate is a no-op.
func (s *Store) Migrate(ctx context.Context) error { return nil }

// MigrationStatus is a no-op.
func (s *Store) MigrationStatus(ctx context.Context) error { return nil }

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }
