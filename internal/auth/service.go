package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-auth/internal/domain"
)

// Mailer delivers the account emails carrying raw tokens.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, user *domain.User, token string) error
	SendPasswordResetEmail(ctx context.Context, user *domain.User, token string) error
}

// Recorder counts operation outcomes.
type Recorder interface {
	RecordAuthOperation(operation, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAuthOperation(string, string) {}

// Operation names reported to the Recorder.
const (
	OpSignup                = "signup"
	OpVerifyEmail           = "verify_email"
	OpRequestPasswordReset  = "request_password_reset"
	OpCompletePasswordReset = "complete_password_reset"
	OpSignupMail            = "signup_mail"
)

// ServiceConfig holds credential flow settings.
type ServiceConfig struct {
	EmailVerifyTTL   time.Duration
	PasswordResetTTL time.Duration
}

// Service implements the signup, email verification and password reset flows.
type Service struct {
	store    Store
	tokens   *TokenService
	sessions *SessionService
	hasher   Hasher
	mailer   Mailer
	recorder Recorder
	config   ServiceConfig
	logger   *slog.Logger
}

// NewService creates a new credential service.
func NewService(store Store, tokens *TokenService, sessions *SessionService, hasher Hasher, mailer Mailer, config ServiceConfig, logger *slog.Logger) *Service {
	if config.EmailVerifyTTL <= 0 {
		config.EmailVerifyTTL = DefaultTokenTTL
	}
	if config.PasswordResetTTL <= 0 {
		config.PasswordResetTTL = DefaultTokenTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		tokens:   tokens,
		sessions: sessions,
		hasher:   hasher,
		mailer:   mailer,
		recorder: nopRecorder{},
		config:   config,
		logger:   logger,
	}
}

// SetRecorder installs a metrics recorder.
func (s *Service) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	s.recorder = r
}

// Signup registers a new unverified user and mails a verification link.
// A mail failure is logged; the account is kept.
func (s *Service) Signup(ctx context.Context, username, email, password string) (user *domain.User, err error) {
	defer func() { s.record(OpSignup, err) }()

	username = strings.TrimSpace(username)
	email = NormalizeEmail(email)
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err = s.store.CreateUser(ctx, domain.NewUser{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	raw, err := s.tokens.Reissue(ctx, user.ID, domain.TokenTypeEmailVerify, s.config.EmailVerifyTTL)
	if err != nil {
		return nil, fmt.Errorf("issue verification token: %w", err)
	}

	if mailErr := s.mailer.SendVerificationEmail(ctx, user, raw); mailErr != nil {
		s.logger.Warn("verification email not sent", "user_id", user.ID, "error", mailErr)
		s.record(OpSignupMail, fmt.Errorf("%w: %v", domain.ErrMailDelivery, mailErr))
	} else {
		s.record(OpSignupMail, nil)
	}

	s.logger.Info("user signed up", "user_id", user.ID)
	return user, nil
}

// VerifyEmail consumes an email verification token, marks the user verified
// and returns a session token.
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) (token string, user *domain.User, err error) {
	defer func() { s.record(OpVerifyEmail, err) }()

	userID, err := s.tokens.Consume(ctx, rawToken, domain.TokenTypeEmailVerify)
	if err != nil {
		return "", nil, err
	}

	user, err = s.store.MarkUserVerified(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("mark verified: %w", err)
	}

	token, err = s.sessions.Issue(user)
	if err != nil {
		return "", nil, err
	}

	s.logger.Info("email verified", "user_id", user.ID)
	return token, user, nil
}

// RequestPasswordReset mails a password reset link to a registered address.
// Earlier reset tokens stay valid until they expire.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (err error) {
	defer func() { s.record(OpRequestPasswordReset, err) }()

	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return err
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	raw, err := s.tokens.Issue(ctx, user.ID, domain.TokenTypePasswordReset, s.config.PasswordResetTTL)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, user, raw); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMailDelivery, err)
	}
	return nil
}

// CompletePasswordReset consumes a reset token and stores the new password.
// The token is spent before the password is written, so a failed write
// requires a new reset request.
func (s *Service) CompletePasswordReset(ctx context.Context, rawToken, newPassword string) (err error) {
	defer func() { s.record(OpCompletePasswordReset, err) }()

	if err := validatePasswordPresent(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	userID, err := s.tokens.Consume(ctx, rawToken, domain.TokenTypePasswordReset)
	if err != nil {
		return err
	}

	if err := s.store.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.Info("password reset", "user_id", userID)
	return nil
}

// CurrentUser returns the profile of an authenticated user.
func (s *Service) CurrentUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

func (s *Service) record(op string, err error) {
	s.recorder.RecordAuthOperation(op, Outcome(err))
}

// Outcome classifies an operation error into a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrValidation):
		return "invalid_input"
	case errors.Is(err, domain.ErrDuplicateEmail):
		return "duplicate"
	case errors.Is(err, domain.ErrUserNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidOrExpiredToken):
		return "invalid_token"
	case errors.Is(err, domain.ErrMailDelivery):
		return "mail_failed"
	default:
		return "error"
	}
}
