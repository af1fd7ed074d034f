package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tendant/simple-auth/internal/domain"
)

// SessionConfig holds session token configuration.
type SessionConfig struct {
	JWTSecret []byte
	Issuer    string
	// TTL of zero issues tokens without an exp claim.
	TTL time.Duration
}

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// SessionService signs and verifies session JWTs. It keeps no state.
type SessionService struct {
	config SessionConfig
	Now    func() time.Time
}

// NewSessionService creates a new session service.
func NewSessionService(config SessionConfig) *SessionService {
	return &SessionService{config: config, Now: time.Now}
}

// Issue signs a session token for user.
func (s *SessionService) Issue(user *domain.User) (string, error) {
	now := s.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  user.ID.String(),
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   s.config.Issuer,
		},
		UserID: user.ID.String(),
		Email:  user.Email,
	}
	if s.config.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.config.TTL))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.config.JWTSecret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Validate verifies a session token and returns its claims and user id.
// Every failure maps to domain.ErrInvalidToken.
func (s *SessionService) Validate(tokenString string) (*SessionClaims, uuid.UUID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.Now),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.config.JWTSecret, nil
	}, opts...)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, uuid.Nil, domain.ErrInvalidToken
	}

	subject := claims.Subject
	if subject == "" {
		subject = claims.UserID
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return nil, uuid.Nil, errors.Join(domain.ErrInvalidToken, err)
	}
	return claims, userID, nil
}
