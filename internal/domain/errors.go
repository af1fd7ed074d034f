package domain

import (
	"errors"
	"fmt"
)

// Credential errors
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrDuplicateEmail        = errors.New("user already exists")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrUnauthenticated       = errors.New("no token provided")
	ErrInvalidToken          = errors.New("invalid token")
	ErrMailDelivery          = errors.New("mail delivery failed")
)

// ErrValidation is the sentinel every ValidationError matches with errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError describes malformed caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError returns a ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
