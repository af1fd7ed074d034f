package auth

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tendant/simple-auth/internal/domain"
)

const (
	maxEmailLength    = 254 // RFC 5321
	minUsernameLength = 3
	maxUsernameLength = 64
	minPasswordLength = 4
	// bcrypt only looks at the first 72 bytes.
	maxPasswordBytes = 72
)

// ValidateEmail checks an email address for format and length.
func ValidateEmail(email string) error {
	if email == "" {
		return domain.NewValidationError("email", "email address is required")
	}
	if len(email) > maxEmailLength {
		return domain.NewValidationError("email", "email address is too long")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return domain.NewValidationError("email", "invalid email address format")
	}
	if at := strings.LastIndex(email, "@"); at <= 0 || at == len(email)-1 {
		return domain.NewValidationError("email", "invalid email address format")
	}
	return nil
}

// NormalizeEmail normalizes an email address by lowercasing and trimming.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateUsername checks the display username chosen at signup.
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < minUsernameLength {
		return domain.NewValidationError("username", "username must be at least 3 characters long")
	}
	if n > maxUsernameLength {
		return domain.NewValidationError("username", "username must be at most 64 characters long")
	}
	if strings.IndexFunc(username, unicode.IsControl) >= 0 {
		return domain.NewValidationError("username", "username contains invalid characters")
	}
	return nil
}

// ValidatePassword checks a signup password. This is an input shape check,
// not a strength policy.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return domain.NewValidationError("password", "password must be at least 4 characters long")
	}
	return validatePasswordLength(password)
}

// validatePasswordPresent is the looser check used when resetting.
func validatePasswordPresent(password string) error {
	if password == "" {
		return domain.NewValidationError("password", "password is required")
	}
	return validatePasswordLength(password)
}

func validatePasswordLength(password string) error {
	if len(password) > maxPasswordBytes {
		return domain.NewValidationError("password", "password must be at most 72 bytes long")
	}
	return nil
}
