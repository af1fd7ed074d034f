package auth_test

import (
	"strings"
	"testing"

	"github.com/tendant/simple-auth/internal/auth"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := auth.NewBcryptHasher()

	hash, err := h.Hash("secret")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$10$") {
		t.Errorf("expected a cost 10 bcrypt hash, got %s", hash)
	}

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{name: "correct password", password: "secret", want: true},
		{name: "wrong password", password: "Secret", want: false},
		{name: "empty password", password: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Compare(hash, tt.password)
			if err != nil {
				t.Fatalf("Compare() error = %v", err)
			}
			if ok != tt.want {
				t.Errorf("Compare() = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestBcryptHasher_MalformedHash(t *testing.T) {
	h := &auth.BcryptHasher{Cost: bcrypt.MinCost}
	if _, err := h.Compare("not-a-hash", "secret"); err == nil {
		t.Error("expected an error for a malformed hash")
	}
}
