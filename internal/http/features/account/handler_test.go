package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-auth/internal/domain"
)

type fakeService struct {
	signupErr error
	verifyErr error
	forgotErr error
	resetErr  error
	gotToken  string
	gotEmail  string
	gotPass   string
}

func (f *fakeService) Signup(ctx context.Context, username, email, password string) (*domain.User, error) {
	f.gotEmail, f.gotPass = email, password
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	return &domain.User{Username: username, Email: email}, nil
}

func (f *fakeService) VerifyEmail(ctx context.Context, rawToken string) (string, *domain.User, error) {
	f.gotToken = rawToken
	if f.verifyErr != nil {
		return "", nil, f.verifyErr
	}
	return "session-jwt", &domain.User{}, nil
}

func (f *fakeService) RequestPasswordReset(ctx context.Context, email string) error {
	f.gotEmail = email
	return f.forgotErr
}

func (f *fakeService) CompletePasswordReset(ctx context.Context, rawToken, newPassword string) error {
	f.gotToken, f.gotPass = rawToken, newPassword
	return f.resetErr
}

func newRouter(svc Service) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	r.Route("/api/v1/auth", h.RegisterRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var response map[string]string
	_ = json.NewDecoder(rec.Body).Decode(&response)
	return rec, response
}

func TestSignup(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "created",
			body:           `{"username":"alice","email":"alice@example.com","password":"secret"}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "invalid json",
			body:           `{invalid}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid request body",
		},
		{
			name:           "empty body",
			body:           "",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid request body",
		},
		{
			name:           "validation error",
			body:           `{"username":"al","email":"alice@example.com","password":"secret"}`,
			err:            domain.NewValidationError("username", "username must be at least 3 characters long"),
			expectedStatus: http.StatusBadRequest,
			expectedError:  "username must be at least 3 characters long",
		},
		{
			name:           "duplicate",
			body:           `{"username":"alice","email":"alice@example.com","password":"secret"}`,
			err:            domain.ErrDuplicateEmail,
			expectedStatus: http.StatusConflict,
			expectedError:  "user already exists",
		},
		{
			name:           "unexpected",
			body:           `{"username":"alice","email":"alice@example.com","password":"secret"}`,
			err:            errors.New("db down"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "signup failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{signupErr: tt.err}
			rec, response := do(t, newRouter(svc), http.MethodPost, "/api/v1/auth/signup", tt.body)

			if rec.Code != tt.expectedStatus {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.expectedStatus)
			}
			if response["error"] != tt.expectedError {
				t.Errorf("Error = %q, want %q", response["error"], tt.expectedError)
			}
			if tt.expectedStatus == http.StatusCreated && response["message"] == "" {
				t.Error("expected a message on success")
			}
		})
	}
}

func TestVerifyEmail(t *testing.T) {
	svc := &fakeService{}
	rec, response := do(t, newRouter(svc), http.MethodGet, "/api/v1/auth/verify-email/abc123", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code = %d, want 200", rec.Code)
	}
	if svc.gotToken != "abc123" {
		t.Errorf("token passed to service = %q", svc.gotToken)
	}
	if response["token"] != "session-jwt" || response["message"] != "Email verified successfully" {
		t.Errorf("response = %v", response)
	}
}

func TestVerifyEmail_Invalid(t *testing.T) {
	svc := &fakeService{verifyErr: domain.ErrInvalidOrExpiredToken}
	rec, response := do(t, newRouter(svc), http.MethodGet, "/api/v1/auth/verify-email/nope", "")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d, want 400", rec.Code)
	}
	if response["error"] != "invalid or expired verification link" {
		t.Errorf("Error = %q", response["error"])
	}
}

func TestForgotPassword(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		err            error
		expectedStatus int
	}{
		{name: "sent", body: `{"email":"alice@example.com"}`, expectedStatus: http.StatusCreated},
		{name: "unknown user", body: `{"email":"nobody@example.com"}`, err: domain.ErrUserNotFound, expectedStatus: http.StatusNotFound},
		{name: "bad email", body: `{"email":"x"}`, err: domain.NewValidationError("email", "invalid email address format"), expectedStatus: http.StatusBadRequest},
		{name: "mail failure", body: `{"email":"alice@example.com"}`, err: domain.ErrMailDelivery, expectedStatus: http.StatusInternalServerError},
		{name: "invalid json", body: `[`, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{forgotErr: tt.err}
			rec, _ := do(t, newRouter(svc), http.MethodPost, "/api/v1/auth/forgot-password", tt.body)
			if rec.Code != tt.expectedStatus {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.expectedStatus)
			}
		})
	}
}

func TestResetPassword(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{name: "reset", body: `{"password":"newpass"}`, expectedStatus: http.StatusOK},
		{
			name:           "missing password",
			body:           `{}`,
			err:            domain.NewValidationError("password", "password is required"),
			expectedStatus: http.StatusBadRequest,
			expectedError:  "password is required",
		},
		{
			name:           "invalid token",
			body:           `{"password":"newpass"}`,
			err:            domain.ErrInvalidOrExpiredToken,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid or expired token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{resetErr: tt.err}
			rec, response := do(t, newRouter(svc), http.MethodPost, "/api/v1/auth/reset-password/tok", tt.body)

			if rec.Code != tt.expectedStatus {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.expectedStatus)
			}
			if response["error"] != tt.expectedError {
				t.Errorf("Error = %q, want %q", response["error"], tt.expectedError)
			}
			if svc.gotToken != "tok" {
				t.Errorf("token passed to service = %q", svc.gotToken)
			}
		})
	}
}
