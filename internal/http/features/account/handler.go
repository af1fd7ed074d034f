package account

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-auth/internal/domain"
	"github.com/tendant/simple-auth/internal/httputil"
)

// Service is the credential flow the handler drives.
type Service interface {
	Signup(ctx context.Context, username, email, password string) (*domain.User, error)
	VerifyEmail(ctx context.Context, rawToken string) (string, *domain.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, rawToken, newPassword string) error
}

// Handler handles signup, email verification and password reset.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// NewHandler creates a new account handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// SignupRequest represents a signup request.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest represents a password reset request.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest carries the new password.
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// VerifyEmailResponse carries the session token issued on verification.
type VerifyEmailResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// Signup registers a new user.
// POST /api/v1/auth/signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !h.decode(w, r, &req) {
		return
	}

	if _, err := h.service.Signup(r.Context(), req.Username, req.Email, req.Password); err != nil {
		h.writeError(w, r, err, "signup failed")
		return
	}

	httputil.JSON(w, http.StatusCreated, MessageResponse{Message: "User created. Please verify your email."})
}

// VerifyEmail consumes the mailed token and returns a session token.
// GET /api/v1/auth/verify-email/{token}
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token, _, err := h.service.VerifyEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOrExpiredToken) {
			httputil.Error(w, http.StatusBadRequest, "invalid or expired verification link")
			return
		}
		h.writeError(w, r, err, "verification failed")
		return
	}

	httputil.JSON(w, http.StatusOK, VerifyEmailResponse{Token: token, Message: "Email verified successfully"})
}

// ForgotPassword mails a reset link.
// POST /api/v1/auth/forgot-password
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "user not found, check email again")
			return
		}
		h.writeError(w, r, err, "password reset failed")
		return
	}

	httputil.JSON(w, http.StatusCreated, MessageResponse{Message: "Email sent. Please check your inbox."})
}

// ResetPassword sets a new password using the mailed token.
// POST /api/v1/auth/reset-password/{token}
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.CompletePasswordReset(r.Context(), chi.URLParam(r, "token"), req.Password); err != nil {
		h.writeError(w, r, err, "reset failed")
		return
	}

	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "Password reset successful"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httputil.DecodeJSON(r, v); err != nil {
		if httputil.IsBodyTooLarge(err) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeError maps service errors to responses. Anything unrecognized is
// logged and reported as fallback with a 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		httputil.Error(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, domain.ErrDuplicateEmail):
		httputil.Error(w, http.StatusConflict, "user already exists")
	case errors.Is(err, domain.ErrInvalidOrExpiredToken):
		httputil.Error(w, http.StatusBadRequest, "invalid or expired token")
	case errors.Is(err, domain.ErrUserNotFound):
		httputil.Error(w, http.StatusNotFound, "user not found")
	default:
		h.logger.ErrorContext(r.Context(), fallback, "error", err)
		httputil.Error(w, http.StatusInternalServerError, fallback)
	}
}
