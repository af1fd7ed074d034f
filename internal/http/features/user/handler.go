package user

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/simple-auth/internal/domain"
	"github.com/tendant/simple-auth/internal/http/middleware"
	"github.com/tendant/simple-auth/internal/httputil"
)

// Service loads the authenticated user.
type Service interface {
	CurrentUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// Handler handles the protected user routes.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// NewHandler creates a new user handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// UserResponse represents the user profile.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// GetUserResponse is the body of GET /api/v1/user.
type GetUserResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// Get returns the current user's profile.
// GET /api/v1/user
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "no token provided")
		return
	}

	u, err := h.service.CurrentUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to load user", "error", err, "user_id", userID)
		httputil.Error(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	httputil.JSON(w, http.StatusOK, GetUserResponse{
		Message: "hi there",
		User: UserResponse{
			ID:        u.ID.String(),
			Username:  u.Username,
			Email:     u.Email,
			Verified:  u.Verified,
			CreatedAt: u.CreatedAt,
		},
	})
}

// RegisterRoutes registers the user routes on r, mounted at /api/v1/user
// behind the auth middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
}
