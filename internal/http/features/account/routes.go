package account

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers the account routes on r, which is mounted at /api/v1/auth.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/signup", h.Signup)
	r.Get("/verify-email/{token}", h.VerifyEmail)
	r.Post("/forgot-password", h.ForgotPassword)
	r.Post("/reset-password/{token}", h.ResetPassword)
}
