package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tendant/simple-auth/internal/auth"
	"github.com/tendant/simple-auth/internal/config"
	"github.com/tendant/simple-auth/internal/http/features/account"
	"github.com/tendant/simple-auth/internal/http/features/user"
	"github.com/tendant/simple-auth/internal/http/middleware"
	"github.com/tendant/simple-auth/internal/httputil"
	"github.com/tendant/simple-auth/internal/telemetry"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger              *slog.Logger
	Service             *auth.Service
	Sessions            *auth.SessionService
	Metrics             *telemetry.Metrics
	Store               Pinger
	ServiceName         string
	AllowedOrigins      []string
	SecurityHeaders     config.SecurityHeadersConfig
	MaxRequestBodyBytes int64
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	if cfg.ServiceName != "" {
		r.Use(telemetry.Tracing(cfg.ServiceName))
	}
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodyBytes))

	allowed := cfg.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Store != nil {
			if err := cfg.Store.Ping(r.Context()); err != nil {
				cfg.Logger.ErrorContext(r.Context(), "health check failed", "error", err)
				httputil.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	accountHandler := account.NewHandler(cfg.Logger, cfg.Service)
	r.Route("/api/v1/auth", accountHandler.RegisterRoutes)

	userHandler := user.NewHandler(cfg.Logger, cfg.Service)
	r.Route("/api/v1/user", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Sessions))
		userHandler.RegisterRoutes(r)
	})

	return r
}
