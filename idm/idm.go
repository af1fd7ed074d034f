// Package idm wires the simple-auth service together: credential store,
// token and session services, mailer, metrics and the HTTP router.
//
// Basic usage:
//
//	svc, err := idm.New(ctx, idm.Config{
//	    DatabaseURL: "sqlite://auth.db",
//	    JWTSecret:   "your-secret-key-at-least-32-chars",
//	    Sender:      notification.NewLogSender(logger),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//
//	http.ListenAndServe(":3000", svc.Router())
//
// Routes:
//
//	POST /api/v1/auth/signup                  - Register with username/email/password
//	GET  /api/v1/auth/verify-email/{token}    - Verify email, returns a session token
//	POST /api/v1/auth/forgot-password         - Mail a password reset link
//	POST /api/v1/auth/reset-password/{token}  - Set a new password
//	GET  /api/v1/user                         - Current user (protected)
//	GET  /health                              - Store reachability
//	GET  /metrics                             - Prometheus metrics
package idm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-auth/internal/auth"
	"github.com/tendant/simple-auth/internal/config"
	httpserver "github.com/tendant/simple-auth/internal/http"
	"github.com/tendant/simple-auth/internal/http/middleware"
	"github.com/tendant/simple-auth/internal/notification"
	"github.com/tendant/simple-auth/internal/repository"
	"github.com/tendant/simple-auth/internal/telemetry"
)

// Config holds the configuration for the service.
type Config struct {
	// DatabaseURL selects the store: postgres://, sqlite://<path> or memory:// (required).
	DatabaseURL string

	// JWTSecret is the HMAC key for session tokens (required).
	JWTSecret string

	// JWTIssuer is the issuer claim in session tokens (default: "simple-auth").
	JWTIssuer string

	// SessionTokenTTL bounds session token lifetime. Zero means no expiry.
	SessionTokenTTL time.Duration

	// EmailVerifyTokenTTL and PasswordResetTokenTTL default to 15 minutes.
	EmailVerifyTokenTTL   time.Duration
	PasswordResetTokenTTL time.Duration

	// AppBaseURL prefixes the links in outgoing mail (default: "http://localhost:3000").
	AppBaseURL string

	// Sender delivers mail (default: log the message).
	Sender notification.Sender

	AllowedOrigins      []string
	SecurityHeaders     config.SecurityHeadersConfig
	MaxRequestBodyBytes int64

	// ServiceName enables the tracing middleware when set.
	ServiceName string

	// Logger is the structured logger (default: JSON on stdout).
	Logger *slog.Logger
}

// ConfigFromEnv maps the loaded environment onto Config and picks the
// mail sender from MAIL_DRIVER.
func ConfigFromEnv(cfg *config.Config, logger *slog.Logger) Config {
	var sender notification.Sender
	if cfg.Mail.Driver == "smtp" {
		sender = notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			User:     cfg.Mail.SMTPUser,
			Password: cfg.Mail.SMTPPass,
			From:     cfg.Mail.SenderEmail,
			FromName: cfg.Mail.SenderName,
		})
	} else {
		sender = notification.NewLogSender(logger)
	}

	return Config{
		DatabaseURL:           cfg.DatabaseURL,
		JWTSecret:             cfg.JWTSecret,
		JWTIssuer:             cfg.JWTIssuer,
		SessionTokenTTL:       cfg.SessionTokenTTL,
		EmailVerifyTokenTTL:   cfg.EmailVerifyTokenTTL,
		PasswordResetTokenTTL: cfg.PasswordResetTokenTTL,
		AppBaseURL:            cfg.AppBaseURL,
		Sender:                sender,
		AllowedOrigins:        cfg.CORS.AllowedOrigins,
		SecurityHeaders:       cfg.SecurityHeaders,
		MaxRequestBodyBytes:   cfg.MaxRequestBodyBytes,
		ServiceName:           "simple-auth",
		Logger:                logger,
	}
}

// IDM is a running service instance.
type IDM struct {
	config   Config
	store    repository.Store
	service  *auth.Service
	sessions *auth.SessionService
	metrics  *telemetry.Metrics
	router   http.Handler
}

// New opens the store, applies migrations and builds every collaborator.
func New(ctx context.Context, cfg Config) (*IDM, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	store, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("idm: open store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("idm: migrate: %w", err)
	}

	mailer, err := notification.NewEmailService(cfg.Sender, notification.EmailConfig{
		BaseURL:          cfg.AppBaseURL,
		EmailVerifyTTL:   cfg.EmailVerifyTokenTTL,
		PasswordResetTTL: cfg.PasswordResetTokenTTL,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("idm: mail templates: %w", err)
	}

	sessions := auth.NewSessionService(auth.SessionConfig{
		JWTSecret: []byte(cfg.JWTSecret),
		Issuer:    cfg.JWTIssuer,
		TTL:       cfg.SessionTokenTTL,
	})

	service := auth.NewService(
		store,
		auth.NewTokenService(store),
		sessions,
		auth.NewBcryptHasher(),
		mailer,
		auth.ServiceConfig{
			EmailVerifyTTL:   cfg.EmailVerifyTokenTTL,
			PasswordResetTTL: cfg.PasswordResetTokenTTL,
		},
		cfg.Logger,
	)

	metrics := telemetry.NewMetrics()
	service.SetRecorder(metrics)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:              cfg.Logger,
		Service:             service,
		Sessions:            sessions,
		Metrics:             metrics,
		Store:               store,
		ServiceName:         cfg.ServiceName,
		AllowedOrigins:      cfg.AllowedOrigins,
		SecurityHeaders:     cfg.SecurityHeaders,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	return &IDM{
		config:   cfg,
		store:    store,
		service:  service,
		sessions: sessions,
		metrics:  metrics,
		router:   router,
	}, nil
}

// Router returns the HTTP handler with all routes registered.
func (i *IDM) Router() http.Handler {
	return i.router
}

// Service returns the credential service for advanced usage.
func (i *IDM) Service() *auth.Service {
	return i.service
}

// AuthMiddleware returns middleware that validates session tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(svc.AuthMiddleware())
//	    r.Get("/protected", handler)
//	})
func (i *IDM) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(i.sessions)
}

// GetUserIDFromContext extracts the user ID set by AuthMiddleware.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	return middleware.GetUserID(ctx)
}

// PruneExpiredTokens deletes tokens that expired before now.
func (i *IDM) PruneExpiredTokens(ctx context.Context) (int64, error) {
	n, err := i.store.DeleteExpiredTokens(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("idm: prune tokens: %w", err)
	}
	return n, nil
}

// Close releases the store.
func (i *IDM) Close() error {
	return i.store.Close()
}

func validateConfig(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("idm: DatabaseURL is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("idm: JWTSecret is required")
	}
	if cfg.EmailVerifyTokenTTL < 0 || cfg.PasswordResetTokenTTL < 0 || cfg.SessionTokenTTL < 0 {
		return errors.New("idm: token TTLs must not be negative")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "simple-auth"
	}
	if cfg.EmailVerifyTokenTTL == 0 {
		cfg.EmailVerifyTokenTTL = auth.DefaultTokenTTL
	}
	if cfg.PasswordResetTokenTTL == 0 {
		cfg.PasswordResetTokenTTL = auth.DefaultTokenTTL
	}
	if cfg.AppBaseURL == "" {
		cfg.AppBaseURL = "http://localhost:3000"
	}
	if cfg.MaxRequestBodyBytes == 0 {
		cfg.MaxRequestBodyBytes = 1 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	if cfg.Sender == nil {
		cfg.Sender = notification.NewLogSender(cfg.Logger)
	}
}
