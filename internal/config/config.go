package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string `env:"SERVER_ADDR" envDefault:"0.0.0.0"`
	ServerPort int    `env:"SERVER_PORT" envDefault:"3000"`
	AppBaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`

	// Database: postgres://, postgresql://, sqlite://<path> or memory://
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// JWT
	JWTSecret       string        `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer       string        `env:"JWT_ISSUER" envDefault:"simple-auth"`
	SessionTokenTTL time.Duration `env:"SESSION_TOKEN_TTL" envDefault:"0s"`

	// Single-use tokens
	EmailVerifyTokenTTL   time.Duration `env:"EMAIL_VERIFY_TOKEN_TTL" envDefault:"15m"`
	PasswordResetTokenTTL time.Duration `env:"PASSWORD_RESET_TOKEN_TTL" envDefault:"15m"`

	Mail            MailConfig
	CORS            CORSConfig
	SecurityHeaders SecurityHeadersConfig

	MaxRequestBodyBytes int64 `env:"MAX_REQUEST_BODY_BYTES" envDefault:"1048576"`

	// Observability
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"json"`
}

// MailConfig holds outgoing mail settings.
type MailConfig struct {
	// Driver is "smtp" or "log".
	Driver      string `env:"MAIL_DRIVER" envDefault:"smtp"`
	SMTPHost    string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort    int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser    string `env:"SMTP_USER"`
	SMTPPass    string `env:"SMTP_PASS"`
	SenderEmail string `env:"SENDER_EMAIL"`
	SenderName  string `env:"SENDER_NAME" envDefault:"simple-auth"`
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// SecurityHeadersConfig holds the response security headers.
type SecurityHeadersConfig struct {
	Enabled            bool   `env:"SECURITY_HEADERS_ENABLED" envDefault:"true"`
	CSP                string `env:"SECURITY_CSP" envDefault:"default-src 'none'; frame-ancestors 'none'"`
	HSTSMaxAge         int    `env:"SECURITY_HSTS_MAX_AGE" envDefault:"0"`
	FrameOptions       string `env:"SECURITY_FRAME_OPTIONS" envDefault:"DENY"`
	ContentTypeOptions string `env:"SECURITY_CONTENT_TYPE_OPTIONS" envDefault:"nosniff"`
	ReferrerPolicy     string `env:"SECURITY_REFERRER_POLICY" envDefault:"no-referrer"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT %d is out of range", c.ServerPort))
	}
	if c.EmailVerifyTokenTTL <= 0 {
		errs = append(errs, errors.New("EMAIL_VERIFY_TOKEN_TTL must be positive"))
	}
	if c.PasswordResetTokenTTL <= 0 {
		errs = append(errs, errors.New("PASSWORD_RESET_TOKEN_TTL must be positive"))
	}
	if c.SessionTokenTTL < 0 {
		errs = append(errs, errors.New("SESSION_TOKEN_TTL must not be negative"))
	}
	if c.MaxRequestBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_BODY_BYTES must be positive"))
	}

	switch c.Mail.Driver {
	case "smtp":
		if c.Mail.SMTPUser == "" {
			errs = append(errs, errors.New("SMTP_USER is required"))
		}
		if c.Mail.SMTPPass == "" {
			errs = append(errs, errors.New("SMTP_PASS is required"))
		}
		if c.Mail.SenderEmail == "" {
			errs = append(errs, errors.New("SENDER_EMAIL is required"))
		}
	case "log":
	default:
		errs = append(errs, fmt.Errorf("MAIL_DRIVER %q must be smtp or log", c.Mail.Driver))
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q must be json or text", c.LogFormat))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerAddr, c.ServerPort)
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q is invalid", s)
	}
	return level, nil
}
