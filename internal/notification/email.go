package notification

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-auth/internal/domain"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	verifyTemplate = "verify_email.html"
	resetTemplate  = "reset_password.html"
)

// EmailConfig holds the settings for the account emails.
type EmailConfig struct {
	// BaseURL is prefixed to the links in every mail.
	BaseURL          string
	EmailVerifyTTL   time.Duration
	PasswordResetTTL time.Duration
}

type emailData struct {
	Username  string
	Link      string
	ExpiresIn string
}

// EmailService renders and sends the verification and reset emails.
type EmailService struct {
	sender    Sender
	config    EmailConfig
	templates *template.Template
}

// NewEmailService parses the embedded templates.
func NewEmailService(sender Sender, config EmailConfig) (*EmailService, error) {
	t, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &EmailService{sender: sender, config: config, templates: t}, nil
}

// SendVerificationEmail mails the email verification link.
func (s *EmailService) SendVerificationEmail(ctx context.Context, user *domain.User, token string) error {
	return s.send(ctx, user.Email, "Verify Your Email Address", verifyTemplate, emailData{
		Username:  user.Username,
		Link:      s.link("/api/v1/auth/verify-email/", token),
		ExpiresIn: humanDuration(s.config.EmailVerifyTTL),
	})
}

// SendPasswordResetEmail mails the password reset link.
func (s *EmailService) SendPasswordResetEmail(ctx context.Context, user *domain.User, token string) error {
	return s.send(ctx, user.Email, "Reset Your Password", resetTemplate, emailData{
		Username:  user.Username,
		Link:      s.link("/api/v1/auth/reset-password/", token),
		ExpiresIn: humanDuration(s.config.PasswordResetTTL),
	})
}

func (s *EmailService) link(path, token string) string {
	return s.config.BaseURL + path + url.PathEscape(token)
}

func (s *EmailService) send(ctx context.Context, to, subject, name string, data emailData) error {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return s.sender.Send(ctx, Message{To: to, Subject: subject, HTML: buf.String()})
}

// humanDuration renders whole minutes or hours, e.g. "15 minutes".
func humanDuration(d time.Duration) string {
	if d <= 0 {
		d = 15 * time.Minute
	}
	if d%time.Hour == 0 {
		return plural(int(d/time.Hour), "hour")
	}
	if d%time.Minute == 0 {
		return plural(int(d/time.Minute), "minute")
	}
	return d.String()
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
