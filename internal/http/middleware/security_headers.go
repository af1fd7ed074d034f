package middleware

import (
	"fmt"
	"net/http"

	"github.com/tendant/simple-auth/internal/config"
)

type header struct {
	name, value string
}

// SecurityHeaders sets the configured response security headers. Empty
// values are skipped.
func SecurityHeaders(cfg config.SecurityHeadersConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}

	var headers []header
	add := func(name, value string) {
		if value != "" {
			headers = append(headers, header{name, value})
		}
	}
	add("Content-Security-Policy", cfg.CSP)
	if cfg.HSTSMaxAge > 0 {
		add("Strict-Transport-Security", fmt.Sprintf("max-age=%d; includeSubDomains", cfg.HSTSMaxAge))
	}
	add("X-Frame-Options", cfg.FrameOptions)
	add("X-Content-Type-Options", cfg.ContentTypeOptions)
	add("Referrer-Policy", cfg.ReferrerPolicy)
	// Responses carry session tokens.
	add("Cache-Control", "no-store")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, h := range headers {
				w.Header().Set(h.name, h.value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
