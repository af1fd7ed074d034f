package middleware

import (
	"net/http"

	"github.com/tendant/simple-auth/internal/httputil"
)

// RequestSizeLimit caps the request body. Reads past the limit fail with
// *http.MaxBytesError, which handlers report as 413.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
