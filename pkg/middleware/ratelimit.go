package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/marcosfpr/adarank/pkg/errors"
	"github.com/marcosfpr/adarank/pkg/ratelimit"
)

// RateLimit returns middleware that enforces a per-client request budget.
// Clients are keyed by remote IP. Health endpoints are exempt so probes
// never count against the budget.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(clientKey(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(int(limiter.Window().Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(apperrors.HTTPStatusCode(apperrors.ErrRateLimited))
				_, _ = w.Write([]byte(`{"error":"` + apperrors.ErrRateLimited.Error() + `"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
