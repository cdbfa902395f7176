package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/marcosfpr/adarank/pkg/ratelimit"
)

func serveAs(t *testing.T, h http.Handler, remoteAddr, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// TestRateLimitRejectsOverBudget verifies requests past the budget get 429
// with a Retry-After header, keyed by client IP.
func TestRateLimitRejectsOverBudget(t *testing.T) {
	limiter := ratelimit.New(2, time.Minute)
	h := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		if rec := serveAs(t, h, "10.0.0.1:1234", "/v1/rank"); rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d, want 200", i+1, rec.Code)
		}
	}

	rec := serveAs(t, h, "10.0.0.1:1234", "/v1/rank")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("over-budget request = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want %q", rec.Header().Get("Retry-After"), "60")
	}
	if !strings.Contains(rec.Body.String(), "rate limit exceeded") {
		t.Errorf("body = %q, want rate limit message", rec.Body.String())
	}

	// A different client IP has its own budget.
	if rec := serveAs(t, h, "10.0.0.2:1234", "/v1/rank"); rec.Code != http.StatusOK {
		t.Errorf("other client = %d, want 200", rec.Code)
	}
}

// TestRateLimitExemptsHealth verifies health probes bypass the limiter even
// once the client's budget is gone.
func TestRateLimitExemptsHealth(t *testing.T) {
	limiter := ratelimit.New(1, time.Minute)
	h := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serveAs(t, h, "10.0.0.1:1234", "/v1/rank")
	if rec := serveAs(t, h, "10.0.0.1:1234", "/v1/rank"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", rec.Code)
	}

	for _, path := range []string{"/health/live", "/health/ready"} {
		if rec := serveAs(t, h, "10.0.0.1:1234", path); rec.Code != http.StatusOK {
			t.Errorf("%s = %d, want 200", path, rec.Code)
		}
	}
}
