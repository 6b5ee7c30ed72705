package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codfleet/api/internal/platform/auth"
)

func TestKeyedRateLimiterRefillsOverTime(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := newKeyedRateLimiter(2, func() time.Time { return now })

	if !limiter.Allow("a") || !limiter.Allow("a") {
		t.Fatalf("expected burst of two to pass")
	}
	if limiter.Allow("a") {
		t.Fatalf("expected third request rejected")
	}
	if !limiter.Allow("b") {
		t.Fatalf("expected other keys unaffected")
	}

	now = now.Add(30 * time.Second)
	if !limiter.Allow("a") {
		t.Fatalf("expected a token after half a minute")
	}
}

func TestKeyedRateLimiterDisabled(t *testing.T) {
	if newKeyedRateLimiter(0, nil) != nil {
		t.Fatalf("expected nil limiter for zero rate")
	}
	var limiter *keyedRateLimiter
	if !limiter.Allow("x") {
		t.Fatalf("expected nil limiter to allow")
	}
}

func TestRateLimitMiddlewareKeysByActor(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	handler := RateLimitMiddleware(1, 0, func() time.Time { return now })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(actor string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		if actor != "" {
			req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: actor}))
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	if rr := send("agent-1"); rr.Code != http.StatusNoContent {
		t.Fatalf("expected first request allowed, got %d", rr.Code)
	}
	rr := send("agent-1")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if rr := send("agent-2"); rr.Code != http.StatusNoContent {
		t.Fatalf("expected separate bucket per actor, got %d", rr.Code)
	}
	for i := 0; i < 5; i++ {
		if rr := send(""); rr.Code != http.StatusNoContent {
			t.Fatalf("expected anonymous unlimited when disabled, got %d", rr.Code)
		}
	}
}
