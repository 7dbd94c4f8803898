package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/warnman/internal/model"
)

func newRequestFrom(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/search-warns?keyword=ab", nil)
	req.RemoteAddr = remoteAddr
	return req
}

// --- Middleware (クライアントIP単位) のテスト ---

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:            2, // 2 req/sec
		Burst:           5, // バースト5
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	handlerCallCount := 0
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCallCount++
		w.WriteHeader(http.StatusOK)
	}))

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newRequestFrom("192.0.2.1:1000"))

		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	if handlerCallCount != 5 {
		t.Errorf("handler call count = %d, want 5", handlerCallCount)
	}
}

func TestRateLimitMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:            1, // 1 req/sec
		Burst:           2, // バースト2
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// バースト分（2回）は通る
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newRequestFrom("192.0.2.2:1000"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newRequestFrom("192.0.2.2:2000"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if ra := w.Header().Get("Retry-After"); ra != "1" {
		t.Errorf("Retry-After = %q, want %q", ra, "1")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimited)
	}
}

func TestRateLimitMiddleware_IndependentPerClientIP(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:            1,
		Burst:           1,
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newRequestFrom("192.0.2.10:1"))
	if w.Code != http.StatusOK {
		t.Fatalf("first client: status = %d, want %d", w.Code, http.StatusOK)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newRequestFrom("192.0.2.11:1"))
	if w.Code != http.StatusOK {
		t.Errorf("second client: status = %d, want %d", w.Code, http.StatusOK)
	}

	if rl.LimiterCount() != 2 {
		t.Errorf("LimiterCount = %d, want 2", rl.LimiterCount())
	}
}

func TestRateLimiter_RetryAfter(t *testing.T) {
	tests := []struct {
		perMinute int
		want      int
	}{
		{120, 1},
		{30, 2},
		{60, 1},
	}
	for _, tt := range tests {
		rl := NewRateLimiter(PerMinute(tt.perMinute))
		if got := rl.RetryAfter(); got != tt.want {
			t.Errorf("PerMinute(%d).RetryAfter() = %d, want %d", tt.perMinute, got, tt.want)
		}
		rl.Stop()
	}
}

func TestRateLimiter_AllowByKey(t *testing.T) {
	rl := NewRateLimiter(PerMinute(2))
	defer rl.Stop()

	for i := 0; i < 2; i++ {
		if !rl.Allow("discord-user-1") {
			t.Fatalf("call %d: Allow = false, want true", i)
		}
	}
	if rl.Allow("discord-user-1") {
		t.Error("third call: Allow = true, want false")
	}
	if !rl.Allow("discord-user-2") {
		t.Error("other key: Allow = false, want true")
	}
}

func TestRateLimiter_Cleanup_RemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:            1,
		Burst:           1,
		CleanupInterval: 1 * time.Hour,
	})
	defer rl.Stop()

	rl.Allow("stale")
	rl.Allow("fresh")

	rl.mu.Lock()
	rl.limiters["stale"].lastAccess = time.Now().Add(-3 * time.Hour)
	rl.mu.Unlock()

	rl.cleanup()

	if rl.LimiterCount() != 1 {
		t.Errorf("LimiterCount = %d, want 1", rl.LimiterCount())
	}
	rl.mu.RLock()
	_, ok := rl.limiters["fresh"]
	rl.mu.RUnlock()
	if !ok {
		t.Error("fresh entry should be kept")
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(PerMinute(1000))
	defer rl.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rl.Allow("key-" + strconv.Itoa(i%5))
		}(i)
	}
	wg.Wait()

	if rl.LimiterCount() != 5 {
		t.Errorf("LimiterCount = %d, want 5", rl.LimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestClientIP(t *testing.T) {
	tests := map[string]string{
		"192.0.2.1:1234":   "192.0.2.1",
		"[2001:db8::1]:80": "2001:db8::1",
		"unix-socket":      "unix-socket",
	}
	for remote, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		if got := ClientIP(req); got != want {
			t.Errorf("ClientIP(%q) = %q, want %q", remote, got, want)
		}
	}
}
