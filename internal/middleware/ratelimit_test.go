package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(100),
		GeneralBurst:    3,
		ImportRate:      rate.Limit(100),
		ImportBurst:     1,
		CleanupInterval: time.Hour,
	}
}

func doRateLimitedRequest(t *testing.T, handler http.Handler, userID string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
	req = req.WithContext(ContextWithUserID(req.Context(), userID))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w.Result()
}

func TestRateLimiter_General_AllowsWithinBurst(t *testing.T) {
	cfg := testRateLimiterConfig()
	cfg.GeneralRate = rate.Limit(0.001) // 補充をほぼ止めてバーストのみで検証
	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		resp := doRateLimitedRequest(t, handler, "user-1")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, resp.StatusCode, http.StatusOK)
		}
	}

	resp := doRateLimitedRequest(t, handler, "user-1")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("429レスポンスにRetry-Afterヘッダーがない")
	}
}

func TestRateLimiter_General_IsolatesUsers(t *testing.T) {
	cfg := testRateLimiterConfig()
	cfg.GeneralRate = rate.Limit(0.001)
	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// user-1のバーストを使い切る
	for i := 0; i < 3; i++ {
		doRateLimitedRequest(t, handler, "user-1")
	}
	if resp := doRateLimitedRequest(t, handler, "user-1"); resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("user-1 status = %d, want 429", resp.StatusCode)
	}

	// user-2は影響を受けない
	if resp := doRateLimitedRequest(t, handler, "user-2"); resp.StatusCode != http.StatusOK {
		t.Errorf("user-2 status = %d, want 200", resp.StatusCode)
	}
}

func TestRateLimiter_Import_IndependentOfGeneral(t *testing.T) {
	cfg := testRateLimiterConfig()
	cfg.ImportRate = rate.Limit(0.001)
	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	generalHandler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	importHandler := rl.ImportMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// インポートのバースト（1）を使い切る
	if resp := doRateLimitedRequest(t, importHandler, "user-1"); resp.StatusCode != http.StatusOK {
		t.Fatalf("import status = %d, want 200", resp.StatusCode)
	}
	if resp := doRateLimitedRequest(t, importHandler, "user-1"); resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("import status = %d, want 429", resp.StatusCode)
	}

	// API全般のリミットは消費されていない
	if resp := doRateLimitedRequest(t, generalHandler, "user-1"); resp.StatusCode != http.StatusOK {
		t.Errorf("general status = %d, want 200", resp.StatusCode)
	}
}

func TestRateLimiter_NoUserID_Returns401(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestRateLimiter_Cleanup_RemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	rl.general.getOrCreate("user-1")
	rl.general.getOrCreate("user-2")
	if got := rl.GeneralLimiterCount(); got != 2 {
		t.Fatalf("entry count = %d, want 2", got)
	}

	// 全エントリを期限切れ扱いにする
	rl.general.mu.Lock()
	for _, ul := range rl.general.entries {
		ul.lastAccess = time.Now().Add(-24 * time.Hour)
	}
	rl.general.mu.Unlock()

	rl.general.cleanup(time.Hour)

	if got := rl.GeneralLimiterCount(); got != 0 {
		t.Errorf("entry count after cleanup = %d, want 0", got)
	}
}
