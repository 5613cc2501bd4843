package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60, BurstSize: 3})
	defer rl.Stop()
	for i := range 3 {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d refused inside the burst", i)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("fourth request allowed")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("other client throttled")
	}
}

func TestRateLimiterDefaultBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60})
	defer rl.Stop()
	if rl.config.BurstSize != 10 {
		t.Errorf("burst = %d, want 10", rl.config.BurstSize)
	}
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60, BurstSize: 1})
	defer rl.Stop()
	rl.Allow("10.0.0.1")
	rl.sweep(time.Now().Add(time.Hour))
	rl.mu.Lock()
	n := len(rl.buckets)
	rl.mu.Unlock()
	if n != 0 {
		t.Errorf("%d buckets left after sweep", n)
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 1, BurstSize: 1})
	defer rl.Stop()
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("X-RateLimit-Limit") != "1" {
		t.Fatalf("first request = %d %v", rec.Code, rec.Header())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Errorf("second request = %d, Retry-After %q", rec.Code, rec.Header().Get("Retry-After"))
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:5000", "192.0.2.1"},
		{"forwarded", map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.1"}, "10.0.0.1:80", "198.51.100.4"},
		{"bad forwarded", map[string]string{"X-Forwarded-For": "not-an-ip", "X-Real-IP": "198.51.100.9"}, "10.0.0.1:80", "198.51.100.9"},
		{"ipv6", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"garbage", nil, "garbage", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := getClientIP(r); got != tt.want {
				t.Errorf("getClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
