package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	const key = "0123456789abcdef0123"
	h := AuthMiddleware(AuthConfig{Enabled: true, APIKey: key}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name string
		path string
		key  string
		want int
	}{
		{"health is public", "/health", "", http.StatusNoContent},
		{"root is public", "/", "", http.StatusNoContent},
		{"ws checks itself", "/ws", "", http.StatusNoContent},
		{"missing key", "/runs", "", http.StatusUnauthorized},
		{"wrong key", "/runs", "wrong-key-0000000000", http.StatusUnauthorized},
		{"right key", "/merge", key, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	h := AuthMiddleware(AuthConfig{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestValidateAuthConfig(t *testing.T) {
	tests := []struct {
		cfg     AuthConfig
		wantErr bool
	}{
		{AuthConfig{}, false},
		{AuthConfig{Enabled: true}, true},
		{AuthConfig{Enabled: true, APIKey: "short"}, true},
		{AuthConfig{Enabled: true, APIKey: "0123456789abcdef"}, false},
	}
	for _, tt := range tests {
		if err := ValidateAuthConfig(tt.cfg); (err != nil) != tt.wantErr {
			t.Errorf("ValidateAuthConfig(%+v) = %v", tt.cfg, err)
		}
	}
}

func TestServerRequiresKey(t *testing.T) {
	const key = "0123456789abcdef0123"
	_, ts := newTestServer(t, Config{Auth: AuthConfig{Enabled: true, APIKey: key}})
	if status, _ := call(t, http.MethodGet, ts.URL+"/formats", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("no key = %d", status)
	}
	if status, _ := call(t, http.MethodGet, ts.URL+"/formats", nil, http.Header{"X-Api-Key": {key}}); status != http.StatusOK {
		t.Errorf("with key = %d", status)
	}
}
