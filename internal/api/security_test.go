package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	scoreerrors "github.com/FocuswithJustin/JuniperScore/core/errors"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"6f1c1d5e-3b0a-4b8e-9f43-2f7b5d1f1a10", false},
		{"", true},
		{"../runs.db", true},
		{`a\b`, true},
		{"not-a-uuid", true},
	}
	for _, tt := range tests {
		err := ValidateID(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateID(%q) = %v", tt.id, err)
		}
		if err != nil && !errors.Is(err, scoreerrors.ErrInvalidInput) {
			t.Errorf("ValidateID(%q) error %v is not ErrInvalidInput", tt.id, err)
		}
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantStatus int
		wantHeader string
	}{
		{"permissive", nil, "https://x.example", http.MethodGet, http.StatusTeapot, "*"},
		{"preflight", nil, "https://x.example", http.MethodOptions, http.StatusNoContent, "*"},
		{"listed", []string{"https://a.example"}, "https://a.example", http.MethodGet, http.StatusTeapot, "https://a.example"},
		{"unlisted", []string{"https://a.example"}, "https://b.example", http.MethodGet, http.StatusTeapot, ""},
		{"unlisted preflight", []string{"https://a.example"}, "https://b.example", http.MethodOptions, http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/merge", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			CORSMiddleware(tt.allowed, next).ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus || rec.Header().Get("Access-Control-Allow-Origin") != tt.wantHeader {
				t.Errorf("status %d, origin header %q", rec.Code, rec.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Frame-Options") != "DENY" || rec.Header().Get("Content-Security-Policy") != apiCSP {
		t.Errorf("headers = %v", rec.Header())
	}
}
