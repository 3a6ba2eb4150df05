package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_Disabled(t *testing.T) {
	handler := Middleware(&Config{Enabled: false})(okHandler())

	req := httptest.NewRequest("POST", "/v1/explain", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 when disabled, got %d", rec.Code)
	}
}

func TestMiddleware_MissingKey(t *testing.T) {
	handler := Middleware(DefaultConfig([]string{"secret"}))(okHandler())

	req := httptest.NewRequest("POST", "/v1/explain", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", rec.Code)
	}
}

func TestMiddleware_ValidKey(t *testing.T) {
	handler := Middleware(DefaultConfig([]string{"secret"}))(okHandler())

	tests := []struct {
		name   string
		setKey func(r *http.Request)
	}{
		{"header", func(r *http.Request) { r.Header.Set("X-API-Key", "secret") }},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/explain", nil)
			tt.setKey(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Errorf("expected 200 with valid key, got %d", rec.Code)
			}
		})
	}
}

func TestMiddleware_InvalidKey(t *testing.T) {
	handler := Middleware(DefaultConfig([]string{"secret"}))(okHandler())

	req := httptest.NewRequest("POST", "/v1/explain", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong key, got %d", rec.Code)
	}
}

func TestMiddleware_HealthBypass(t *testing.T) {
	handler := Middleware(DefaultConfig([]string{"secret"}))(okHandler())

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected /health to bypass auth, got %d", rec.Code)
	}
}
