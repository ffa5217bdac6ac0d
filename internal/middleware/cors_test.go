package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jaekwang-park/todo-sync/internal/middleware"
)

func TestCORS(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		origins    []string
		origin     string
		wantHeader string
	}{
		{"allowed origin", []string{"https://app.example.com"}, "https://app.example.com", "https://app.example.com"},
		{"foreign origin", []string{"https://app.example.com"}, "https://evil.example.com", ""},
		{"disabled", nil, "https://app.example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()

			middleware.CORS(tt.origins)(inner).ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("expected Access-Control-Allow-Origin %q, got %q", tt.wantHeader, got)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/items/abc", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	w := httptest.NewRecorder()

	middleware.CORS([]string{"https://app.example.com"})(inner).ServeHTTP(w, req)

	if called {
		t.Error("expected preflight to be answered by the CORS handler")
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != http.MethodPatch {
		t.Errorf("expected PATCH allowed, got %q", got)
	}
}
