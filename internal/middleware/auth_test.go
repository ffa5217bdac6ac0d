package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jaekwang-park/todo-sync/internal/middleware"
)

type mockVerifier struct {
	verifyFn func(token string) (string, error)
}

func (m *mockVerifier) Verify(token string) (string, error) {
	return m.verifyFn(token)
}

func tokenVerifier() *mockVerifier {
	return &mockVerifier{verifyFn: func(token string) (string, error) {
		if token == "good-token" {
			return "session-1", nil
		}
		return "", errors.New("invalid token")
	}}
}

func TestNewAuth_RequiresVerifier(t *testing.T) {
	if _, err := middleware.NewAuth(middleware.AuthConfig{}); err == nil {
		t.Error("expected error without verifier")
	}
	if _, err := middleware.NewAuth(middleware.AuthConfig{DevMode: true}); err != nil {
		t.Errorf("unexpected error in dev mode: %v", err)
	}
}

func TestAuth_DevMode(t *testing.T) {
	auth, _ := middleware.NewAuth(middleware.AuthConfig{DevMode: true})

	var captured string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = middleware.GetSessionID(r)
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name        string
		target      string
		header      string
		wantStatus  int
		wantSession string
	}{
		{"with header", "/api/v1/items", "dev-1", http.StatusOK, "dev-1"},
		{"with query", "/api/v1/items/watch?session_id=dev-2", "", http.StatusOK, "dev-2"},
		{"without session", "/api/v1/items", "", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captured = ""
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("X-Session-ID", tt.header)
			}
			w := httptest.NewRecorder()

			auth.Middleware(inner).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if captured != tt.wantSession {
				t.Errorf("expected session %q, got %q", tt.wantSession, captured)
			}
		})
	}
}

func TestAuth_SkipsPublicEndpoints(t *testing.T) {
	auth, _ := middleware.NewAuth(middleware.AuthConfig{Verifier: tokenVerifier()})

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	requests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/health"},
		{http.MethodPost, "/api/v1/session"},
		{http.MethodOptions, "/api/v1/items"},
	}

	for _, rq := range requests {
		w := httptest.NewRecorder()
		auth.Middleware(inner).ServeHTTP(w, httptest.NewRequest(rq.method, rq.path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s %s: expected 200, got %d", rq.method, rq.path, w.Code)
		}
	}
}

func TestAuth_Token(t *testing.T) {
	auth, _ := middleware.NewAuth(middleware.AuthConfig{Verifier: tokenVerifier()})

	var captured string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = middleware.GetSessionID(r)
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		target     string
		authHeader string
		wantStatus int
	}{
		{"valid bearer", "/api/v1/items", "Bearer good-token", http.StatusOK},
		{"valid query token", "/api/v1/items/watch?access_token=good-token", "", http.StatusOK},
		{"missing header", "/api/v1/items", "", http.StatusUnauthorized},
		{"wrong scheme", "/api/v1/items", "Basic good-token", http.StatusUnauthorized},
		{"empty bearer", "/api/v1/items", "Bearer ", http.StatusUnauthorized},
		{"invalid token", "/api/v1/items", "Bearer bad-token", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captured = ""
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()

			auth.Middleware(inner).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d (body: %s)", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus == http.StatusOK && captured != "session-1" {
				t.Errorf("expected session-1, got %q", captured)
			}
		})
	}
}
