package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"
)

// TokenVerifier validates a session token and returns its session id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type AuthConfig struct {
	DevMode  bool
	Verifier TokenVerifier
}

type Auth struct {
	cfg AuthConfig
}

func NewAuth(cfg AuthConfig) (*Auth, error) {
	if !cfg.DevMode && cfg.Verifier == nil {
		return nil, fmt.Errorf("middleware: Verifier is required when DevMode is false")
	}
	return &Auth{cfg: cfg}, nil
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health check, session start and CORS preflight are public
		cleanPath := path.Clean(r.URL.Path)
		if cleanPath == "/health" || cleanPath == "/api/v1/session" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.DevMode {
			a.handleDevMode(w, r, next)
			return
		}

		a.handleToken(w, r, next)
	})
}

func (a *Auth) handleDevMode(w http.ResponseWriter, r *http.Request, next http.Handler) {
	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "" {
		sessionID = r.URL.Query().Get("session_id")
	}
	if sessionID == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "X-Session-ID header required in dev mode")
		return
	}

	ctx := SetSessionID(r.Context(), sessionID)
	next.ServeHTTP(w, r.WithContext(ctx))
}

func (a *Auth) handleToken(w http.ResponseWriter, r *http.Request, next http.Handler) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authorization header required")
		return
	}

	sessionID, err := a.cfg.Verifier.Verify(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
		return
	}

	ctx := SetSessionID(r.Context(), sessionID)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// bearerToken reads the token from the Authorization header. Browsers
// cannot set headers on WebSocket handshakes, so an access_token query
// parameter is accepted as well.
func bearerToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if !strings.HasPrefix(h, "Bearer ") {
			return "", false
		}
		token := strings.TrimPrefix(h, "Bearer ")
		return token, token != ""
	}
	token := r.URL.Query().Get("access_token")
	return token, token != ""
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
