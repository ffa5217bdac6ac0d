package handler

import (
	"log/slog"
	"net/http"

	"github.com/jaekwang-park/todo-sync/internal/cognito"
	"github.com/jaekwang-park/todo-sync/internal/service"
)

// SessionHandler starts anonymous sessions.
type SessionHandler struct {
	svc *service.SessionService
}

func NewSessionHandler(svc *service.SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	out, err := h.svc.Start(r.Context())
	if err != nil {
		handleSessionError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusCreated, out)
}

// handleSessionError uses fixed messages so identity provider details do
// not reach clients.
func handleSessionError(w http.ResponseWriter, r *http.Request, err error) {
	if info, ok := cognito.LookupError(err); ok {
		slog.ErrorContext(r.Context(), "session error", "code", info.Code, "detail", err.Error())
		WriteError(w, info.Status, info.Code, sessionErrorMessage(info.Code))
		return
	}

	slog.ErrorContext(r.Context(), "session internal error", "error", err.Error())
	WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

func sessionErrorMessage(code string) string {
	messages := map[string]string{
		"NOT_AUTHORIZED":            "anonymous access is not enabled",
		"IDENTITY_POOL_UNAVAILABLE": "identity service unavailable",
		"TOO_MANY_REQUESTS":         "too many requests, please try again later",
		"LIMIT_EXCEEDED":            "limit exceeded, please try again later",
		"EXTERNAL_SERVICE_ERROR":    "identity service unavailable",
	}
	if msg, ok := messages[code]; ok {
		return msg
	}
	return "internal server error"
}
