package http

import (
	"log/slog"
	"net/http"

	"github.com/jaekwang-park/todo-sync/internal/http/handler"
	"github.com/jaekwang-park/todo-sync/internal/service"
)

// Deps are the services the HTTP layer exposes.
type Deps struct {
	Items          *service.ItemService
	Sessions       *service.SessionService
	Sync           handler.StatusSource
	HealthChecks   []handler.HealthCheck
	AllowedOrigins []string
}

func NewRouter(deps Deps, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check - intentionally outside /api/v1 for ALB health check compatibility
	mux.Handle("/health", handler.NewHealthHandler(deps.HealthChecks...))

	mux.Handle("/api/v1/session", handler.NewSessionHandler(deps.Sessions))
	mux.Handle("/api/v1/sync/status", handler.NewSyncStatusHandler(deps.Sync))

	// Item API; the watch stream is matched before the item prefix
	items := handler.NewItemHandler(deps.Items)
	mux.Handle("/api/v1/items", items)
	mux.Handle("/api/v1/items/", items)
	mux.Handle("/api/v1/items/watch", handler.NewWatchHandler(deps.Items, deps.AllowedOrigins, logger))

	return mux
}
