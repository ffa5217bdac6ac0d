package handler

import (
	"net/http"

	"github.com/jaekwang-park/todo-sync/internal/syncer"
)

type StatusSource interface {
	Status() syncer.Status
}

// SyncStatusHandler reports remote operations in flight and failed ones.
type SyncStatusHandler struct {
	src StatusSource
}

func NewSyncStatusHandler(src StatusSource) *SyncStatusHandler {
	return &SyncStatusHandler{src: src}
}

func (h *SyncStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	WriteJSON(w, http.StatusOK, h.src.Status())
}
