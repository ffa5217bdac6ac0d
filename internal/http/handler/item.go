package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jaekwang-park/todo-sync/internal/service"
	"github.com/jaekwang-park/todo-sync/internal/storage"
)

const (
	maxBodySize       = 1 << 20  // 1 MB
	maxAttachmentSize = 32 << 20 // 32 MB
)

type ItemHandler struct {
	svc *service.ItemService
}

func NewItemHandler(svc *service.ItemService) *ItemHandler {
	return &ItemHandler{svc: svc}
}

// ServeHTTP routes /api/v1/items and everything below it except the watch
// endpoint.
func (h *ItemHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// /api/v1/items/{ref}/{sub}/{name}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/items")
	path = strings.Trim(path, "/")

	var ref, sub, name string
	if path != "" {
		parts := strings.SplitN(path, "/", 3)
		ref = parts[0]
		if len(parts) > 1 {
			sub = parts[1]
		}
		if len(parts) > 2 {
			name = parts[2]
		}
	}

	switch {
	case ref == "":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleAdd(w, r)
		default:
			methodNotAllowed(w)
		}

	case sub == "":
		switch r.Method {
		case http.MethodGet:
			h.handleGet(w, r, ref)
		case http.MethodPatch:
			h.handleUpdate(w, r, ref)
		case http.MethodDelete:
			h.handleDelete(w, r, ref)
		default:
			methodNotAllowed(w)
		}

	case sub == "toggle" && name == "":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.handleToggle(w, r, ref)

	case sub == "attachments" && name == "":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.handleAttach(w, r, ref)

	case sub == "attachments":
		switch r.Method {
		case http.MethodGet:
			h.handleDownload(w, r, ref, name)
		case http.MethodDelete:
			h.handleDetach(w, r, ref, name)
		default:
			methodNotAllowed(w)
		}

	default:
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "endpoint not found")
	}
}

func (h *ItemHandler) handleList(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"items": h.svc.List()})
}

func (h *ItemHandler) handleAdd(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusCreated, h.svc.Add())
}

func (h *ItemHandler) handleGet(w http.ResponseWriter, r *http.Request, ref string) {
	item, err := h.svc.Get(ref)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, item)
}

type updateItemRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Deadline    *string `json:"deadline,omitempty"`
	Done        *bool   `json:"done,omitempty"`
}

func (h *ItemHandler) handleUpdate(w http.ResponseWriter, r *http.Request, ref string) {
	var req updateItemRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}

	item, err := h.svc.Update(ref, service.UpdateItemInput{
		Title:       req.Title,
		Description: req.Description,
		Deadline:    req.Deadline,
		Done:        req.Done,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) handleToggle(w http.ResponseWriter, r *http.Request, ref string) {
	item, err := h.svc.ToggleDone(ref)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, item)
}

// handleDelete answers 202: the item is hidden at once and removed
// remotely in the background.
func (h *ItemHandler) handleDelete(w http.ResponseWriter, r *http.Request, ref string) {
	if err := h.svc.Delete(ref); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *ItemHandler) handleAttach(w http.ResponseWriter, r *http.Request, ref string) {
	name := r.URL.Query().Get("name")
	if name == "" {
		WriteError(w, http.StatusBadRequest, "INVALID_INPUT", "name query parameter is required")
		return
	}
	if r.ContentLength > maxAttachmentSize {
		WriteError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", "attachment too large")
		return
	}

	item, err := h.svc.Attach(r.Context(), ref, service.AttachInput{
		Name:        name,
		Body:        http.MaxBytesReader(w, r.Body, maxAttachmentSize),
		Size:        r.ContentLength,
		ContentType: r.Header.Get("Content-Type"),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusCreated, item)
}

func (h *ItemHandler) handleDetach(w http.ResponseWriter, r *http.Request, ref, name string) {
	item, err := h.svc.Detach(r.Context(), ref, name)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) handleDownload(w http.ResponseWriter, r *http.Request, ref, name string) {
	url, err := h.svc.DownloadURL(r.Context(), ref, name)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func methodNotAllowed(w http.ResponseWriter) {
	WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, service.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, service.ErrNotSynced):
		WriteError(w, http.StatusConflict, "NOT_SYNCED", "item has not been saved remotely yet")
	case errors.Is(err, storage.ErrThrottled):
		WriteError(w, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "storage is throttling requests")
	case errors.Is(err, storage.ErrAccessDenied), errors.Is(err, storage.ErrNoSuchBucket):
		slog.ErrorContext(r.Context(), "storage error", "path", r.URL.Path, "error", err)
		WriteError(w, http.StatusBadGateway, "STORAGE_ERROR", "attachment storage unavailable")
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", "attachment too large")
			return
		}
		slog.ErrorContext(r.Context(), "internal error", "path", r.URL.Path, "error", err)
		WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
