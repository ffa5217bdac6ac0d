package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jaekwang-park/todo-sync/internal/http/handler"
	"github.com/jaekwang-park/todo-sync/internal/model"
	"github.com/jaekwang-park/todo-sync/internal/service"
	"github.com/jaekwang-park/todo-sync/internal/storage"
	"github.com/jaekwang-park/todo-sync/internal/store"
)

type stubRecords struct{}

func (stubRecords) Create(ctx context.Context, rec model.Record) (string, error) { return "", nil }
func (stubRecords) GetAll(ctx context.Context) ([]model.StoredRecord, error)      { return nil, nil }
func (stubRecords) Update(ctx context.Context, id string, changes model.Changes) error {
	return nil
}
func (stubRecords) Delete(ctx context.Context, id string) error { return nil }

// mockBlobs implements storage.Client for testing
type mockBlobs struct {
	uploadErr error
	uploaded  map[string]string
}

func (m *mockBlobs) Upload(ctx context.Context, namespace, name string, body io.Reader, size int64, contentType string) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if m.uploaded == nil {
		m.uploaded = make(map[string]string)
	}
	m.uploaded[namespace+"/"+name] = string(data)
	return nil
}
func (m *mockBlobs) List(ctx context.Context, namespace string) ([]storage.Object, error) {
	return nil, nil
}
func (m *mockBlobs) Delete(ctx context.Context, obj storage.Object) error {
	delete(m.uploaded, obj.Key())
	return nil
}
func (m *mockBlobs) DownloadURL(ctx context.Context, namespace, name string) (string, error) {
	return "https://blobs.example.com/" + namespace + "/" + name + "?sig=1", nil
}

type staticSession struct{}

func (staticSession) Establish(ctx context.Context) (string, error) { return "identity-1", nil }

type fixture struct {
	handler *handler.ItemHandler
	svc     *service.ItemService
	store   *store.Store
	blobs   *mockBlobs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(logger)
	blobs := &mockBlobs{}
	svc := service.NewItemService(st, stubRecords{}, blobs, staticSession{}, logger)
	return &fixture{handler: handler.NewItemHandler(svc), svc: svc, store: st, blobs: blobs}
}

// synced adds an item acknowledged by the remote store as id.
func (f *fixture) synced(id string) {
	it := f.svc.Add()
	f.store.Dispatch(store.AddedToDB{LocalID: it.LocalID, ID: id, Revision: it.Revision})
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decodeItem(t *testing.T, w *httptest.ResponseRecorder) model.Item {
	t.Helper()
	var it model.Item
	if err := json.NewDecoder(w.Body).Decode(&it); err != nil {
		t.Fatalf("failed to decode item: %v", err)
	}
	return it
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var result handler.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	return result.Error.Code
}

func TestItemHandler_AddAndList(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/v1/items", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	created := decodeItem(t, w)
	if created.LocalID == "" || created.Title != model.DefaultTitle {
		t.Errorf("unexpected item %+v", created)
	}

	w = f.do(http.MethodGet, "/api/v1/items", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var result struct {
		Items []model.Item `json:"items"`
	}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].LocalID != created.LocalID {
		t.Errorf("unexpected list %+v", result.Items)
	}
}

func TestItemHandler_Update(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"success", "/api/v1/items/abc", `{"title":"Buy milk","done":true}`, http.StatusOK, ""},
		{"invalid json", "/api/v1/items/abc", `{"title":`, http.StatusBadRequest, "INVALID_JSON"},
		{"unknown field", "/api/v1/items/abc", `{"owner":"x"}`, http.StatusBadRequest, "INVALID_JSON"},
		{"no fields", "/api/v1/items/abc", `{}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"not found", "/api/v1/items/missing", `{"title":"x"}`, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.synced("abc")

			w := f.do(http.MethodPatch, tt.target, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d (body: %s)", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantCode != "" {
				if code := errorCode(t, w); code != tt.wantCode {
					t.Errorf("expected code=%s, got %s", tt.wantCode, code)
				}
				return
			}
			it := decodeItem(t, w)
			if it.Title != "Buy milk" || !it.Done {
				t.Errorf("unexpected item %+v", it)
			}
			if it.State.Kind != model.SyncPendingUpdate {
				t.Errorf("expected pending update, got %s", it.State.Kind)
			}
		})
	}
}

func TestItemHandler_ToggleAndDelete(t *testing.T) {
	f := newFixture(t)
	f.synced("abc")

	w := f.do(http.MethodPost, "/api/v1/items/abc/toggle", "")
	if w.Code != http.StatusOK || !decodeItem(t, w).Done {
		t.Fatalf("toggle failed: %d", w.Code)
	}

	if w := f.do(http.MethodGet, "/api/v1/items/abc/toggle", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET toggle, got %d", w.Code)
	}

	if w := f.do(http.MethodDelete, "/api/v1/items/abc", ""); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/v1/items/abc", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected deleted item to be gone, got %d", w.Code)
	}
}

func TestItemHandler_Attachments(t *testing.T) {
	f := newFixture(t)
	f.synced("abc")
	pending := f.svc.Add()

	w := f.do(http.MethodPost, "/api/v1/items/abc/attachments?name=notes.txt", "hello")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", w.Code, w.Body.String())
	}
	if it := decodeItem(t, w); len(it.Attachments) != 1 || it.Attachments[0] != "notes.txt" {
		t.Errorf("unexpected attachments %v", it.Attachments)
	}
	if f.blobs.uploaded["abc/notes.txt"] != "hello" {
		t.Errorf("unexpected uploads %v", f.blobs.uploaded)
	}

	w = f.do(http.MethodGet, "/api/v1/items/abc/attachments/notes.txt", "")
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://blobs.example.com/abc/notes.txt?sig=1" {
		t.Errorf("unexpected location %q", loc)
	}

	w = f.do(http.MethodPost, "/api/v1/items/"+pending.LocalID+"/attachments?name=a.txt", "x")
	if w.Code != http.StatusConflict || errorCode(t, w) != "NOT_SYNCED" {
		t.Errorf("expected 409 NOT_SYNCED, got %d", w.Code)
	}

	w = f.do(http.MethodPost, "/api/v1/items/abc/attachments", "x")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without name, got %d", w.Code)
	}

	w = f.do(http.MethodDelete, "/api/v1/items/abc/attachments/notes.txt", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if it := decodeItem(t, w); len(it.Attachments) != 0 {
		t.Errorf("expected no attachments, got %v", it.Attachments)
	}

	w = f.do(http.MethodGet, "/api/v1/items/abc/attachments/notes.txt", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after detach, got %d", w.Code)
	}
}

func TestItemHandler_StorageErrors(t *testing.T) {
	tests := []struct {
		name       string
		uploadErr  error
		wantStatus int
		wantCode   string
	}{
		{"throttled", storage.ErrThrottled, http.StatusTooManyRequests, "TOO_MANY_REQUESTS"},
		{"access denied", storage.ErrAccessDenied, http.StatusBadGateway, "STORAGE_ERROR"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.synced("abc")
			f.blobs.uploadErr = tt.uploadErr

			w := f.do(http.MethodPost, "/api/v1/items/abc/attachments?name=a.txt", "x")
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if code := errorCode(t, w); code != tt.wantCode {
				t.Errorf("expected code=%s, got %s", tt.wantCode, code)
			}
		})
	}
}

func TestItemHandler_UnknownRoutes(t *testing.T) {
	f := newFixture(t)
	f.synced("abc")

	tests := []struct {
		method     string
		target     string
		wantStatus int
	}{
		{http.MethodPut, "/api/v1/items", http.StatusMethodNotAllowed},
		{http.MethodPut, "/api/v1/items/abc", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/items/abc/history", http.StatusNotFound},
		{http.MethodPatch, "/api/v1/items/abc/attachments/a.txt", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		if w := f.do(tt.method, tt.target, ""); w.Code != tt.wantStatus {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.target, tt.wantStatus, w.Code)
		}
	}
}
