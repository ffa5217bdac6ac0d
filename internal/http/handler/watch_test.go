package handler_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jaekwang-park/todo-sync/internal/http/handler"
	"github.com/jaekwang-park/todo-sync/internal/model"
)

type snapshot struct {
	Type  string       `json:"type"`
	Items []model.Item `json:"items"`
}

func readSnapshot(t *testing.T, conn *websocket.Conn) snapshot {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var s snapshot
	if err := conn.ReadJSON(&s); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	return s
}

func TestWatchHandler_StreamsSnapshots(t *testing.T) {
	f := newFixture(t)
	f.synced("abc")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(handler.NewWatchHandler(f.svc, nil, logger))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	first := readSnapshot(t, conn)
	if first.Type != "snapshot" || len(first.Items) != 1 || first.Items[0].ID != "abc" {
		t.Fatalf("unexpected initial snapshot %+v", first)
	}

	if err := f.svc.Delete("abc"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// A snapshot may be sent before the subscription sees the delete; read
	// until the list is empty.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := readSnapshot(t, conn); len(s.Items) == 0 {
			return
		}
	}
	t.Fatal("expected a snapshot without the deleted item")
}

func TestWatchHandler_RejectsForeignOrigin(t *testing.T) {
	f := newFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(handler.NewWatchHandler(f.svc, []string{"https://app.example.com"}, logger))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	if _, resp, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatal("expected handshake to fail")
	} else if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", resp)
	}

	header.Set("Origin", "https://app.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial allowed origin: %v", err)
	}
	conn.Close()
}
