package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jaekwang-park/todo-sync/internal/model"
	"github.com/jaekwang-park/todo-sync/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type snapshotMessage struct {
	Type  string       `json:"type"`
	Items []model.Item `json:"items"`
}

// WatchHandler streams the item list over a WebSocket: one snapshot on
// connect and one after every change. Slow clients skip intermediate
// snapshots and always receive the latest one.
type WatchHandler struct {
	svc      *service.ItemService
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWatchHandler accepts handshakes from allowedOrigins. "*" allows any
// origin and an empty list allows same-origin requests only.
func NewWatchHandler(svc *service.ItemService, allowedOrigins []string, logger *slog.Logger) *WatchHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(allowedOrigins) > 0 {
		allowed := make(map[string]bool, len(allowedOrigins))
		for _, o := range allowedOrigins {
			allowed[o] = true
		}
		upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		}
	}
	return &WatchHandler{svc: svc, upgrader: upgrader, logger: logger}
}

func (h *WatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates := make(chan []model.Item, 1)
	cancel := h.svc.Watch(func(items []model.Item) {
		select {
		case updates <- items:
			return
		default:
		}
		// Replace the unsent snapshot with the newer one.
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- items:
		default:
		}
	})
	defer cancel()

	closed := make(chan struct{})
	go h.readLoop(conn, closed)

	h.logger.Debug("watch started", "remote", r.RemoteAddr)
	defer h.logger.Debug("watch ended", "remote", r.RemoteAddr)

	if err := writeSnapshot(conn, h.svc.List()); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case items := <-updates:
			if err := writeSnapshot(conn, items); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards client messages and closes done when the connection
// goes away.
func (h *WatchHandler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
	}
}

func writeSnapshot(conn *websocket.Conn, items []model.Item) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(snapshotMessage{Type: "snapshot", Items: items})
}
