package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vainnor/active-flights/types"
)

var writeWait = 5 * time.Second

// Hub pushes registry snapshots to every connected websocket client.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	// writeMu serializes broadcasts; a connection allows one writer at a time.
	writeMu sync.Mutex
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the connection and keeps it registered until the
// client goes away. Anything the client sends is discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("feed client connected", zap.String("remote", conn.RemoteAddr().String()))

	for {
		if _, _, err := conn.NextReader(); err != nil {
			h.drop(conn)
			h.logger.Info("feed client disconnected", zap.String("remote", conn.RemoteAddr().String()))
			return
		}
	}
}

// Broadcast sends flights to every client as one JSON array. Clients whose
// write fails are disconnected. Writes happen outside the client lock so a
// slow client never holds up connects, Clients or Close.
func (h *Hub) Broadcast(flights []types.FlightRecord) error {
	msg, err := json.Marshal(flights)
	if err != nil {
		return err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	for _, conn := range h.snapshot() {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Warn("feed write failed", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
			h.drop(conn)
		}
	}
	return nil
}

func (h *Hub) snapshot() []*websocket.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	return conns
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	for conn := range h.clients {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		err = multierr.Append(err, conn.Close())
		delete(h.clients, conn)
	}
	return err
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		conn.Close()
		delete(h.clients, conn)
	}
}
