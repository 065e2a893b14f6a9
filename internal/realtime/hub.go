package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"otplink/internal/metrics"
)

const (
	writeWait  = 5 * time.Second
	queueDepth = 64
)

// Event is the frame sent to every client.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans record events out to connected WebSocket clients.
type Hub struct {
	clients    map[*websocket.Conn]bool
	clientsMux sync.Mutex
	broadcast  chan Event
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Event, queueDepth),
		logger:    logger.Named("ws"),
	}
}

// Broadcast queues an event. Events are dropped when the queue is full so
// the SMS pipeline never waits on slow clients.
func (h *Hub) Broadcast(event string, payload interface{}) {
	select {
	case h.broadcast <- Event{Type: event, Payload: payload}:
	default:
		h.logger.Warn("event queue full, dropping", zap.String("type", event))
	}
}

// Run delivers queued events until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case ev := <-h.broadcast:
			h.send(ev)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

func (h *Hub) send(ev Event) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteJSON(ev); err != nil {
			h.logger.Debug("dropping client", zap.Error(err))
			client.Close()
			delete(h.clients, client)
		}
	}
	metrics.WebSocketClients.Set(float64(len(h.clients)))
}

func (h *Hub) closeAll() {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	for client := range h.clients {
		client.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		client.Close()
		delete(h.clients, client)
	}
	metrics.WebSocketClients.Set(0)
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and keeps the client registered until it
// disconnects. Inbound frames are read and discarded.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.clientsMux.Lock()
	h.clients[conn] = true
	metrics.WebSocketClients.Set(float64(len(h.clients)))
	h.clientsMux.Unlock()

	defer func() {
		h.clientsMux.Lock()
		delete(h.clients, conn)
		metrics.WebSocketClients.Set(float64(len(h.clients)))
		h.clientsMux.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
