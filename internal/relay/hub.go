package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"evopanel/internal/domain"
	"evopanel/internal/metrics"
)

// relayEvent is the single event name gateway payloads are delivered under.
const relayEvent = "whatsapp"

// Frame is the JSON protocol pushed to relay clients.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins (configure CORS for production)
	},
}

// Hub is the realtime relay: every connected client receives every broadcast
// event. No per-client filtering, no backpressure, no delivery guarantees.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*hubClient
}

// hubClient tracks one connected WebSocket client.
type hubClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[string]*hubClient),
	}
}

// HandleUpgrade mounts the WebSocket endpoint on an HTTP mux.
func (h *Hub) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	client := &hubClient{conn: conn}
	clientID := fmt.Sprintf("%s-%d", r.RemoteAddr, time.Now().UnixNano())

	h.mu.Lock()
	h.clients[clientID] = client
	h.mu.Unlock()
	metrics.RelayClients.Inc()

	h.logger.Info("relay client connected",
		"client_id", clientID, "origin", r.Header.Get("Origin"))

	defer func() {
		h.mu.Lock()
		delete(h.clients, clientID)
		h.mu.Unlock()
		metrics.RelayClients.Dec()
		conn.Close()
		h.logger.Info("relay client disconnected", "client_id", clientID)
	}()

	// Read loop. Inbound frames are ignored; the loop only detects close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Error("relay read error", "err", err)
			}
			return
		}
	}
}

// HandleEvent is the bus subscriber: relay the payload to every client.
func (h *Hub) HandleEvent(evt domain.InboundEvent) {
	h.Broadcast(evt.Body)
}

// Broadcast pushes one frame to all connected clients. A failed write is
// logged and skipped; the event is lost for that client.
func (h *Hub) Broadcast(payload []byte) {
	data, err := json.Marshal(Frame{Event: relayEvent, Data: payload})
	if err != nil {
		h.logger.Error("relay frame marshal failed", "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, client := range h.clients {
		client.mu.Lock()
		err := client.conn.WriteMessage(websocket.TextMessage, data)
		client.mu.Unlock()
		if err != nil {
			h.logger.Debug("relay write failed", "client_id", id, "err", err)
		}
	}
	metrics.EventsBroadcast.Inc()
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client (shutdown path).
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.conn.Close()
		delete(h.clients, id)
	}
}
