package sse

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Welkro/Tides-and-Currents-Predictions/internal/chart"
)

// Event types sent to clients.
const (
	EventConnected = "connected"
	EventPoint     = "point"
	EventStatus    = "status"
	EventReset     = "reset"
)

const clientBuffer = 256

// Message is one Server-Sent Event.
type Message struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PointData is the payload of a point event.
type PointData struct {
	Series string  `json:"series"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Hub fans messages out to connected clients. Slow clients drop messages
// instead of blocking playback.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]chan Message
	seq     int64
	logger  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]chan Message),
		logger:  logger,
	}
}

// AddClient registers a client and returns its id and message channel.
func (h *Hub) AddClient() (string, <-chan Message) {
	id := uuid.NewString()
	ch := make(chan Message, clientBuffer)

	h.mu.Lock()
	h.clients[id] = ch
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("sse client connected", "client", id, "total", total)
	return id, ch
}

// RemoveClient unregisters a client and closes its channel.
func (h *Hub) RemoveClient(id string) {
	h.mu.Lock()
	ch, ok := h.clients[id]
	if ok {
		close(ch)
		delete(h.clients, id)
	}
	remaining := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.logger.Debug("sse client disconnected", "client", id, "remaining", remaining)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to every client.
func (h *Hub) Broadcast(msgType string, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	msg := Message{ID: h.seq, Type: msgType, Data: data, Timestamp: time.Now().UTC()}
	for id, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			h.logger.Warn("sse client channel full, dropping message", "client", id, "type", msgType)
		}
	}
}

// OnPoint implements chart.Listener.
func (h *Hub) OnPoint(series string, p chart.Point) {
	h.Broadcast(EventPoint, PointData{Series: series, X: p.X, Y: p.Y})
}

// OnReset implements chart.ResetListener. Clients receive the cleared layout
// and drop the points they hold.
func (h *Hub) OnReset(l chart.Layout) {
	h.Broadcast(EventReset, l)
}
