package wsdispatch

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/and-elf/layered-queue-driver-sub000/internal/domain"
	"github.com/and-elf/layered-queue-driver-sub000/internal/ports"
)

const writeTimeout = 5 * time.Second

// Hub broadcasts output events and snapshots to connected websocket
// clients as JSON. A slow or dead client is dropped rather than allowed to
// stall the tick loop.
type Hub struct {
	obs      ports.Observability
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewHub(obs ports.Observability) *Hub {
	return &Hub{
		obs: obs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

func (h *Hub) Name() string { return "websocket" }

// ServeHTTP upgrades the request and registers the client. Inbound
// messages are drained and discarded; the stream is one-way.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.obs.LogError("websocket upgrade", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.obs.LogInfo("websocket client connected", ports.Field{Key: "clients", Value: n})

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

// Dispatch sends the tick's output events to every connected client.
func (h *Hub) Dispatch(events []domain.OutputEvent) error {
	if len(events) == 0 {
		return nil
	}
	return h.broadcast("events", events)
}

// PublishSnapshots pushes the current signal table view.
func (h *Hub) PublishSnapshots(snaps []domain.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	return h.broadcast("snapshots", snaps)
}

func (h *Hub) broadcast(kind string, payload any) error {
	msg, err := json.Marshal(map[string]any{"kind": kind, "data": payload})
	if err != nil {
		return err
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.drop(c)
		}
	}
	return nil
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	if ok {
		_ = conn.Close()
		h.obs.LogInfo("websocket client dropped")
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.clients = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

var _ ports.Dispatcher = (*Hub)(nil)
