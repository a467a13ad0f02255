// internal/bridge/hub.go
package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	serialhelper "github.com/rusminto/serial.helper"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 256
)

// Event is one message streamed to console clients.
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// clientMessage is one inbound message from a console client.
type clientMessage struct {
	Type      string `json:"type"`
	Data      string `json:"data,omitempty"`
	Newline   bool   `json:"newline,omitempty"`
	TimeoutMS int    `json:"timeout_ms,omitempty"`
}

// Client is one connected console.
type Client struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`

	ws   *websocket.Conn
	send chan []byte
}

// Hub upgrades console connections and fans serial events out to all of
// them. Slow clients are dropped rather than allowed to stall the feed.
type Hub struct {
	conn     *serialhelper.Conn
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates the hub over one serial connection.
func NewHub(conn *serialhelper.Conn, logger *zap.Logger) *Hub {
	return &Hub{
		conn:   conn,
		logger: logger.With(zap.String("component", "hub")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[string]*Client),
	}
}

// HandleConnection upgrades one HTTP request into a console client.
func (h *Hub) HandleConnection(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.NewString(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
		ws:          ws,
		send:        make(chan []byte, sendBufferSize),
	}

	h.register(client)
	h.logger.Info("console client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	go h.readPump(client)
	go h.writePump(client)
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Clients returns a snapshot of the connected clients.
func (h *Hub) Clients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// Broadcast sends an event to every connected client. Sends never block;
// a client with a full buffer loses the event.
func (h *Hub) Broadcast(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to marshal event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("client send buffer full, dropping event",
				zap.String("client_id", client.ID),
			)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.send)
	}
	h.mu.Unlock()
}

// readPump consumes client messages until the connection drops.
func (h *Hub) readPump(client *Client) {
	defer func() {
		h.unregister(client)
		client.ws.Close()
		h.logger.Info("console client disconnected", zap.String("client_id", client.ID))
	}()

	client.ws.SetReadDeadline(time.Now().Add(pongWait))
	client.ws.SetPongHandler(func(string) error {
		client.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := client.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("websocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.sendEvent(client, Event{Type: "error", Data: "malformed message", Timestamp: time.Now()})
			continue
		}
		h.handleMessage(client, &msg)
	}
}

// writePump flushes the send buffer and keeps the connection alive.
func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.ws.Close()
	}()

	for {
		select {
		case payload, ok := <-client.send:
			client.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Error("websocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage executes one console command.
func (h *Hub) handleMessage(client *Client, msg *clientMessage) {
	switch msg.Type {
	case "send":
		var err error
		if msg.Newline {
			err = h.conn.Println(msg.Data)
		} else {
			err = h.conn.Write(msg.Data)
		}
		if err != nil {
			h.sendEvent(client, Event{Type: "error", Data: err.Error(), Timestamp: time.Now()})
		}

	case "request":
		go h.handleRequest(client, msg)

	case "ping":
		h.sendEvent(client, Event{Type: "pong", Timestamp: time.Now()})

	default:
		h.logger.Warn("unknown message type",
			zap.String("type", msg.Type),
			zap.String("client_id", client.ID),
		)
		h.sendEvent(client, Event{Type: "error", Data: "unknown message type", Timestamp: time.Now()})
	}
}

// handleRequest runs one request round trip and sends the reply back to the
// asking client only.
func (h *Hub) handleRequest(client *Client, msg *clientMessage) {
	timeout := time.Duration(msg.TimeoutMS) * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rec, err := h.conn.Request(ctx, msg.Data, timeout)
	switch {
	case err != nil:
		h.sendEvent(client, Event{Type: "error", Data: err.Error(), Timestamp: time.Now()})
	case rec == nil:
		h.sendEvent(client, Event{Type: "reply", Data: nil, Timestamp: time.Now()})
	default:
		h.sendEvent(client, Event{Type: "reply", Data: rec.Payload(), Timestamp: time.Now()})
	}
}

// sendEvent queues an event for one client without blocking.
func (h *Hub) sendEvent(client *Client, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to marshal event", zap.Error(err))
		return
	}
	select {
	case client.send <- payload:
	default:
		h.logger.Warn("client send buffer full, dropping event",
			zap.String("client_id", client.ID),
		)
	}
}
