package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/jpeg"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		// the stream is read-only apart from control commands, which the
		// HTTP endpoints expose to any origin as well
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	// clientQueue is small on purpose: slow clients skip frames instead of
	// building up latency.
	clientQueue = 4
)

type outbound struct {
	kind int
	data []byte
}

type client struct {
	conn *websocket.Conn
	send chan outbound
}

// Hub fans annotated frames and status messages out to WebSocket clients.
// It implements pipeline.Display.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	quality int
	closed  bool
}

// NewHub returns a hub encoding frames at the given JPEG quality.
func NewHub(quality int) *Hub {
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	return &Hub{clients: make(map[*client]struct{}), quality: quality}
}

// Show encodes img once and queues it for every client. Without clients the
// frame is not encoded at all.
func (h *Hub) Show(img image.Image) {
	if h.Clients() == 0 {
		return
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: h.quality}); err != nil {
		slog.Warn("Failed to encode stream frame", "error", err)
		return
	}
	h.broadcast(outbound{kind: websocket.BinaryMessage, data: buf.Bytes()})
}

// BroadcastJSON queues m for every client.
func (h *Hub) BroadcastJSON(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		slog.Warn("Failed to encode stream message", "type", m.Type, "error", err)
		return
	}
	h.broadcast(outbound{kind: websocket.TextMessage, data: data})
}

func (h *Hub) broadcast(o outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- o:
		default:
			websocketMessagesTotal.WithLabelValues("dropped").Inc()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	websocketConnections.Inc()
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		websocketConnections.Dec()
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		websocketConnections.Dec()
	}
}

// wsHandler upgrades the connection, streams frames and accepts commands.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		s.writeErrorResponse(w, "stream_disabled", "frame stream is not enabled", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan outbound, clientQueue)}
	if !s.hub.register(c) {
		_ = conn.Close()
		return
	}
	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	go s.writePump(c)
	s.sendJSON(c, Message{Type: "status", Payload: s.ctrl.Stats()})
	s.readPump(c)
}

// writePump owns all writes to the connection.
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case o, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(o.kind, o.data); err != nil {
				return
			}
			websocketMessagesTotal.WithLabelValues("sent").Inc()
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump handles client commands until the connection closes.
func (s *Server) readPump(c *client) {
	defer s.hub.unregister(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		if messageType == websocket.TextMessage {
			s.handleCommand(c, data)
		}
	}
}

func (s *Server) handleCommand(c *client, data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.sendJSON(c, Message{Type: "error", Payload: ErrorResponse{Error: "invalid_request", Message: err.Error()}})
		return
	}

	var err error
	switch cmd.Type {
	case "start":
		err = s.ctrl.Start(s.baseCtx)
	case "stop":
		err = s.ctrl.Stop()
	case "source":
		err = s.ctrl.OpenSource(cmd.Source)
	case "status":
	default:
		s.sendJSON(c, Message{Type: "error", Payload: ErrorResponse{Error: "invalid_request", Message: "unknown command " + cmd.Type}})
		return
	}
	if err != nil {
		s.sendJSON(c, Message{Type: "error", Payload: ErrorResponse{Error: errorKind(err), Message: err.Error()}})
	}
	s.sendJSON(c, Message{Type: "status", Payload: s.ctrl.Stats()})
}

// sendJSON queues m for one client, dropping it when the queue is full.
func (s *Server) sendJSON(c *client, m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if _, ok := s.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- outbound{kind: websocket.TextMessage, data: data}:
	default:
		websocketMessagesTotal.WithLabelValues("dropped").Inc()
	}
}
