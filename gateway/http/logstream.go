package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/lvmgate/lvm2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBacklog  = 64
	maxMessageSize = 512
)

// logEvent is the wire form of one engine log line
type logEvent struct {
	Level   string `json:"level"`
	File    string `json:"file"`
	Line    int    `json:"line"`
	DMErrno int    `json:"dm_errno,omitempty"`
	Message string `json:"message"`
}

// logHub fans engine log lines out to WebSocket subscribers. The tap runs
// on the engine's callback path while the command lock is held, so publish
// must never block: slow subscribers lose lines instead.
type logHub struct {
	logger     *slog.Logger
	clients    map[*logClient]struct{}
	broadcast  chan []byte
	register   chan *logClient
	unregister chan *logClient
	done       chan struct{}
}

func newLogHub(logger *slog.Logger) *logHub {
	return &logHub{
		logger:     logger,
		clients:    make(map[*logClient]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *logClient),
		unregister: make(chan *logClient),
		done:       make(chan struct{}),
	}
}

func (h *logHub) run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case data := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// publish converts a log line to its wire form and hands it to the hub.
// Drops the line if the hub's buffer is full.
func (h *logHub) publish(line lvm2.Line) {
	data, err := json.Marshal(logEvent{
		Level:   line.Level.String(),
		File:    line.File,
		Line:    line.LineNo,
		DMErrno: line.DMErrno,
		Message: line.Message,
	})
	if err != nil {
		return
	}

	select {
	case h.broadcast <- data:
	default:
	}
}

// attach registers a subscriber. Returns false when the hub has already
// shut down, so callers racing Stop never block on the register channel.
func (h *logHub) attach(c *logClient) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// detach unregisters a subscriber, returning immediately if the hub has
// shut down and nobody is draining the unregister channel anymore.
func (h *logHub) detach(c *logClient) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *logHub) close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// logClient is one WebSocket subscriber
type logClient struct {
	hub  *logHub
	conn *websocket.Conn
	send chan []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleLogStream upgrades the connection and streams engine log lines
func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	client := &logClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, clientBacklog),
	}
	if !s.hub.attach(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump discards inbound frames and detects closed connections
func (c *logClient) readPump() {
	defer func() {
		c.hub.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump forwards hub messages to the connection and keeps it alive
func (c *logClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
