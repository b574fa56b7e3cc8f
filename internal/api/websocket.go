package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"coinfolio/internal/auth"
	"coinfolio/internal/events"
	"coinfolio/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are vetted by the CORS layer; the upgrade itself is open
		return true
	},
}

// WSClient represents one WebSocket connection
type WSClient struct {
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	userID    string
	closeChan chan struct{}
}

// Hub fans journal and snapshot events out to connected clients. Events
// carrying a user ID go only to that user's connections; the rest go to
// everyone.
type Hub struct {
	clients     map[*WSClient]bool
	userClients map[string][]*WSClient
	events      chan events.Event
	register    chan *WSClient
	unregister  chan *WSClient
	done        chan struct{}
	closeOnce   sync.Once
	mu          sync.RWMutex
	logger      *logging.Logger
}

// NewHub creates the hub, starts its loop and wires it to the event bus
func NewHub(eventBus *events.EventBus, logger *logging.Logger) *Hub {
	hub := &Hub{
		clients:     make(map[*WSClient]bool),
		userClients: make(map[string][]*WSClient),
		events:      make(chan events.Event, 4096),
		register:    make(chan *WSClient),
		unregister:  make(chan *WSClient),
		done:        make(chan struct{}),
		logger:      logger.WithComponent("websocket"),
	}

	go hub.run()

	eventBus.SubscribeAll(func(event events.Event) {
		select {
		case hub.events <- event:
		default:
			hub.logger.Warn("Event channel full, dropping message", "type", string(event.Type))
		}
	})

	return hub
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if client.userID != "" {
				h.userClients[client.userID] = append(h.userClients[client.userID], client)
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				if client.userID != "" {
					h.removeClientFromUserMap(client)
				}
			}
			h.mu.Unlock()

		case event := <-h.events:
			h.deliver(event)

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.userClients = make(map[string][]*WSClient)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) deliver(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := make([]*WSClient, 0)
	if event.UserID != "" {
		targets = append(targets, h.userClients[event.UserID]...)
	} else {
		for client := range h.clients {
			targets = append(targets, client)
		}
	}

	for _, client := range targets {
		select {
		case client.send <- data:
		default:
			// Client's send channel is full, unregister it
			go func(c *WSClient) {
				h.unregister <- c
			}(client)
		}
	}
}

// removeClientFromUserMap removes a client from the userClients map.
// Caller must hold the write lock.
func (h *Hub) removeClientFromUserMap(client *WSClient) {
	clients, ok := h.userClients[client.userID]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.userClients[client.userID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.userClients[client.userID]) == 0 {
		delete(h.userClients, client.userID)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the hub loop and drops every connection
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

// writePump pumps messages from the hub to the websocket connection
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closeChan:
			return
		}
	}
}

// readPump pumps messages from the websocket connection to the hub
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		close(c.closeChan)
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("WebSocket read error", "error", err)
			}
			break
		}
		// Clients only listen; inbound messages are ignored
	}
}

// handleWebSocket upgrades the connection and registers the client
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := &WSClient{
		conn:      conn,
		send:      make(chan []byte, 256),
		hub:       s.hub,
		userID:    auth.GetUserID(c),
		closeChan: make(chan struct{}),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	// Send initial connection confirmation
	welcomeMsg := map[string]interface{}{
		"type":      "CONNECTED",
		"message":   "WebSocket connection established",
		"timestamp": time.Now(),
	}
	if data, err := json.Marshal(welcomeMsg); err == nil {
		select {
		case client.send <- data:
		default:
		}
	}
}
