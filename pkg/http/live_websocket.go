package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"wellbeing-server/pkg/database"
	"wellbeing-server/pkg/metrics"
	"wellbeing-server/pkg/models"
	"wellbeing-server/pkg/realtime"
)

// LiveUsageHandler handles WebSocket connections streaming live usage
// events in and pattern/alert updates out.
type LiveUsageHandler struct {
	logger       *logrus.Logger
	tracker      *realtime.Tracker
	upgrader     websocket.Upgrader
	clients      map[*LiveClient]bool
	clientsMu    sync.RWMutex
	register     chan *LiveClient
	unregister   chan *LiveClient
	broadcast    chan *LiveMessage
	pingInterval time.Duration
}

// LiveClient represents a connected WebSocket client
type LiveClient struct {
	conn      *websocket.Conn
	send      chan []byte
	handler   *LiveUsageHandler
	userID    string // Optional: filter updates to one user
	sessionID string
	mu        sync.RWMutex
}

// LiveMessage is the frame exchanged with clients.
type LiveMessage struct {
	Type      string             `json:"type"`
	UserID    string             `json:"user_id,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Event     *models.UsageEvent `json:"event,omitempty"`
	Update    *realtime.Update   `json:"update,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// NewLiveUsageHandler creates a new live usage WebSocket handler
func NewLiveUsageHandler(logger *logrus.Logger, tracker *realtime.Tracker) *LiveUsageHandler {
	return &LiveUsageHandler{
		logger:  logger,
		tracker: tracker,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return isSameOrigin(r)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients:      make(map[*LiveClient]bool),
		register:     make(chan *LiveClient),
		unregister:   make(chan *LiveClient),
		broadcast:    make(chan *LiveMessage, 256),
		pingInterval: 54 * time.Second,
	}
}

// Start begins the WebSocket handler's event loop
func (h *LiveUsageHandler) Start() {
	go h.run()
}

func (h *LiveUsageHandler) run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			h.clientsMu.Unlock()
			h.logger.WithField("session_id", client.sessionID).Debug("Live usage WebSocket client registered")

		case client := <-h.unregister:
			h.cleanupClients([]*LiveClient{client})

		case message := <-h.broadcast:
			stale := h.broadcastMessage(message)
			if len(stale) > 0 {
				h.cleanupClients(stale)
			}

		case <-ticker.C:
			stale := h.sendPingToAll()
			if len(stale) > 0 {
				h.cleanupClients(stale)
			}
		}
	}
}

func (h *LiveUsageHandler) broadcastMessage(message *LiveMessage) []*LiveClient {
	if message == nil {
		return nil
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal live message")
		return nil
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	var stale []*LiveClient
	for client := range h.clients {
		client.mu.RLock()
		userID := client.userID
		client.mu.RUnlock()

		// Filter by user ID if the client has specified one.
		if userID != "" && userID != message.UserID {
			continue
		}

		select {
		case client.send <- data:
		default:
			stale = append(stale, client)
		}
	}

	return stale
}

func (h *LiveUsageHandler) sendPingToAll() []*LiveClient {
	ping := &LiveMessage{Type: "ping", Timestamp: time.Now()}
	data, _ := json.Marshal(ping)

	h.clientsMu.RLock()
	clients := make([]*LiveClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clientsMu.RUnlock()

	var stale []*LiveClient
	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			stale = append(stale, client)
		}
	}

	return stale
}

func (h *LiveUsageHandler) cleanupClients(clients []*LiveClient) {
	if len(clients) == 0 {
		return
	}

	h.clientsMu.Lock()
	for _, client := range clients {
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			close(client.send)
			h.logger.WithField("session_id", client.sessionID).Debug("Live usage WebSocket client unregistered")
		}
	}
	h.clientsMu.Unlock()
}

// ServeHTTP handles WebSocket upgrade requests
func (h *LiveUsageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade to WebSocket")
		return
	}

	client := &LiveClient{
		conn:      conn,
		send:      make(chan []byte, 256),
		handler:   h,
		userID:    r.URL.Query().Get("user_id"),
		sessionID: uuid.NewString(),
	}

	h.register <- client

	welcome := &LiveMessage{
		Type:      "connected",
		Timestamp: time.Now(),
	}
	if data, err := json.Marshal(welcome); err == nil {
		client.send <- data
	}

	go client.writePump()
	go client.readPump()
}

// GetConnectedClients returns the number of connected clients
func (h *LiveUsageHandler) GetConnectedClients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// BroadcastUpdate pushes a tracker update to interested clients.
func (h *LiveUsageHandler) BroadcastUpdate(userID string, update realtime.Update) {
	message := &LiveMessage{
		Type:      "usage_result",
		UserID:    userID,
		Timestamp: time.Now(),
		Update:    &update,
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("Live broadcast channel full, dropping message")
	}
}

func (c *LiveClient) readPump() {
	defer func() {
		c.handler.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.handler.logger.WithError(err).Debug("WebSocket read error")
			}
			break
		}

		c.handleMessage(message)
	}
}

func (c *LiveClient) writePump() {
	ticker := time.NewTicker(c.handler.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes incoming client frames. usage_update frames
// feed the live tracker; the resulting update is broadcast back.
func (c *LiveClient) handleMessage(message []byte) {
	var msg LiveMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.handler.logger.WithError(err).Debug("Failed to parse client message")
		return
	}

	switch msg.Type {
	case "usage_update":
		if msg.Event == nil {
			c.sendError("usage_update frame missing event")
			return
		}
		if msg.Event.Timestamp.IsZero() {
			msg.Event.Timestamp = time.Now()
		}

		if err := database.ValidateEvent(*msg.Event); err != nil {
			if metrics.UsageEventsRejected != nil {
				metrics.UsageEventsRejected.WithLabelValues("validation").Inc()
			}
			c.sendError(err.Error())
			return
		}

		update := c.handler.tracker.ProcessEvent(*msg.Event)
		c.handler.BroadcastUpdate(msg.Event.UserID, update)

	case "subscribe":
		c.mu.Lock()
		c.userID = msg.UserID
		c.mu.Unlock()
		c.handler.logger.WithFields(logrus.Fields{
			"session_id": c.sessionID,
			"user_id":    msg.UserID,
		}).Debug("Client subscribed to user updates")

	case "ping":
		pong := &LiveMessage{Type: "pong", Timestamp: time.Now()}
		if data, err := json.Marshal(pong); err == nil {
			select {
			case c.send <- data:
			default:
			}
		}

	default:
		c.handler.logger.WithField("type", msg.Type).Debug("Unknown message type from client")
	}
}

func (c *LiveClient) sendError(reason string) {
	frame := &LiveMessage{Type: "error", Timestamp: time.Now(), Error: reason}
	if data, err := json.Marshal(frame); err == nil {
		select {
		case c.send <- data:
		default:
		}
	}
}

// isSameOrigin accepts requests whose Origin host matches the request
// host. Requests without an Origin header (non-browser clients) pass.
func isSameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return parsed.Host == r.Host
}
