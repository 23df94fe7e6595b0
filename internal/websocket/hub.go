package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer in front of the API
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	EventPresenceJoin  = "presence.join"
	EventPresenceLeave = "presence.leave"
	EventActivity      = "activity"
	EventNotification  = "notification"
)

// Event is the envelope of every message pushed to dashboard clients.
type Event struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Presence describes one online user.
type Presence struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	OnlineAt time.Time `json:"online_at"`
}

// Client represents a single connected WebSocket client
type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	presence Presence
}

type directMessage struct {
	userID uuid.UUID
	data   []byte
}

// Hub tracks connected clients, keeps the online user list and fans events
// out to everyone or to one user's connections.
type Hub struct {
	clients    map[*Client]bool
	online     map[uuid.UUID]*onlineUser
	broadcast  chan []byte
	direct     chan directMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	log        *zap.Logger
}

type onlineUser struct {
	presence    Presence
	connections int
}

// NewHub initializes a new WS Hub instance
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		online:     make(map[uuid.UUID]*onlineUser),
		broadcast:  make(chan []byte, 256),
		direct:     make(chan directMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the core dispatch loop for WebSocket events. It returns when
// ctx is done and must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.online = make(map[uuid.UUID]*onlineUser)
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				h.sendLocked(client, message)
			}
			h.mu.Unlock()
		case msg := <-h.direct:
			h.mu.Lock()
			for client := range h.clients {
				if client.presence.UserID == msg.userID {
					h.sendLocked(client, msg.data)
				}
			}
			h.mu.Unlock()
		}
	}
}

// join hands a client to the dispatch loop. It reports false once Run has
// returned.
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// leave is a no-op once Run has returned; Run already closed every client.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	uid := client.presence.UserID
	u, ok := h.online[uid]
	if !ok {
		u = &onlineUser{presence: client.presence}
		h.online[uid] = u
	}
	u.connections++
	first := !ok
	var join []byte
	if first {
		join = encode(Event{Type: EventPresenceJoin, Payload: u.presence, At: time.Now()})
		for c := range h.clients {
			h.sendLocked(c, join)
		}
	}
	h.mu.Unlock()
	h.log.Debug("websocket client connected", zap.String("user_id", uid.String()), zap.Bool("first_connection", first))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	h.dropPresenceLocked(client)
	h.log.Debug("websocket client disconnected", zap.String("user_id", client.presence.UserID.String()))
}

func (h *Hub) dropPresenceLocked(client *Client) {
	uid := client.presence.UserID
	u, ok := h.online[uid]
	if !ok {
		return
	}
	u.connections--
	if u.connections > 0 {
		return
	}
	delete(h.online, uid)
	leave := encode(Event{Type: EventPresenceLeave, Payload: u.presence, At: time.Now()})
	for c := range h.clients {
		h.sendLocked(c, leave)
	}
}

// sendLocked queues a message, dropping clients whose buffer is full.
func (h *Hub) sendLocked(client *Client, message []byte) {
	if message == nil {
		return
	}
	select {
	case client.Send <- message:
	default:
		close(client.Send)
		delete(h.clients, client)
		h.dropPresenceLocked(client)
	}
}

// Publish broadcasts an event to every connected client.
func (h *Hub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	data := encode(event)
	if data == nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("websocket broadcast queue full, event dropped", zap.String("type", event.Type))
	}
}

// SendToUser delivers an event to every connection of one user.
func (h *Hub) SendToUser(userID uuid.UUID, event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	data := encode(event)
	if data == nil {
		return
	}
	select {
	case h.direct <- directMessage{userID: userID, data: data}:
	default:
		h.log.Warn("websocket direct queue full, event dropped", zap.String("type", event.Type), zap.String("user_id", userID.String()))
	}
}

// Online lists users with at least one open connection, ordered by username.
func (h *Hub) Online() []Presence {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Presence, 0, len(h.online))
	for _, u := range h.online {
		out = append(out, u.presence)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func encode(event Event) []byte {
	data, err := json.Marshal(event)
	if err != nil {
		return nil
	}
	return data
}

// writePump handles writing messages from the Hub to the WebSocket connection
func (c *Client) writePump() {
	defer func() {
		_ = c.Conn.Close()
	}()
	for message := range c.Send {
		w, err := c.Conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		_, _ = w.Write(message)

		// Fast track writing queued messages
		n := len(c.Send)
		for i := 0; i < n; i++ {
			_, _ = w.Write([]byte{'\n'})
			_, _ = w.Write(<-c.Send)
		}

		if err := w.Close(); err != nil {
			return
		}
	}
	_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump keeps the connection alive until the peer goes away
func (c *Client) readPump() {
	defer func() {
		c.Hub.leave(c)
		_ = c.Conn.Close()
	}()
	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("websocket read failed", zap.Error(err))
			}
			break
		}
	}
}

// Authenticator turns the token passed on the websocket URL into the
// presence of the connecting user.
type Authenticator func(ctx context.Context, token string) (Presence, error)

// ServeWs handles websocket requests from the peer
func ServeWs(hub *Hub, c *gin.Context, authenticate Authenticator) {
	tokenString := c.Query("token")
	if tokenString == "" {
		hub.log.Info("websocket connection rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	presence, err := authenticate(c.Request.Context(), tokenString)
	if err != nil {
		hub.log.Info("websocket connection rejected", zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	presence.OnlineAt = time.Now()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{Hub: hub, Conn: conn, Send: make(chan []byte, 256), presence: presence}
	if !hub.join(client) {
		hub.log.Info("websocket connection rejected: hub stopped")
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in new goroutines
	go client.writePump()
	go client.readPump()
}
