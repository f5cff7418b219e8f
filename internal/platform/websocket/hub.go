// Package websocket delivers real-time inbox events to connected staff. The
// hub keys connections by user id: every event is addressed to exactly one
// user, and a user may hold several connections (two browser tabs both get
// the popup).
package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/careflow/careflow/internal/platform/auth"
)

// Event types pushed to clients.
const (
	EventUnreadCount = "unread_count"
	EventPopup       = "popup"
)

// Event is one real-time notification frame.
type Event struct {
	Type      string          `json:"type"`
	UserID    string          `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SessionObserver is told when a user's first connection arrives and when
// their last connection drops. The delivery coordinator hangs its poll
// sessions off these callbacks.
type SessionObserver interface {
	Attached(ctx context.Context, userID string)
	Detached(userID string)
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is a single WebSocket connection bound to a user.
type Client struct {
	UserID string
	Send   chan []byte
	conn   Conn
}

// Hub tracks connections per user. All operations are safe for concurrent
// use.
type Hub struct {
	mu       sync.RWMutex
	users    map[string]map[*Client]struct{}
	observer SessionObserver
}

func NewHub() *Hub {
	return &Hub{users: make(map[string]map[*Client]struct{})}
}

// SetObserver installs the session lifecycle observer. Must be called before
// the first Register.
func (h *Hub) SetObserver(o SessionObserver) {
	h.observer = o
}

// Register adds a connection. The observer fires only for the user's first
// live connection; a second tab joins the existing session.
func (h *Hub) Register(ctx context.Context, client *Client) {
	h.mu.Lock()
	first := h.users[client.UserID] == nil
	if first {
		h.users[client.UserID] = make(map[*Client]struct{})
	}
	h.users[client.UserID][client] = struct{}{}
	h.mu.Unlock()

	if first && h.observer != nil {
		h.observer.Attached(ctx, client.UserID)
	}
}

// Unregister drops a connection and closes its send channel. The observer
// fires when the user's last connection goes.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	conns, ok := h.users[client.UserID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, present := conns[client]; !present {
		h.mu.Unlock()
		return
	}
	delete(conns, client)
	close(client.Send)
	last := len(conns) == 0
	if last {
		delete(h.users, client.UserID)
	}
	h.mu.Unlock()

	if last && h.observer != nil {
		h.observer.Detached(client.UserID)
	}
}

// SendToUser delivers an event to every connection the user holds. Slow
// connections are skipped rather than blocking the sender.
func (h *Hub) SendToUser(userID string, event Event) {
	event.UserID = userID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("websocket: failed to marshal event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.users[userID] {
		select {
		case client.Send <- data:
		default:
			// Client buffer full; skip to avoid blocking.
		}
	}
}

// ClientCount returns the total number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.users {
		n += len(conns)
	}
	return n
}

// UserCount returns the number of distinct connected users.
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

// ---------------------------------------------------------------------------
// Handler - Echo HTTP handler for WebSocket upgrades
// ---------------------------------------------------------------------------

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", h.HandleConnect)
}

// HandleConnect upgrades the request and binds the connection to the
// authenticated user.
func (h *Handler) HandleConnect(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	if userID == "" {
		userID = c.QueryParam("user_id")
	}
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user identity required")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		UserID: userID,
		Send:   make(chan []byte, 256),
		conn:   &gorillaConnAdapter{ws},
	}

	h.hub.Register(c.Request().Context(), client)

	go h.writePump(client)
	go h.readPump(client)

	return nil
}

// readPump drains inbound frames until the peer goes away. Clients send
// nothing meaningful; the read loop exists to detect disconnects.
func (h *Handler) readPump(client *Client) {
	defer func() {
		h.hub.Unregister(client)
		client.conn.Close()
	}()

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Handler) writePump(client *Client) {
	defer client.conn.Close()

	for message := range client.Send {
		if err := client.conn.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			break
		}
	}
}

type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
