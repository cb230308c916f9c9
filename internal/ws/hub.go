// Package ws holds the realtime channel manager: per-user WebSocket
// connections plus an admin broadcast set.
//
// The hub is best-effort by contract. Sends that fail drop the connection;
// all authoritative state lives in PostgreSQL, so a dropped socket loses
// nothing but a live update.
package ws

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/rahulm/quickserve/internal/middleware"
)

// client is one WebSocket connection. Writes are serialized per connection;
// gorilla/websocket does not allow concurrent writers.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub tracks live connections per user and the admin set.
type Hub struct {
	mu     sync.RWMutex
	users  map[uuid.UUID][]*client
	admins map[*client]struct{}

	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		users:  make(map[uuid.UUID][]*client),
		admins: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect cross-origin; auth is the bearer token.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// ─── HTTP handlers ──────────────────────────────────────────

// HandleUser upgrades the request and registers the connection under the
// authenticated user until the socket closes.
func (h *Hub) HandleUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn}
	h.addUser(userID, c)
	h.log.Debug().Str("user_id", userID.String()).Msg("websocket connected")

	// Reads are only used to detect disconnect; clients talk to the REST API.
	go func() {
		defer func() {
			h.removeUser(userID, c)
			conn.Close()
			h.log.Debug().Str("user_id", userID.String()).Msg("websocket disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// HandleAdmin upgrades the request and registers the connection in the admin
// broadcast set. The route is guarded by the admin middleware.
func (h *Hub) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("admin websocket upgrade failed")
		return
	}

	c := &client{conn: conn}
	h.addAdmin(c)

	go func() {
		defer func() {
			h.removeAdmin(c)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// ─── Fan-out ────────────────────────────────────────────────

// SendToUser pushes a JSON message to every connection of a user.
// Best-effort: failed connections are dropped.
func (h *Hub) SendToUser(userID uuid.UUID, v any) {
	h.mu.RLock()
	conns := append([]*client(nil), h.users[userID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.send(v); err != nil {
			h.removeUser(userID, c)
			c.conn.Close()
		}
	}
}

// BroadcastToAdmins pushes a JSON message to every admin connection.
// Best-effort: failed connections are dropped.
func (h *Hub) BroadcastToAdmins(v any) {
	h.mu.RLock()
	conns := make([]*client, 0, len(h.admins))
	for c := range h.admins {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.send(v); err != nil {
			h.removeAdmin(c)
			c.conn.Close()
		}
	}
}

// ─── Registry ───────────────────────────────────────────────

func (h *Hub) addUser(userID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.users[userID] = append(h.users[userID], c)
}

func (h *Hub) removeUser(userID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.users[userID]
	for i, existing := range conns {
		if existing == c {
			h.users[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.users[userID]) == 0 {
		delete(h.users, userID)
	}
}

func (h *Hub) addAdmin(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.admins[c] = struct{}{}
}

func (h *Hub) removeAdmin(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.admins, c)
}
