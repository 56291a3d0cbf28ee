package notify

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans in-app notifications out to connected websocket clients.
// Clients subscribe as an audience ("user:<id>", "shop:<id>", "admins")
// and receive every event addressed to it.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*websocket.Conn]bool
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{clients: map[string]map[*websocket.Conn]bool{}, log: log}
}

// Handler upgrades the connection and keeps it registered until the
// client goes away.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		audience := c.Query("audience")
		if audience == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "audience is required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		h.add(audience, conn)
		defer h.remove(audience, conn)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}
}

func (h *Hub) add(audience string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[audience] == nil {
		h.clients[audience] = map[*websocket.Conn]bool{}
	}
	h.clients[audience][conn] = true
}

func (h *Hub) remove(audience string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[audience], conn)
	if len(h.clients[audience]) == 0 {
		delete(h.clients, audience)
	}
}

// Broadcast writes an event to every client subscribed to audience.
// Write failures only drop that client's delivery; the connection is
// cleaned up by its read loop.
func (h *Hub) Broadcast(audience string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients[audience] {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.log.Warn("websocket write", zap.String("audience", audience), zap.Error(err))
		}
	}
}
