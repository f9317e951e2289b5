package game

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"crashgame/internal/logger"
)

const (
	HUB_BUFFER    = 100
	WRITE_TIMEOUT = 10 * time.Second
)

type Client struct {
	conn   *websocket.Conn
	userID string
	mu     sync.Mutex
}

// Hub fans game notifications out to websocket clients. Broadcast never
// blocks: when the buffer is full the message is dropped.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan interface{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan interface{}, HUB_BUFFER),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        logger.OrNop(log),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				client.conn.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client connected", zap.String("user_id", client.userID), zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.conn.Close()
				h.log.Debug("client disconnected", zap.String("user_id", client.userID), zap.Int("total", len(h.clients)))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.log.Warn("marshal broadcast", zap.Error(err))
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				go client.send(data, h.log)
			}
			h.mu.RUnlock()
		}
	}
}

// Stop terminates Run and closes every connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) Broadcast(message interface{}) {
	select {
	case h.broadcast <- message:
	default:
		h.log.Warn("broadcast channel full, dropping message")
	}
}

// Notify implements Notifier.
func (h *Hub) Notify(kind string, payload interface{}) {
	h.Broadcast(WSMessage{Type: kind, Data: payload})
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) send(data []byte, log *zap.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Debug("websocket write failed", zap.String("user_id", c.userID), zap.Error(err))
	}
}

// SendJSON writes a single message to this client only.
func (c *Client) SendJSON(message interface{}, log *zap.Logger) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Warn("marshal direct message", zap.Error(err))
		return
	}
	c.send(data, log)
}

func (h *Hub) RegisterClient(conn *websocket.Conn, userID string) *Client {
	client := &Client{
		conn:   conn,
		userID: userID,
	}
	select {
	case h.register <- client:
	case <-h.done:
	}
	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
