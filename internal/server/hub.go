package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

// Client is one websocket session. Everything written to the connection
// goes through its send buffer and writePump.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan Message
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{ID: uuid.NewString(), conn: conn, send: make(chan Message, sendBuffer)}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			log.WithField("session", c.ID).Printf("[Hub] Write error: %v", err)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

// Hub manages WebSocket clients.
type Hub struct {
	clients    map[string]*Client
	mu         sync.Mutex
	broadcast  chan Message
	unregister chan *Client
	done       chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan Message, 64),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop. It disconnects every client when ctx
// ends.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			close(h.done)
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.send)
			}
			h.mu.Unlock()
			return
		case client := <-h.unregister:
			h.drop(client.ID)
		case message := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				select {
				case client.send <- message:
				default:
					log.WithField("session", id).Warn("[Hub] Client too slow, disconnecting")
					delete(h.clients, id)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// join registers client. It fails once the hub has stopped.
func (h *Hub) join(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		return false
	default:
	}
	h.clients[client.ID] = client
	log.WithField("session", client.ID).Info("[Hub] WebSocket client connected.")
	return true
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) drop(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(client.send)
		log.WithField("session", id).Info("[Hub] WebSocket client disconnected.")
	}
}

// Broadcast sends a message to all connected clients. It never blocks; when
// the hub is backed up the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		log.WithField("type", msg.Type).Warn("[Hub] Broadcast queue full, dropping message")
	}
}

// Send delivers msg to one session and reports whether it was queued.
func (h *Hub) Send(session string, msg Message) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[session]
	if !ok {
		return false
	}
	select {
	case client.send <- msg:
		return true
	default:
		return false
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
