package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"thientam/internal/logger"
	"thientam/pkg/models"
)

const sendBuffer = 64

// Hub fans content events out to every connected client.
type Hub struct {
	mu         sync.Mutex
	clients    map[*client]struct{}
	broadcast  chan models.Event
	register   chan *client
	unregister chan *client
	done       chan struct{}
	log        *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan models.Event, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run xử lý đăng ký / hủy / phát tin cho tới khi ctx kết thúc
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("ws client connected", "remote", c.remote, "clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.log.Debug("ws client disconnected", "remote", c.remote)
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			data, err := json.Marshal(ev)
			if err != nil {
				h.log.Error("marshal event", "err", err, "type", ev.Type)
				continue
			}
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// client chậm: bỏ kết nối
					h.log.Warn("ws send buffer full, dropping client", "remote", c.remote)
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with h.mu held.
func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
}

// Publish queues ev for broadcast. It never blocks the caller; events are
// discarded when the queue is full.
func (h *Hub) Publish(ev models.Event) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().Unix()
	}
	select {
	case h.broadcast <- ev:
	default:
		h.log.Warn("ws broadcast queue full, event dropped", "type", ev.Type)
	}
}

// join and leave give up once Run has returned.
func (h *Hub) join(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	remote string
}
