package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"live-quiz-service/internal/domain"
)

var (
	errUnknownConn = errors.New("unknown connection")
	errConnClosed  = errors.New("connection closed")
)

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// Hub owns the per-connection send queues. It implements app.Transport.
type Hub struct {
	buffer int
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[domain.ConnID]*client
}

type client struct {
	id   domain.ConnID
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{buffer: buffer, logger: logger, clients: make(map[domain.ConnID]*client)}
}

func (h *Hub) register(id domain.ConnID) *client {
	c := &client{id: id, send: make(chan []byte, h.buffer)}
	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()
	return c
}

// unregister forgets the connection and closes its queue so the writer exits.
func (h *Hub) unregister(id domain.ConnID) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

// Deliver encodes event and queues it for conn without blocking.
func (h *Hub) Deliver(conn domain.ConnID, event domain.Event) error {
	h.mu.RLock()
	c, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return errUnknownConn
	}
	data, err := json.Marshal(outboundMessage[any]{Type: string(event.Type), Payload: event.Payload})
	if err != nil {
		return err
	}
	dropped, err := c.enqueue(data)
	if err != nil {
		return err
	}
	if dropped {
		h.logger.Info("slow client, dropped oldest message", "conn", conn)
	}
	return nil
}

// Connections reports how many sockets are registered.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// enqueue drops the oldest queued message when the buffer is full.
func (c *client) enqueue(data []byte) (dropped bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, errConnClosed
	}
	for {
		select {
		case c.send <- data:
			return dropped, nil
		default:
		}
		select {
		case <-c.send:
			dropped = true
		default:
		}
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
