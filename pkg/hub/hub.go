// Package hub fans messages out to websocket clients. A Hub owns its client
// set; all mutation happens on the Run goroutine.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

const (
	broadcastBuffer = 256
	clientBuffer    = 256
)

// Message is one broadcast payload. Camera frames go out as binary
// websocket frames, everything else as text.
type Message struct {
	Data  []byte
	Frame bool
}

// Encoder is a payload that renders its own wire form, such as a protocol
// transcript snapshot.
type Encoder interface {
	Bytes() ([]byte, error)
}

// Encoded renders e as a text message.
func Encoded(e Encoder) (Message, error) {
	data, err := e.Bytes()
	if err != nil {
		return Message{}, err
	}
	return Message{Data: data}, nil
}

// FrameMessage wraps a JPEG camera frame.
func FrameMessage(jpeg []byte) Message {
	return Message{Data: jpeg, Frame: true}
}

// Hub tracks connected clients and broadcasts to them. Slow clients whose
// buffer is full are dropped rather than blocking the others.
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex
	count   int
	running atomic.Bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// New creates a hub. Call Run before serving clients.
func New(name string, opts ...Option) *Hub {
	h := &Hub{
		name:       name,
		logger:     slog.Default(),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "hub", "hub", name)
	return h
}

// Name returns the hub name.
func (h *Hub) Name() string {
	return h.name
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client's queue.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		for c := range h.clients {
			h.remove(c)
		}
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c] = true
			h.setCount()
			h.logger.Info("client connected", "clients", len(h.clients))

		case c := <-h.unregister:
			if h.clients[c] {
				h.remove(c)
				h.logger.Info("client disconnected", "clients", len(h.clients))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.remove(c)
					h.logger.Warn("dropped slow client", "clients", len(h.clients))
				}
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
}

// Broadcast queues msg for every client. It never blocks; when the queue is
// full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast queue full, dropping message")
	}
}

// BroadcastJSON encodes v and broadcasts it.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(Message{Data: data})
	return nil
}

// BroadcastFrame broadcasts a JPEG camera frame.
func (h *Hub) BroadcastFrame(jpeg []byte) {
	h.Broadcast(FrameMessage(jpeg))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Running reports whether Run is active.
func (h *Hub) Running() bool {
	return h.running.Load()
}
