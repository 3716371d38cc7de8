package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gochat-realtime/internal/rooms"
)

// Stats describes the live state of the hub.
type Stats struct {
	Connections int `json:"connections"`
	rooms.Stats
}

// Hub is the connection manager. It accepts upgraded connections, runs their
// pumps, and guarantees every connection is released from the room registry
// when its transport closes.
type Hub struct {
	cfg      Config
	log      *slog.Logger
	registry *rooms.Registry[*Client]
	presence *Presence
	router   *Router
	origins  *originPolicy
	upgrader websocket.Upgrader

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub for cfg. A nil cfg uses NewConfig defaults.
func NewHub(cfg *Config, log *slog.Logger) *Hub {
	if cfg == nil {
		cfg = NewConfig()
	}
	if log == nil {
		log = slog.Default()
	}
	sanitized := cfg.sanitized()

	registry := rooms.NewRegistry[*Client]()
	presence := NewPresence(registry, log)
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		cfg:        sanitized,
		log:        log,
		registry:   registry,
		presence:   presence,
		router:     NewRouter(registry, presence, log),
		origins:    newOriginPolicy(sanitized.AllowedOrigins, log),
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.origins.check,
	}
	return h
}

// Registry exposes the room registry the hub routes through.
func (h *Hub) Registry() *rooms.Registry[*Client] {
	return h.registry
}

// Register hands a client to the running hub, which starts its pumps.
func (h *Hub) Register(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.ctx.Done():
		return ErrHubStopped
	}
}

// disconnect is called once the client's read pump has stopped.
func (h *Hub) disconnect(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
		h.release(c)
	}
}

// Run starts the hub's main event loop. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("received nil client registration; skipping")
				continue
			}
			h.add(client)

		case client := <-h.unregister:
			h.release(client)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mutex.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mutex.Unlock()
	c.log.Info("client registered", "clients", count)

	if c.conn == nil {
		return
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()
}

// release forgets the client, detaches it from every room and closes its
// send queue. It is safe to call more than once.
func (h *Hub) release(c *Client) {
	h.mutex.Lock()
	_, known := h.clients[c]
	delete(h.clients, c)
	count := len(h.clients)
	h.mutex.Unlock()

	h.presence.Disconnect(c)
	c.close()

	if known {
		c.log.Info("client unregistered", "clients", count)
	}
}

// shutdownClients closes every connection; their read pumps then release them.
func (h *Hub) shutdownClients() {
	h.log.Info("shutting down all client connections")

	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.RUnlock()

	for _, client := range clients {
		if client.conn == nil {
			h.release(client)
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			client.log.Warn("error closing client connection", "error", err)
		}
	}

	h.log.Info("closed client connections", "count", len(clients))
}

// Stats returns connection and room counts.
func (h *Hub) Stats() Stats {
	h.mutex.RLock()
	connections := len(h.clients)
	h.mutex.RUnlock()

	return Stats{Connections: connections, Stats: h.registry.Stats()}
}

// Shutdown stops the hub, closes all connections and waits for their pumps
// to finish, or until timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")
	h.cancel()

	deadline := time.After(timeout)

	select {
	case <-h.done:
	case <-deadline:
		h.log.Warn("hub loop did not stop before timeout")
		return context.DeadlineExceeded
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.registry.Reset()
		h.log.Info("hub shutdown completed")
		return nil
	case <-deadline:
		h.log.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}

// Upgrade upgrades an HTTP request and registers the resulting client.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) (*Client, error) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	client := NewClient(conn, h, r.RemoteAddr)
	if err := h.Register(client); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return client, nil
}
