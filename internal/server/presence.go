package server

import (
	"log/slog"

	"github.com/Tyrowin/gochat-realtime/internal/rooms"
)

// Presence keeps the registry in step with connection lifecycle: setup binds
// a connection to its user's personal room, transport close removes it from
// every room.
type Presence struct {
	registry *rooms.Registry[*Client]
	log      *slog.Logger
}

// NewPresence returns a tracker writing to registry.
func NewPresence(registry *rooms.Registry[*Client], log *slog.Logger) *Presence {
	return &Presence{registry: registry, log: log}
}

// Setup joins c to the personal room of userID and replies "connected" to c
// only. A connection holds at most one personal room, so a setup naming a
// different user leaves the previous one first.
func (p *Presence) Setup(c *Client, userID string) error {
	previous := c.bindUser(userID)
	if previous != "" && previous != userID {
		p.registry.Leave(previous, c)
		p.log.Info("connection switched user", "conn_id", c.ID(), "from", previous, "user_id", userID)
	}

	if p.registry.Join(userID, c) {
		p.log.Info("connection joined personal room", "conn_id", c.ID(), "user_id", userID)
	}

	return c.Emit(EventConnected, nil)
}

// Disconnect removes c from every room it joined. Only the first call for a
// connection has an effect.
func (p *Presence) Disconnect(c *Client) {
	c.leaveOnce.Do(func() {
		left := p.registry.LeaveAll(c)
		p.log.Info("connection left all rooms",
			"conn_id", c.ID(), "user_id", c.UserID(), "rooms", len(left))
	})
}
