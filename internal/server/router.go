package server

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/Tyrowin/gochat-realtime/internal/rooms"
)

type eventHandler func(c *Client, data json.RawMessage) error

// Router validates inbound events and turns them into registry mutations and
// outbound pushes. Every failure is confined to the event that caused it.
type Router struct {
	registry *rooms.Registry[*Client]
	presence *Presence
	validate *validator.Validate
	log      *slog.Logger
	handlers map[string]eventHandler
}

// NewRouter builds the dispatch table for the inbound events.
func NewRouter(registry *rooms.Registry[*Client], presence *Presence, log *slog.Logger) *Router {
	rt := &Router{
		registry: registry,
		presence: presence,
		validate: validator.New(),
		log:      log,
	}
	rt.handlers = map[string]eventHandler{
		EventSetup:      rt.handleSetup,
		EventJoinChat:   rt.handleJoinChat,
		EventLeaveChat:  rt.handleLeaveChat,
		EventTyping:     rt.relayTo(EventTyping),
		EventStopTyping: rt.relayTo(EventStopTyping),
		EventNewMessage: rt.handleNewMessage,
	}
	return rt
}

// Dispatch decodes one inbound frame from c and runs its handler. The
// returned error is for logging; the connection stays open.
func (rt *Router) Dispatch(c *Client, raw []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	env, err := decodeEnvelope(raw)
	if err != nil {
		return err
	}

	handler, ok := rt.handlers[env.Event]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	if err := handler(c, env.Data); err != nil {
		return fmt.Errorf("%s: %w", env.Event, err)
	}
	return nil
}

func (rt *Router) check(v any) error {
	if err := rt.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

func (rt *Router) roomRef(data json.RawMessage) (RoomRef, error) {
	ref, err := decodeRoomRef(data)
	if err != nil {
		return RoomRef{}, err
	}
	return ref, rt.check(ref)
}

func (rt *Router) handleSetup(c *Client, data json.RawMessage) error {
	var payload SetupPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := rt.check(payload); err != nil {
		return err
	}
	return rt.presence.Setup(c, payload.UserID)
}

func (rt *Router) handleJoinChat(c *Client, data json.RawMessage) error {
	ref, err := rt.roomRef(data)
	if err != nil {
		return err
	}
	if rt.registry.Join(ref.RoomID, c) {
		rt.log.Debug("connection joined room", "conn_id", c.ID(), "room_id", ref.RoomID)
	}
	return nil
}

func (rt *Router) handleLeaveChat(c *Client, data json.RawMessage) error {
	ref, err := rt.roomRef(data)
	if err != nil {
		return err
	}
	if ref.RoomID == c.UserID() {
		return fmt.Errorf("%w: cannot leave personal room %q", ErrMalformedEvent, ref.RoomID)
	}
	if rt.registry.Leave(ref.RoomID, c) {
		rt.log.Debug("connection left room", "conn_id", c.ID(), "room_id", ref.RoomID)
	}
	return nil
}

// relayTo broadcasts the named event to the room, excluding the sender.
func (rt *Router) relayTo(event string) eventHandler {
	return func(c *Client, data json.RawMessage) error {
		ref, err := rt.roomRef(data)
		if err != nil {
			return err
		}
		roomID, err := json.Marshal(ref.RoomID)
		if err != nil {
			return err
		}
		frame, err := encodeEvent(event, roomID)
		if err != nil {
			return err
		}
		rt.deliver(rt.registry.Members(ref.RoomID), c, frame)
		return nil
	}
}

func (rt *Router) handleNewMessage(c *Client, data json.RawMessage) error {
	var payload NewMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := rt.check(payload); err != nil {
		return err
	}

	frame, err := encodeEvent(EventMessageReceived, data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	recipients := lo.Uniq(lo.FilterMap(payload.Chat.Users, func(u Participant, _ int) (string, bool) {
		return u.UserID, u.UserID != payload.Sender.UserID
	}))
	delivered := 0
	for _, userID := range recipients {
		delivered += rt.deliver(rt.registry.Members(userID), c, frame)
	}

	rt.log.Debug("message fanned out",
		"conn_id", c.ID(), "user_id", payload.Sender.UserID,
		"recipients", len(recipients), "delivered", delivered)
	return nil
}

// deliver pushes frame to every member except the sender. A failing member
// is skipped; the rest still receive the frame.
func (rt *Router) deliver(members []*Client, sender *Client, frame []byte) int {
	delivered := 0
	for _, member := range members {
		if member == sender {
			continue
		}
		if err := member.Send(frame); err != nil {
			rt.log.Warn("dropping outbound event for member", "conn_id", member.ID(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}
