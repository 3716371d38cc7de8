package server

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Inbound event names.
const (
	EventSetup      = "setup"
	EventJoinChat   = "join chat"
	EventLeaveChat  = "leave chat"
	EventTyping     = "typing"
	EventStopTyping = "stop typing"
	EventNewMessage = "new message"
)

// Outbound event names. Typing events reuse the inbound names.
const (
	EventConnected       = "connected"
	EventMessageReceived = "messageReceived"
)

// Envelope is the JSON frame exchanged in both directions: one envelope per
// WebSocket text message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SetupPayload binds a connection to the user it belongs to.
type SetupPayload struct {
	UserID string `json:"userId" validate:"required,max=256"`
}

// RoomRef is the object form of a room event payload. A bare JSON string is
// accepted as well.
type RoomRef struct {
	RoomID string `json:"roomId" validate:"required,max=256"`
}

// Participant is a user reference inside a chat message.
type Participant struct {
	UserID string `json:"userId" validate:"required"`
}

// ChatRef carries the recipients of a message.
type ChatRef struct {
	Users []Participant `json:"users" validate:"required,dive"`
}

// NewMessagePayload holds the fields the router needs from a "new message"
// event. The complete inbound object is relayed to recipients unchanged.
type NewMessagePayload struct {
	Chat   *ChatRef     `json:"chat" validate:"required"`
	Sender *Participant `json:"sender" validate:"required"`
}

func encodeEvent(event string, data json.RawMessage) ([]byte, error) {
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", event, err)
	}
	return frame, nil
}

func decodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	env.Event = strings.TrimSpace(env.Event)
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event name", ErrMalformedEvent)
	}
	return env, nil
}

// decodeRoomRef accepts either "roomId" or {"roomId": "..."}.
func decodeRoomRef(data json.RawMessage) (RoomRef, error) {
	var ref RoomRef
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		ref.RoomID = id
	} else if err := json.Unmarshal(data, &ref); err != nil {
		return RoomRef{}, fmt.Errorf("%w: room id: %v", ErrMalformedEvent, err)
	}
	ref.RoomID = strings.TrimSpace(ref.RoomID)
	return ref, nil
}
