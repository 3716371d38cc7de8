package server

import (
	"errors"
	"strings"
)

var (
	// ErrMalformedEvent reports an inbound event with a missing or invalid field.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUnknownEvent reports an inbound event name with no registered handler.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrHandlerPanic reports a handler that panicked while processing an event.
	ErrHandlerPanic = errors.New("event handler panic")
	// ErrSendQueueFull reports a push dropped because the member's queue is full.
	ErrSendQueueFull = errors.New("send queue full")
	// ErrConnectionClosed reports a push to a connection that already closed.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrHubStopped reports a registration attempted after shutdown.
	ErrHubStopped = errors.New("hub stopped")
)

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
