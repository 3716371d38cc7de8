package server

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T, customize func(cfg *Config)) *Hub {
	t.Helper()
	cfg := NewConfig()
	if customize != nil {
		customize(cfg)
	}
	return NewHub(cfg, newLogger(io.Discard, "error"))
}

func newTestClient(h *Hub) *Client {
	return NewClient(nil, h, "127.0.0.1:0")
}

func mustFrame(t *testing.T, event string, data any) []byte {
	t.Helper()
	env := map[string]any{"event": event}
	if data != nil {
		env["data"] = data
	}
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

func dispatch(t *testing.T, h *Hub, c *Client, event string, data any) error {
	t.Helper()
	return h.router.Dispatch(c, mustFrame(t, event, data))
}

func requireEvent(t *testing.T, c *Client, event string) Envelope {
	t.Helper()
	select {
	case frame := <-c.GetSendChan():
		var env Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		require.Equal(t, event, env.Event)
		return env
	default:
		require.Failf(t, "no event queued", "expected %q on %s", event, c.ID())
		return Envelope{}
	}
}

func requireNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case frame := <-c.GetSendChan():
		require.Failf(t, "unexpected event", "%s received %s", c.ID(), frame)
	default:
	}
}

func setupUser(t *testing.T, h *Hub, c *Client, userID string) {
	t.Helper()
	require.NoError(t, dispatch(t, h, c, EventSetup, map[string]string{"userId": userID}))
	requireEvent(t, c, EventConnected)
}
