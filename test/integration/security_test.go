package integration

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gochat-realtime/internal/server"
	"github.com/Tyrowin/gochat-realtime/test/testhelpers"
)

// TestOriginValidation checks only configured origins may upgrade.
func TestOriginValidation(t *testing.T) {
	env := testhelpers.StartServer(t, nil)

	cases := map[string]bool{
		testhelpers.TestOrigin:     true,
		"HTTP://LOCALHOST:8080":    true,
		"http://evil.example":      false,
		"https://localhost:8080":   false,
		"":                         false,
		"not-a-valid-origin-value": false,
	}

	for origin, allowed := range cases {
		conn, err := testhelpers.ConnectWebSocketWithOrigin(env.WSURL, origin)
		if allowed {
			require.NoError(t, err, "origin %q", origin)
			_ = conn.Close()
			continue
		}
		require.Error(t, err, "origin %q", origin)
	}
}

// TestOversizedMessageClosesConnection checks an oversized frame ends the
// connection and releases its rooms.
func TestOversizedMessageClosesConnection(t *testing.T) {
	env := testhelpers.StartServer(t, func(cfg *server.Config) {
		cfg.MaxMessageSize = 256
	})

	sender := env.MustSetup(t, "u1")
	receiver := env.MustSetup(t, "u2")
	require.NoError(t, testhelpers.Emit(sender, server.EventJoinChat, "conv1"))
	env.WaitForStats(t, func(s server.Stats) bool { return s.Memberships == 3 })

	oversized := newMessage("u1", "u1", "u2")
	oversized["content"] = strings.Repeat("A", 512)
	_ = testhelpers.Emit(sender, server.EventNewMessage, oversized)

	env.WaitForStats(t, func(s server.Stats) bool {
		return s.Connections == 1 && s.Memberships == 1
	})

	_, err := testhelpers.ReadEvent(sender, time.Second)
	require.Error(t, err)
	testhelpers.ExpectNoEvent(t, receiver, quiet)
}

// TestRateLimitDropsExcessEvents floods typing events and checks the
// receiver sees at most the burst.
func TestRateLimitDropsExcessEvents(t *testing.T) {
	const burst = 5
	env := testhelpers.StartServer(t, func(cfg *server.Config) {
		cfg.RateLimit = server.RateLimitConfig{Burst: burst, RefillInterval: time.Hour}
	})

	receiver := env.MustSetup(t, "u2")
	require.NoError(t, testhelpers.Emit(receiver, server.EventJoinChat, "conv1"))

	sender := env.MustConnect(t)
	require.NoError(t, testhelpers.Emit(sender, server.EventJoinChat, "conv1"))
	env.WaitForStats(t, func(s server.Stats) bool { return s.Memberships == 3 })

	for i := 0; i < 20; i++ {
		require.NoError(t, testhelpers.Emit(sender, server.EventTyping, "conv1"))
	}

	received := 0
	for {
		evt, err := testhelpers.ReadEvent(receiver, quiet)
		if err != nil {
			break
		}
		require.Equal(t, server.EventTyping, evt.Event)
		received++
	}
	require.Equal(t, burst-1, received)
	require.Equal(t, 2, env.Hub.Stats().Connections)
}
