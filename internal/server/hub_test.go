package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, h *Hub) {
	t.Helper()
	go h.Run()
	t.Cleanup(func() {
		_ = h.Shutdown(time.Second)
	})
}

func TestNewHubDefaults(t *testing.T) {
	h := NewHub(nil, nil)

	require.NotNil(t, h.registry)
	require.NotNil(t, h.router)
	require.Equal(t, *NewConfig(), h.cfg)
	require.Equal(t, Stats{}, h.Stats())
}

func TestNewClient(t *testing.T) {
	h := newTestHub(t, func(cfg *Config) { cfg.SendQueueSize = 8 })
	c1, c2 := newTestClient(h), newTestClient(h)

	require.NotEmpty(t, c1.ID())
	require.NotEqual(t, c1.ID(), c2.ID())
	require.Equal(t, "127.0.0.1:0", c1.Addr())
	require.Empty(t, c1.UserID())
	require.Equal(t, 8, cap(c1.GetSendChan()))
	requireNoEvent(t, c1)
}

func TestClientCloseIsIdempotent(t *testing.T) {
	h := newTestHub(t, nil)
	c := newTestClient(h)

	require.True(t, c.close())
	require.False(t, c.close())
	require.True(t, c.isClosed())

	_, ok := <-c.GetSendChan()
	require.False(t, ok)
}

func TestHubReleasesClientOnDisconnect(t *testing.T) {
	req := require.New(t)
	h := newTestHub(t, nil)
	startHub(t, h)

	c := newTestClient(h)
	req.NoError(h.Register(c))
	req.Eventually(func() bool { return h.Stats().Connections == 1 }, time.Second, 5*time.Millisecond)

	setupUser(t, h, c, "u1")
	req.NoError(dispatch(t, h, c, EventJoinChat, "conv1"))
	req.Equal(2, h.Stats().Rooms)

	h.disconnect(c)
	req.Eventually(func() bool { return h.Stats().Connections == 0 }, time.Second, 5*time.Millisecond)
	req.Equal(0, h.registry.Len())
	req.True(c.isClosed())
	req.ErrorIs(c.Send([]byte("late")), ErrConnectionClosed)
}

func TestHubDisconnectAfterShutdownStillReleases(t *testing.T) {
	h := newTestHub(t, nil)
	go h.Run()

	c := NewClient(nil, h, "127.0.0.1:0")
	require.NoError(t, h.Register(c))
	require.NoError(t, dispatch(t, h, c, EventJoinChat, "conv1"))

	require.NoError(t, h.Shutdown(time.Second))

	h.disconnect(c)
	require.True(t, c.isClosed())
	require.Empty(t, h.registry.RoomsOf(c))
}

func TestHubRegisterAfterShutdown(t *testing.T) {
	h := newTestHub(t, nil)
	go h.Run()
	require.NoError(t, h.Shutdown(time.Second))

	require.ErrorIs(t, h.Register(newTestClient(h)), ErrHubStopped)
}

func TestHubShutdownWithoutRun(t *testing.T) {
	h := newTestHub(t, nil)
	require.Error(t, h.Shutdown(20*time.Millisecond))
}

func TestHubSkipsNilRegistration(t *testing.T) {
	h := newTestHub(t, nil)
	startHub(t, h)

	require.NoError(t, h.Register(nil))
	require.NoError(t, h.Register(newTestClient(h)))
	require.Eventually(t, func() bool { return h.Stats().Connections == 1 }, time.Second, 5*time.Millisecond)
}

func TestHubConcurrentClients(t *testing.T) {
	h := newTestHub(t, nil)
	startHub(t, h)

	const n = 50
	clients := make([]*Client, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		clients[i] = newTestClient(h)
		go func(c *Client) {
			defer wg.Done()
			_ = h.Register(c)
			_ = dispatch(t, h, c, EventJoinChat, "lobby")
			h.disconnect(c)
		}(clients[i])
	}
	wg.Wait()

	require.Eventually(t, func() bool { return h.Stats().Connections == 0 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, h.registry.Len())
}
