package server

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresence_SetupJoinsPersonalRoom(t *testing.T) {
	req := require.New(t)
	h := newTestHub(t, nil)
	c, other := newTestClient(h), newTestClient(h)

	setupUser(t, h, c, "u1")
	req.Equal("u1", c.UserID())
	req.True(h.registry.Contains("u1", c))
	requireNoEvent(t, other)

	// Repeating setup keeps a single membership but still acknowledges.
	setupUser(t, h, c, "u1")
	req.Len(h.registry.Members("u1"), 1)
	req.Equal([]string{"u1"}, h.registry.RoomsOf(c))
}

func TestPresence_SetupWithAnotherUserMovesConnection(t *testing.T) {
	req := require.New(t)
	h := newTestHub(t, nil)
	c := newTestClient(h)

	setupUser(t, h, c, "u1")
	setupUser(t, h, c, "u2")

	req.False(h.registry.Contains("u1", c))
	req.True(h.registry.Contains("u2", c))
	req.Equal("u2", c.UserID())
}

func TestPresence_DisconnectLeavesEveryRoom(t *testing.T) {
	req := require.New(t)
	h := newTestHub(t, nil)
	c, peer := newTestClient(h), newTestClient(h)
	setupUser(t, h, c, "u1")
	setupUser(t, h, peer, "u1")

	for i := 0; i < 10; i++ {
		req.NoError(dispatch(t, h, c, EventJoinChat, fmt.Sprintf("conv%d", i)))
	}
	req.Len(h.registry.RoomsOf(c), 11)

	h.presence.Disconnect(c)
	req.Empty(h.registry.RoomsOf(c))
	for i := 0; i < 10; i++ {
		req.False(h.registry.Contains(fmt.Sprintf("conv%d", i), c))
	}
	req.Equal([]*Client{peer}, h.registry.Members("u1"))

	// Only the first call has an effect.
	h.presence.Disconnect(c)
	req.Equal([]*Client{peer}, h.registry.Members("u1"))
}

func TestPresence_DisconnectWithoutSetup(t *testing.T) {
	h := newTestHub(t, nil)
	c := newTestClient(h)
	require.NoError(t, dispatch(t, h, c, EventJoinChat, "conv1"))

	h.presence.Disconnect(c)

	require.Equal(t, 0, h.registry.Len())
}

func TestPresence_SetupOnClosedConnection(t *testing.T) {
	h := newTestHub(t, nil)
	c := newTestClient(h)
	c.close()

	err := dispatch(t, h, c, EventSetup, map[string]string{"userId": "u1"})
	require.ErrorIs(t, err, ErrConnectionClosed)
}
