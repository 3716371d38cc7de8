// Package testhelpers provides common utilities shared by the end-to-end tests.
//
// It starts a hub behind an httptest server, dials WebSocket clients with an
// allowed origin and reads and writes protocol envelopes.
package testhelpers

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gochat-realtime/internal/server"
)

// TestOrigin is the Origin header sent by ConnectWebSocket.
const TestOrigin = "http://localhost:8080"

// Env is a running hub and the HTTP server in front of it.
type Env struct {
	Hub    *server.Hub
	Server *httptest.Server
	WSURL  string
}

// StartServer runs a hub behind an httptest server. Both stop during test
// cleanup.
func StartServer(t *testing.T, customize func(cfg *server.Config)) *Env {
	t.Helper()

	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{TestOrigin}
	if customize != nil {
		customize(cfg)
	}
	log := server.NewLogger("error")
	if testing.Verbose() {
		log = server.NewLogger("debug")
	}

	hub := server.NewHub(cfg, log)
	go hub.Run()

	srv := httptest.NewServer(server.SetupRoutes(hub))
	t.Cleanup(func() {
		srv.Close()
		_ = hub.Shutdown(2 * time.Second)
	})

	return &Env{
		Hub:    hub,
		Server: srv,
		WSURL:  "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

// ConnectWebSocket dials url with the allowed test origin.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	return ConnectWebSocketWithOrigin(url, TestOrigin)
}

// ConnectWebSocketWithOrigin dials url sending origin, or no Origin header
// when origin is empty.
func ConnectWebSocketWithOrigin(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// MustConnect dials the env's WebSocket endpoint and closes the connection
// during cleanup.
func (e *Env) MustConnect(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, err := ConnectWebSocket(e.WSURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// MustSetup connects and binds the connection to userID, waiting for
// the "connected" reply.
func (e *Env) MustSetup(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	conn := e.MustConnect(t)
	require.NoError(t, Emit(conn, server.EventSetup, map[string]string{"userId": userID}))
	env, err := ReadEvent(conn, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, server.EventConnected, env.Event)
	return conn
}

// WaitForStats polls the hub until cond holds.
func (e *Env) WaitForStats(t *testing.T, cond func(server.Stats) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(e.Hub.Stats()) }, 2*time.Second, 10*time.Millisecond)
}

// Emit writes one event envelope.
func Emit(conn *websocket.Conn, event string, data any) error {
	frame := map[string]any{"event": event}
	if data != nil {
		frame["data"] = data
	}
	return conn.WriteJSON(frame)
}

// ReadEvent reads the next envelope, waiting at most timeout.
func ReadEvent(conn *websocket.Conn, timeout time.Duration) (server.Envelope, error) {
	var env server.Envelope
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return env, err
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return env, err
	}
	err = json.Unmarshal(raw, &env)
	return env, err
}

// RequireEvent reads the next envelope and checks its name.
func RequireEvent(t *testing.T, conn *websocket.Conn, event string) server.Envelope {
	t.Helper()
	env, err := ReadEvent(conn, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, event, env.Event)
	return env
}

// ExpectNoEvent fails if conn receives any frame within timeout. A read
// timeout leaves a gorilla connection unusable, so this must be the last read
// on conn.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	env, err := ReadEvent(conn, timeout)
	if err == nil {
		t.Fatalf("Expected no event, but received %q", env.Event)
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	t.Fatalf("Unexpected error while waiting for absence of event: %v", err)
}

// CloseWebSocket sends a normal close frame, then closes the connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// MakeRequest executes an HTTP request with a 5-second timeout and returns
// the status code and body.
func MakeRequest(t *testing.T, method, url string) (int, string) {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}
