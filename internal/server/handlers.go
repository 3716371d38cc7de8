package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// WebSocketHandler validates the GET method, upgrades the connection and
// hands the new client to the hub, which starts its read and write pumps.
func (h *Hub) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	if _, err := h.Upgrade(w, r); err != nil {
		h.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
	}
}

// StatsHandler reports live connection and room counts as JSON.
func (h *Hub) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.Stats()); err != nil {
		h.log.Error("error writing stats response", "error", err)
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "GoChat realtime server is running!")
}

// TestPageHandler serves an HTML page that speaks the event protocol, for
// poking at a running server from a browser.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>GoChat Realtime Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #events { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background-color: #f9f9f9; }
        input[type="text"] { width: 160px; padding: 5px; margin-right: 6px; }
        button { padding: 5px 12px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
    </style>
</head>
<body>
    <h1>GoChat Realtime Test</h1>
    <div>
        <input type="text" id="user" placeholder="your user id">
        <button onclick="connect()">Connect + setup</button>
    </div>
    <div>
        <input type="text" id="room" placeholder="conversation id">
        <button onclick="emit('join chat', room.value)">Join</button>
        <button onclick="emit('leave chat', room.value)">Leave</button>
        <button onclick="emit('typing', room.value)">Typing</button>
        <button onclick="emit('stop typing', room.value)">Stop typing</button>
    </div>
    <div>
        <input type="text" id="to" placeholder="recipient user ids, comma separated">
        <input type="text" id="content" placeholder="message">
        <button onclick="sendMessage()">Send</button>
    </div>
    <div id="events"></div>

    <script>
        let ws = null;
        const log = document.getElementById('events');
        const user = document.getElementById('user');
        const room = document.getElementById('room');

        function show(text) {
            const line = document.createElement('div');
            line.textContent = text;
            log.appendChild(line);
            log.scrollTop = log.scrollHeight;
        }

        function emit(event, data) {
            if (!ws || ws.readyState !== WebSocket.OPEN) { show('not connected'); return; }
            ws.send(JSON.stringify({ event: event, data: data }));
            show('> ' + event + ' ' + JSON.stringify(data));
        }

        function connect() {
            ws = new WebSocket('ws://' + location.host + '/ws');
            ws.onopen = function() { emit('setup', { userId: user.value }); };
            ws.onmessage = function(e) { show('< ' + e.data); };
            ws.onclose = function() { show('connection closed'); ws = null; };
        }

        function sendMessage() {
            const users = document.getElementById('to').value.split(',')
                .map(function(s) { return s.trim(); })
                .filter(function(s) { return s.length > 0; })
                .map(function(id) { return { userId: id }; });
            users.push({ userId: user.value });
            emit('new message', {
                chat: { _id: room.value, users: users },
                sender: { userId: user.value },
                content: document.getElementById('content').value
            });
        }
    </script>
</body>
</html>`
