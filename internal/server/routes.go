package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
// It sets up handlers for health check, WebSocket endpoint, stats and test page.
func SetupRoutes(h *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", h.WebSocketHandler)
	mux.HandleFunc("/stats", h.StatsHandler)
	mux.HandleFunc("/test", TestPageHandler)
	return mux
}
