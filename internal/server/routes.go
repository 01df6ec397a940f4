// Package server wires HTTP handlers into a ServeMux for the pushgate
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: the WebSocket admission endpoint, the delivery endpoint, the health
// check, and a catch-all that answers everything else with a JSON 404.
func SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", NotFoundHandler)
	mux.HandleFunc("/healthz", HealthHandler)
	mux.HandleFunc("/ws", WebSocketHandler)
	mux.HandleFunc("/emit-notification", EmitNotificationHandler)
	return mux
}
