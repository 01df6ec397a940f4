// Package server constructs and starts the pushgate HTTP service with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use. ReadTimeout is left
// unset because the handler holds WebSocket connections open indefinitely.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

var startHubOnce sync.Once

// StartHub starts the global hub's event loop in a separate goroutine.
// This should be called before starting the HTTP server. Safe to call more
// than once; only the first call starts the loop.
func StartHub() {
	startHubOnce.Do(func() {
		go hub.Run()
		logger.Info().Msg("Hub started and ready to manage connections")
	})
}

// StartServer starts the HTTP server and begins listening for connections.
// It returns an error if the server fails to start.
func StartServer(server *http.Server) error {
	logger.Info().Str("addr", server.Addr).Msg("Server listening")
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	logger.Info().Msg("Shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
		return err
	}

	logger.Info().Msg("HTTP server shutdown completed")
	return nil
}
