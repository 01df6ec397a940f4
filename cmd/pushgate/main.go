package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushgate/pushgate/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := zerolog.New(os.Stderr).With().
		Timestamp().
		Str("service", "pushgate").
		Logger().
		Level(logLevelFromEnv())
	server.SetLogger(logger)

	config := server.SetConfig(server.NewConfigFromEnv())

	server.StartHub()

	mux := server.SetupRoutes()
	httpServer := server.CreateServer(config.Port, mux)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown did not complete cleanly")
	}
	if err := server.GetHub().Shutdown(shutdownTimeout); err != nil {
		logger.Error().Err(err).Msg("Hub shutdown did not complete cleanly")
	}
}

func logLevelFromEnv() zerolog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		return zerolog.DebugLevel
	case "warn", "WARN":
		return zerolog.WarnLevel
	case "error", "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
