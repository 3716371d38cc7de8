package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"

	"github.com/Tyrowin/gochat-realtime/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		return err
	}
	log := server.NewLogger(cfg.LogLevel)

	hub := server.NewHub(cfg, log)
	go hub.Run()
	log.Info("hub started and ready to manage WebSocket connections")

	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(hub))
	go func() {
		if err := server.StartServer(httpServer, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(context.Context) error {
				return server.ShutdownServer(httpServer, cfg.ShutdownTimeout, log)
			},
			"hub": func(context.Context) error {
				return hub.Shutdown(cfg.ShutdownTimeout)
			},
		},
	)

	if code := <-wait; code != 0 {
		return fmt.Errorf("shutdown finished with exit code %d", code)
	}
	log.Info("server stopped")
	return nil
}
