package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carelinkhq/telecall/internal/appointment"
	"github.com/carelinkhq/telecall/internal/config"
	"github.com/carelinkhq/telecall/internal/logging"
	"github.com/carelinkhq/telecall/internal/server"
	"github.com/carelinkhq/telecall/internal/signaling"
)

func main() {
	logging.Init()

	cfg, err := config.Load(config.Options{})
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	authority, err := buildAuthority(cfg)
	if err != nil {
		slog.Error("build appointment authority", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := signaling.NewHub(authority, slog.Default())
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.Health)
	mux.HandleFunc("/ws", server.ServeWs(hub))

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("signaling relay listening", "addr", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("relay server failed", "error", err)
		os.Exit(1)
	}
}

// buildAuthority picks the appointment source: the booking API in
// production, a JSON fixture when APPOINTMENTS_SEED is set.
func buildAuthority(cfg *config.Config) (appointment.Authority, error) {
	if cfg.SeedFile != "" {
		slog.Warn("using seeded appointments, booking API disabled", "file", cfg.SeedFile)
		return appointment.LoadMemoryAuthority(cfg.SeedFile)
	}
	return appointment.NewHTTPClient(cfg.APIBaseURL, cfg.Token), nil
}
