package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
)

const (
	shutdownTimeout = 15 * time.Second
	limiterIdle     = 10 * time.Minute
)

func main() {
	// Local .env is optional.
	_ = godotenv.Load()

	cfg := LoadConfig()
	slog.SetDefault(newLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat))

	metrics := NewMetrics()
	hub := NewHub(cfg, metrics)
	srv := NewServer(cfg, hub, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)
	go srv.Limiter().Run(ctx, cfg.SweepInterval, limiterIdle)

	go func() {
		slog.Info("relay starting", "addr", cfg.Addr, "notifyDelay", cfg.NotifyDelay, "origins", cfg.CORSOrigins)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
			"hub": func(ctx context.Context) error {
				cancel()
				return hub.Wait(ctx)
			},
		},
	)

	exitCode := <-wait
	slog.Info("relay stopped", "code", exitCode)
	os.Exit(exitCode)
}
