package main

import (
	"context"
	"log/slog"
	"time"
)

// Hub wires the registry, notifier, router and session manager together
// and runs the periodic sweep.
type Hub struct {
	cfg     *Config
	metrics *Metrics

	registry *Registry
	notifier *Notifier
	router   *Router
	sessions *SessionManager

	started time.Time
	done    chan struct{}
}

func NewHub(cfg *Config, metrics *Metrics) *Hub {
	registry := NewRegistry(cfg.MaxRooms, cfg.MaxClientsPerRoom)
	notifier := NewNotifier(registry, cfg.NotifyDelay, metrics)
	registry.SetScheduler(notifier)
	router := NewRouter(registry, metrics)

	h := &Hub{
		cfg:      cfg,
		metrics:  metrics,
		registry: registry,
		notifier: notifier,
		router:   router,
		sessions: NewSessionManager(registry, router, metrics),
		started:  time.Now(),
		done:     make(chan struct{}),
	}
	metrics.observeHub(h)
	return h
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	interval := h.cfg.SweepInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case <-ticker.C:
			h.notifier.Sweep()
		}
	}
}

// Wait blocks until Run has returned or ctx is done.
func (h *Hub) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Open registers a new connection in the Unjoined state.
func (h *Hub) Open(c Conn) *Session {
	return h.sessions.Open(c)
}

func (h *Hub) RoomCount() int {
	return h.registry.RoomCount()
}

func (h *Hub) ConnCount() int {
	return h.sessions.Count()
}

// PendingNotifications returns how many rooms await a count broadcast.
func (h *Hub) PendingNotifications() int {
	return h.notifier.PendingCount()
}

func (h *Hub) Occupancy(roomID string) int {
	return h.registry.Occupancy(roomID)
}

func (h *Hub) Uptime() time.Duration {
	return time.Since(h.started)
}

// shutdown delivers final counts before closing every connection.
func (h *Hub) shutdown() {
	h.notifier.FlushAll()
	rooms, conns := h.RoomCount(), h.ConnCount()
	h.sessions.CloseAll()
	slog.Info("hub stopped", "rooms", rooms, "connections", conns)
}
