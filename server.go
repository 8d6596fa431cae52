package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

type Server struct {
	cfg        *Config
	hub        *Hub
	metrics    *Metrics
	srv        *http.Server
	metricsSrv *http.Server
	limiter    *RateLimiter
	cors       *cors.Cors
	upgrader   websocket.Upgrader
}

func NewServer(cfg *Config, hub *Hub, metrics *Metrics) *Server {
	s := &Server{
		cfg:     cfg,
		hub:     hub,
		metrics: metrics,
		limiter: NewRateLimiter(cfg.RateLimitPerIP),
		cors: cors.New(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /rooms/{id}", s.handleRoom)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", metrics.Handler())

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.cors.Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       120 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if cfg.MetricsAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", metrics.Handler())
		s.metricsSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return s
}

// Handler returns the root handler, CORS included.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Limiter returns the per-IP upgrade limiter so its sweep can be run.
func (s *Server) Limiter() *RateLimiter {
	return s.limiter
}

func (s *Server) ListenAndServe() error {
	if s.metricsSrv != nil {
		go func() {
			slog.Info("metrics listening", "addr", s.cfg.MetricsAddr)
			if err := s.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server", "err", err)
			}
		}()
	}

	if s.cfg.TLSCert != "" && s.cfg.TLSKey != "" {
		s.srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
		slog.Info("tls enabled", "cert", s.cfg.TLSCert)
		return s.srv.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
	}
	slog.Info("tls disabled (no cert/key configured)")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.metricsSrv != nil {
		errs = append(errs, s.metricsSrv.Shutdown(ctx))
	}
	errs = append(errs, s.srv.Shutdown(ctx))
	return errors.Join(errs...)
}

type healthResponse struct {
	Status        string `json:"status"`
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	Connections   int    `json:"connections"`
	Rooms         int    `json:"rooms"`
	Pending       int    `json:"pendingNotifications"`
}

type roomResponse struct {
	RoomID string `json:"roomId"`
	Users  int    `json:"users"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := s.hub.Uptime()
	jsonResponse(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime / time.Second),
		Connections:   s.hub.ConnCount(),
		Rooms:         s.hub.RoomCount(),
		Pending:       s.hub.PendingNotifications(),
	})
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	if err := validateRoomID(roomID); err != nil {
		errorResponse(w, http.StatusBadRequest, errorKind(err))
		return
	}
	jsonResponse(w, http.StatusOK, roomResponse{
		RoomID: roomID,
		Users:  s.hub.Occupancy(roomID),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	if !s.limiter.Allow(ip) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("upgrade error", "ip", ip, "err", err)
		return
	}
	if s.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(s.cfg.MaxMessageSize)
	}

	NewClient(conn, ip, s.cfg.MessageRate).Start(s.hub)
}

// checkOrigin lets non-browser clients (no Origin header) through and
// applies the CORS allow-list to the rest.
func (s *Server) checkOrigin(r *http.Request) bool {
	if r.Header.Get("Origin") == "" {
		return true
	}
	return s.cors.OriginAllowed(r)
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("encode response", "err", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
