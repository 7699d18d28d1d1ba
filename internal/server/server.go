// Package server exposes the pipeline controller over HTTP and streams
// annotated frames to WebSocket clients.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Controller is the part of the pipeline controller the server drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	OpenSource(spec string) error
	Stats() pipeline.Stats
	Frames() *pipeline.FrameBuffer
	Errors() <-chan error
}

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	CORSOrigin      string
	JPEGQuality     int
	ShutdownTimeout time.Duration
	// RequestsPerMinute and RequestsPerHour limit control requests per client; zero disables.
	RequestsPerMinute int
	RequestsPerHour   int
}

// DefaultConfig returns local defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            8080,
		CORSOrigin:      "*",
		JPEGQuality:     80,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Addr returns host:port.
func (c Config) Addr() string { return net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) }

// Server holds the HTTP server state and dependencies.
type Server struct {
	ctrl        Controller
	hub         *Hub
	corsOrigin  string
	jpegQuality int
	rateLimiter *RateLimiter
	shutdown    time.Duration
	// baseCtx parents pipeline runs so they outlive the request that started them.
	baseCtx context.Context
}

// New creates a server for ctrl. hub is the display the controller publishes
// frames to; it may be nil when no WebSocket stream is wanted.
func New(cfg Config, ctrl Controller, hub *Hub) *Server {
	s := &Server{
		ctrl:        ctrl,
		hub:         hub,
		corsOrigin:  cfg.CORSOrigin,
		jpegQuality: cfg.JPEGQuality,
		shutdown:    cfg.ShutdownTimeout,
		baseCtx:     context.Background(),
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.jpegQuality <= 0 || s.jpegQuality > 100 {
		s.jpegQuality = 80
	}
	if cfg.RequestsPerMinute > 0 || cfg.RequestsPerHour > 0 {
		s.rateLimiter = NewRateLimiter(cfg.RequestsPerMinute, cfg.RequestsPerHour)
	}
	return s
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	s.route(mux, "/health", s.healthHandler, false)
	s.route(mux, "/status", s.statusHandler, false)
	s.route(mux, "/start", s.startHandler, true)
	s.route(mux, "/stop", s.stopHandler, true)
	s.route(mux, "/source", s.sourceHandler, true)
	s.route(mux, "/frame.jpg", s.frameHandler, false)
	mux.HandleFunc("/ws", s.wsHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// Run serves on addr until ctx is cancelled, then stops the pipeline and
// shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.baseCtx = ctx
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.forwardErrors(ctx)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok && err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	if err := s.ctrl.Stop(); err != nil {
		slog.Warn("Failed to stop pipeline", "error", err)
	}
	if s.hub != nil {
		s.hub.Close()
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// forwardErrors relays terminal pipeline errors to WebSocket clients.
func (s *Server) forwardErrors(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-s.ctrl.Errors():
			if err == nil {
				continue
			}
			slog.Info("Pipeline reported error", "error", err)
			if s.hub != nil {
				s.hub.BroadcastJSON(Message{Type: "error", Payload: ErrorResponse{Error: errorKind(err), Message: err.Error()}})
				s.hub.BroadcastJSON(Message{Type: "status", Payload: s.ctrl.Stats()})
			}
		}
	}
}
