package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/porterhq/porter-core/internal/event"
	"github.com/porterhq/porter-core/internal/infrastructure/config"
	"github.com/porterhq/porter-core/internal/infrastructure/logging"
	"github.com/porterhq/porter-core/internal/state"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 5 * time.Second

// Bus is the interface the gateway needs from the event bus.
type Bus interface {
	// Enqueue submits an event; non-blocking, best-effort.
	Enqueue(ev event.Event)
}

// Deps holds the dependencies required by the gateway server.
type Deps struct {
	Config config.ServerConfig
	Logger *logging.Logger
	Bus    Bus
	State  *state.Store
}

// Server is the WebSocket server edge devices connect to.
//
// It owns the identity↔connection table and translates wire frames into
// bus events. The server is created with New() and started with Start().
//
// Thread Safety: all methods are safe for concurrent use.
type Server struct {
	cfg    config.ServerConfig
	logger *logging.Logger
	bus    Bus
	store  *state.Store

	server *http.Server
	conns  *connTable
}

// New creates a gateway server with the given dependencies.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	if deps.State == nil {
		return nil, fmt.Errorf("state store is required")
	}

	return &Server{
		cfg:    deps.Config,
		logger: deps.Logger,
		bus:    deps.Bus,
		store:  deps.State,
		conns:  newConnTable(),
	}, nil
}

// Handler builds the HTTP router. Exposed separately from Start so tests
// can mount it on an httptest server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get(s.cfg.WSPath, s.handleWS)
	return r
}

// Start begins listening for device connections.
//
// The listener runs in a background goroutine; failures after startup are
// logged, not returned. Stop the server with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("gateway listening", "address", s.server.Addr, "ws_path", s.cfg.WSPath)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway server error", "error", err)
		}
	}()

	return nil
}

// Close shuts the server down, disconnecting every device.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	for _, c := range s.conns.all() {
		s.disconnect(c, "server shutdown")
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("gateway shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down gateway: %w", err)
	}
	return nil
}

// Send delivers a structured frame to a connected device.
//
// Absent connections and write failures are logged no-ops: reconnection
// is the device's responsibility, and commands are best-effort by design.
func (s *Server) Send(identity Identity, eventType string, data map[string]any) {
	c := s.conns.get(identity)
	if c == nil {
		s.logger.Warn("send skipped, device not connected",
			"device", identity,
			"event_type", eventType,
		)
		return
	}

	frame, err := encodeFrame(eventType, data)
	if err != nil {
		s.logger.Error("send skipped, frame encoding failed",
			"device", identity,
			"event_type", eventType,
			"error", err,
		)
		return
	}

	if err := c.writeText(frame); err != nil {
		s.logger.Warn("send failed, peer gone",
			"device", identity,
			"event_type", eventType,
			"error", err,
		)
	}
}

// Connected reports whether a device currently holds a live connection.
func (s *Server) Connected(identity Identity) bool {
	return s.conns.get(identity) != nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	//nolint:errcheck // Best-effort health response
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.store.Snapshot()
	fields := make(map[string]string, len(snapshot))
	for f, v := range snapshot {
		fields[string(f)] = v
	}

	w.Header().Set("Content-Type", "application/json")
	//nolint:errcheck // Best-effort status response
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"state":  fields,
	})
}
