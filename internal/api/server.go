package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/lutronbond/internal/bridges/lutron"
	"github.com/nerrad567/lutronbond/internal/controller"
	"github.com/nerrad567/lutronbond/internal/eventbus"
	"github.com/nerrad567/lutronbond/internal/infrastructure/config"
	"github.com/nerrad567/lutronbond/internal/infrastructure/database"
	"github.com/nerrad567/lutronbond/internal/infrastructure/logging"
	"github.com/nerrad567/lutronbond/internal/infrastructure/metrics"
	"github.com/nerrad567/lutronbond/internal/journal"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Sources supplies the live state reported by the status endpoints.
// A nil func omits the corresponding block.
type Sources struct {
	Sessions   func() []lutron.SessionStats
	Supervisor func() controller.State
	Listeners  func() map[string]int
	Bus        func() eventbus.Stats
	Recorder   func() journal.RecorderStats
	Mirror     func() (published, failed uint64)
	MQTT       func() bool
	Database   func() sql.DBStats
	Schema     func() database.Schema
}

// JournalReader lists journalled events and dispatches.
type JournalReader interface {
	RecentEvents(ctx context.Context, f journal.Filter) ([]journal.EventEntry, error)
	RecentDispatches(ctx context.Context, f journal.Filter) ([]journal.DispatchEntry, error)
}

// Ensure Store implements JournalReader.
var _ JournalReader = (*journal.Store)(nil)

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Sources  Sources
	Metrics  *metrics.Metrics // optional: serves /metrics when set
	Journal  JournalReader    // optional
	Hub      *Hub             // If set, the server uses this hub instead of creating its own
	Version  string
}

// Server is the HTTP API server for lutronbond.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	sources   Sources
	metrics   *metrics.Metrics
	journal   JournalReader
	hub       *Hub
	version   string
	startTime time.Time
	tickets   *ticketStore

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr
	cancel context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Security.JWT.Enabled && deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required when auth is enabled")
	}

	s := &Server{
		cfg:       deps.Config,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		sources:   deps.Sources,
		metrics:   deps.Metrics,
		journal:   deps.Journal,
		hub:       deps.Hub,
		version:   deps.Version,
		startTime: time.Now(),
		tickets:   newTicketStore(),
	}
	if s.hub == nil {
		s.hub = NewHub(deps.Logger)
	}
	return s, nil
}

// Hub returns the WebSocket hub so callers can register it as an observer.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves HTTP in a background goroutine.
//
// Binding happens synchronously so a port conflict is reported here. The
// server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("binding API listener: %w", err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}
	s.addr = ln.Addr()

	s.logger.Info("API server starting", "address", s.addr.String(), "auth", s.secCfg.JWT.Enabled)

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel := s.server, s.cancel
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	// Cancel background goroutines (hub, ticket cleanup)
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
