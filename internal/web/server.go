// Package web is the local HTTP surface for status, schedule and hand-off
// confirmation. It binds to loopback by default and has no authentication.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/handoff"
	"github.com/kingrea/crosspost/internal/journal"
	"github.com/kingrea/crosspost/internal/ledger"
	"github.com/kingrea/crosspost/internal/orchestrator"
)

const (
	// DefaultMaxBodyBytes limits confirmation payloads.
	DefaultMaxBodyBytes int64 = 64 << 10
	readTimeout               = 15 * time.Second
	writeTimeout              = 15 * time.Second
	idleTimeout               = 60 * time.Second
)

// ServerStatus reports the listener lifecycle.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

// Backend is what the handlers read and confirm through.
// *orchestrator.Orchestrator satisfies it.
type Backend interface {
	Status() (orchestrator.StatusReport, error)
	Schedule() []orchestrator.ScheduleEntry
	Pending() ([]handoff.Staged, error)
	Confirm(ctx context.Context, sequence int, platform catalog.Platform, reference string) (ledger.Record, error)
}

// RunLister exposes recent runs. *journal.Journal satisfies it.
type RunLister interface {
	Runs(limit int) ([]journal.RunSummary, error)
}

// Logger receives server diagnostics. *logbook.Logbook satisfies it.
type Logger interface {
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Server wraps the gin engine and its listener.
type Server struct {
	backend Backend
	runs    RunLister
	logger  Logger
	clock   func() time.Time
	maxBody int64

	router *gin.Engine

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    ServerStatus
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithRuns enables GET /api/runs.
func WithRuns(r RunLister) Option {
	return func(s *Server) { s.runs = r }
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer builds the router. Call Start to listen, or use Handler with
// httptest.
func NewServer(backend Backend, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		logger:  nopLogger{},
		clock:   time.Now,
		maxBody: DefaultMaxBodyBytes,
		status:  StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)
	api := router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/schedule", s.handleSchedule)
		api.GET("/handoffs", s.handleHandoffs)
		api.POST("/confirm", s.handleConfirm)
		api.GET("/runs", s.handleRuns)
	}
	return router
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds addr and serves in the background.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("web: server already started")
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", addr, err)
	}
	server := &http.Server{
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.listener = listener
	s.server = server
	s.startTime = s.clock()
	s.status = StatusReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("web: serve error: %v", err)
		}
	}()
	s.logger.Info("web: listening on %s", listener.Addr().String())
	return nil
}

// Serve starts the server and blocks until ctx is cancelled, then drains.
func (s *Server) Serve(ctx context.Context, addr string) error {
	if err := s.Start(ctx, addr); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Status reports the lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Server) uptimeSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(s.clock().Sub(s.startTime).Seconds())
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
