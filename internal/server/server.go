package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zhirschtritt/eventapi/internal/domain"
	"github.com/zhirschtritt/eventapi/internal/migrations"
	"github.com/zhirschtritt/eventapi/internal/repository"
)

const eventsPath = "/api/v3/app/events"

// eventStore is an EventRepository that owns a connection.
type eventStore interface {
	domain.EventRepository
	Close() error
}

type Server struct {
	logger       *slog.Logger
	startTime    time.Time
	config       *Config
	store        eventStore
	eventService *domain.EventService
	*http.Server
}

type HealthResponse struct {
	Status    string        `json:"status"`
	Uptime    time.Duration `json:"uptime"`
	StartTime time.Time     `json:"start_time"`
}

type ReadyResponse struct {
	Status string `json:"status"`
}

// NewServer connects to the event store once and wires the HTTP routes. A
// failed connection is returned as domain.ErrStartup; there is no retry.
func NewServer(config *Config, logger *slog.Logger) (*Server, error) {
	server := &Server{
		logger:    logger,
		startTime: time.Now(),
		config:    config,
	}

	store, err := openStore(context.Background(), config, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStartup, err)
	}
	server.store = store
	server.eventService = domain.NewEventService(store)

	server.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", config.Port),
		Handler:      server.routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return server, nil
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/", s.rootHandler)
	router.Get("/healthz", s.healthHandler)
	router.Get("/readyz", s.readyHandler)

	eventRouter := NewEventRouter(s.eventService, s.logger)
	router.Mount(eventsPath, eventRouter.Routes())

	return router
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, "website is live")
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.startTime)

	response := HealthResponse{
		Status:    "healthy",
		Uptime:    uptime,
		StartTime: s.startTime,
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	if err := s.eventService.Ping(ctx); err != nil {
		s.logger.Error("event store is not reachable", "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "not_ready"})
		return
	}

	s.writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	s.logger.Info("starting server", "port", s.config.Port, "start_time", s.startTime)

	serveErr := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	s.logger.Info("server is ready to handle requests", "addr", s.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("server is shutting down", "reason", sig.String())
	case err := <-serveErr:
		s.logger.Error("could not listen on", "addr", s.Addr, "error", err)
		s.closeStore()
		return err
	}

	s.gracefulShutdown()
	return nil
}

func (s *Server) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.SetKeepAlivesEnabled(false)
	if err := s.Shutdown(ctx); err != nil {
		s.logger.Error("could not gracefully shutdown the server", "error", err)
	}

	s.closeStore()
	s.logger.Info("server stopped")
}

func (s *Server) closeStore() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("could not close event store", "error", err)
		return
	}
	s.logger.Info("event store closed")
}

func openStore(ctx context.Context, config *Config, logger *slog.Logger) (eventStore, error) {
	switch config.StoreDriver {
	case StoreDriverSQLite:
		logger.Info("opening sqlite event store", "path", config.SQLitePath)
		return repository.OpenSQLiteEventsRepository(ctx, config.SQLitePath)
	case StoreDriverPostgres:
		pool, err := initDatabase(ctx, config, logger)
		if err != nil {
			return nil, err
		}
		return repository.NewDBEventsRepository(pool), nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", config.StoreDriver)
	}
}

func initDatabase(ctx context.Context, config *Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	connString := config.DBConnString

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	logger.Info("connecting to database", "host", poolConfig.ConnConfig.Host, "database", poolConfig.ConnConfig.Database)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established successfully")

	if config.RunMigrations {
		if err := runMigrations(connString, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return pool, nil
}

func runMigrations(connString string, logger *slog.Logger) error {
	migrator, err := migrations.NewMigrator(connString, logger)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Error("could not close migrator", "error", err)
		}
	}()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
