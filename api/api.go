// Package api exposes the memory store over HTTP: read endpoints for
// search, recall, and stats, a notify endpoint that feeds the ingest
// worker pool, and the MCP streamable-HTTP transport mounted at /mcp.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/loamhq/loam/pkg/store"
	"github.com/loamhq/loam/pkg/worker"
)

// Server is the HTTP server for querying and feeding the memory store.
type Server struct {
	config Config
	driver store.Driver
	pool   *worker.Pool
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server. The driver and pool are injected so
// they can be shared with the MCP transport and the CLI.
func NewServer(config Config, driver store.Driver, pool *worker.Pool, mcpHandler http.Handler, logger *slog.Logger) (*Server, error) {
	if driver == nil {
		return nil, ErrNoDriver
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		driver: driver,
		pool:   pool,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/search", s.handleSearch)
	app.Get("/v1/recall", s.handleRecall)
	app.Get("/v1/stats", s.handleStats)
	app.Post("/v1/notify", s.handleNotify)

	if mcpHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(mcpHandler))
		app.All("/mcp/*", adaptor.HTTPHandler(mcpHandler))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown stops accepting connections and drains the ingest pool so
// accepted notify payloads still reach the store or the spool.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}
