// Package mcp exposes the memory layer as MCP (Model Context Protocol)
// tools, served over stdio for local agents or streamable HTTP behind the
// API server.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loamhq/loam/pkg/ingest"
	"github.com/loamhq/loam/pkg/redact"
	"github.com/loamhq/loam/pkg/spool"
	"github.com/loamhq/loam/pkg/store"
	"github.com/loamhq/loam/pkg/utils"
)

type Config struct {
	// Driver is the memory store behind search/recall/update/forget/stats.
	Driver store.Driver

	// Ingestor handles mem.add so manual memories pass through redaction
	// and dedupe like extracted ones.
	Ingestor *ingest.Ingestor

	// Redactor re-redacts text supplied to mem.update.
	Redactor *redact.Redactor

	// Spool contributes pending/quarantined counts to mem.stats (optional).
	Spool *spool.Spool

	// DefaultScope is used when a tool call omits scope, usually the
	// project root detected from the server's working directory.
	DefaultScope string

	// RecallLimit is the default result count for mem.recall.
	RecallLimit int

	// Logger is the configured slog logger.
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the mem.* tools.
func NewServer(c Config) (*Server, error) {
	if c.Driver == nil {
		return nil, errors.New("store driver is required")
	}
	if c.Ingestor == nil {
		return nil, errors.New("ingestor is required")
	}
	if c.Redactor == nil {
		return nil, errors.New("redactor is required")
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.RecallLimit <= 0 {
		c.RecallLimit = 12
	}

	s := &Server{config: c}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "loam",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        recallToolName,
		Description: recallDescription,
	}, s.handleRecall)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        searchToolName,
		Description: searchDescription,
	}, s.handleSearch)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        addToolName,
		Description: addDescription,
	}, s.handleAdd)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        updateToolName,
		Description: updateDescription,
	}, s.handleUpdate)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        forgetToolName,
		Description: forgetDescription,
	}, s.handleForget)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        statsToolName,
		Description: statsDescription,
	}, s.handleStats)

	s.mcpServer = mcpServer

	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// MCP returns the underlying server for stdio transports.
func (s *Server) MCP() *mcp.Server {
	return s.mcpServer
}

// Handler returns the streamable HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// scopeOr falls back to the server's default scope.
func (s *Server) scopeOr(scope string) string {
	if scope != "" {
		return scope
	}
	return s.config.DefaultScope
}

// errResult wraps a failure message in the tool-error shape.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}
