package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/loamhq/loam/pkg/memory"
	"github.com/loamhq/loam/pkg/worker"
)

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleSearch handles GET /v1/search requests.
// Query parameters:
//   - query (required): the full-text query
//   - scope (optional): project root to search within
//   - kind (optional): restrict to one memory kind
//   - limit (optional): max results
//   - min_importance (optional): floor on importance
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "query parameter is required",
		})
	}

	scope, filters, limit, err := s.readParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	memories, err := s.driver.Search(c.Context(), query, scope, filters, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(fiber.Map{
		"query":    query,
		"scope":    scope,
		"count":    len(memories),
		"memories": memories,
	})
}

// handleRecall handles GET /v1/recall requests. It takes the same
// parameters as search minus the query and returns the scope's most
// relevant memories.
func (s *Server) handleRecall(c *fiber.Ctx) error {
	scope, filters, limit, err := s.readParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	memories, err := s.driver.Recall(c.Context(), scope, filters, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(fiber.Map{
		"scope":    scope,
		"count":    len(memories),
		"memories": memories,
	})
}

// handleStats handles GET /v1/stats requests.
func (s *Server) handleStats(c *fiber.Ctx) error {
	scope := c.Query("scope")
	if scope == "" {
		scope = s.config.DefaultScope
	}

	stats, err := s.driver.Stats(c.Context(), scope)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(stats)
}

// handleNotify handles POST /v1/notify requests. The body is a hook
// payload; it is queued for ingest and the request returns immediately.
func (s *Server) handleNotify(c *fiber.Ctx) error {
	if s.pool == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "ingest is not configured",
		})
	}

	body := c.Body()
	if len(body) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "request body is required",
		})
	}

	// Fiber reuses the request buffer after the handler returns.
	payload := make([]byte, len(body))
	copy(payload, body)

	if !s.pool.Enqueue(worker.Job{Payload: payload, Surface: "http"}) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "ingest queue is full",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}

// readParams extracts the common scope/filter/limit query parameters.
func (s *Server) readParams(c *fiber.Ctx) (string, memory.Filters, int, error) {
	scope := c.Query("scope")
	if scope == "" {
		scope = s.config.DefaultScope
	}

	var filters memory.Filters
	if kindStr := c.Query("kind"); kindStr != "" {
		kind, err := memory.ParseKind(kindStr)
		if err != nil {
			return "", filters, 0, err
		}
		filters.Kind = kind
	}

	if minStr := c.Query("min_importance"); minStr != "" {
		parsed, err := strconv.Atoi(minStr)
		if err != nil {
			return "", filters, 0, errors.New("min_importance must be an integer")
		}
		filters.MinImportance = parsed
	}

	limit := s.config.RecallLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return "", filters, 0, errors.New("limit must be a positive integer")
		}
		limit = parsed
	}

	return scope, filters, limit, nil
}
