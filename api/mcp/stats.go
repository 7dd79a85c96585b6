package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loamhq/loam/pkg/memory"
)

var (
	statsToolName    = "mem.stats"
	statsDescription = "Report memory counts by kind for a scope, plus store size and spool backlog."
)

// StatsInput represents the input arguments for the stats tool.
type StatsInput struct {
	Scope string `json:"scope,omitempty" jsonschema:"project scope to report on (empty string: whole store)"`
}

// StatsOutput represents the output of the stats tool.
type StatsOutput struct {
	Scope            string               `json:"scope"`
	Total            int64                `json:"total"`
	ByKind           map[memory.Kind]int64 `json:"by_kind"`
	SizeBytes        int64                `json:"size_bytes"`
	SpoolPending     int                  `json:"spool_pending"`
	SpoolQuarantined int                  `json:"spool_quarantined"`
}

// handleStats processes a stats request.
func (s *Server) handleStats(ctx context.Context, req *mcp.CallToolRequest, input StatsInput) (*mcp.CallToolResult, StatsOutput, error) {
	stats, err := s.config.Driver.Stats(ctx, input.Scope)
	if err != nil {
		s.config.Logger.Error("stats failed", "scope", input.Scope, "error", err)
		return errResult(fmt.Sprintf("stats failed: %v", err)), StatsOutput{}, nil
	}

	output := StatsOutput{
		Scope:     stats.Scope,
		Total:     stats.Total,
		ByKind:    stats.ByKind,
		SizeBytes: stats.SizeBytes,
	}

	if s.config.Spool != nil {
		if pending, err := s.config.Spool.PendingCount(); err == nil {
			output.SpoolPending = pending
		}
		if quarantined, err := s.config.Spool.QuarantinedCount(); err == nil {
			output.SpoolQuarantined = quarantined
		}
	}

	text := fmt.Sprintf("%d memories", output.Total)
	if output.SpoolPending > 0 {
		text += fmt.Sprintf(", %d spooled awaiting reconcile", output.SpoolPending)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, output, nil
}
