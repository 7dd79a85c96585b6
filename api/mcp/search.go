package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loamhq/loam/pkg/memory"
)

var (
	searchToolName    = "mem.search"
	searchDescription = "Full-text search over stored memories. Returns the most relevant memories for a query within a project scope."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query         string `json:"query" jsonschema:"the search query text"`
	Scope         string `json:"scope,omitempty" jsonschema:"project scope to search within (default: the scope detected from the server working directory)"`
	Kind          string `json:"kind,omitempty" jsonschema:"restrict to one memory kind"`
	Limit         int    `json:"limit,omitempty" jsonschema:"maximum number of results (default: 12)"`
	MinImportance int    `json:"min_importance,omitempty" jsonschema:"only return memories at or above this importance (0-5)"`
}

// SearchOutput represents the output of the search tool.
type SearchOutput struct {
	Query    string           `json:"query"`
	Scope    string           `json:"scope"`
	Count    int              `json:"count"`
	Memories []*memory.Memory `json:"memories"`
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	scope := s.scopeOr(input.Scope)

	limit := input.Limit
	if limit <= 0 {
		limit = s.config.RecallLimit
	}

	filters := memory.Filters{MinImportance: input.MinImportance}
	if input.Kind != "" {
		kind, err := memory.ParseKind(input.Kind)
		if err != nil {
			return errResult(err.Error()), SearchOutput{}, nil
		}
		filters.Kind = kind
	}

	memories, err := s.config.Driver.Search(ctx, input.Query, scope, filters, limit)
	if err != nil {
		s.config.Logger.Error("search failed", "query", input.Query, "error", err)
		return errResult(fmt.Sprintf("search failed: %v", err)), SearchOutput{}, nil
	}

	output := SearchOutput{
		Query:    input.Query,
		Scope:    scope,
		Count:    len(memories),
		Memories: memories,
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: ContextPack(memories)},
		},
	}, output, nil
}
