package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loamhq/loam/pkg/memory"
)

var (
	recallToolName    = "mem.recall"
	recallDescription = "Recall the most relevant stored memories for a project scope: preferences, decisions, pitfalls, and facts from earlier sessions. Returns a markdown context pack plus structured records."
)

// RecallInput represents the input arguments for the recall tool.
type RecallInput struct {
	Scope         string `json:"scope,omitempty" jsonschema:"project scope to recall from (default: the scope detected from the server working directory)"`
	Kind          string `json:"kind,omitempty" jsonschema:"restrict to one memory kind (preference, decision, todo, pitfall, workflow-note, reference, fact)"`
	Limit         int    `json:"limit,omitempty" jsonschema:"maximum number of memories to return (default: 12)"`
	MinImportance int    `json:"min_importance,omitempty" jsonschema:"only return memories at or above this importance (0-5)"`
}

// RecallOutput represents the output of the recall tool.
type RecallOutput struct {
	Scope       string           `json:"scope"`
	Count       int              `json:"count"`
	ContextPack string           `json:"context_pack"`
	Memories    []*memory.Memory `json:"memories"`
}

// handleRecall processes a recall request.
func (s *Server) handleRecall(ctx context.Context, req *mcp.CallToolRequest, input RecallInput) (*mcp.CallToolResult, RecallOutput, error) {
	scope := s.scopeOr(input.Scope)

	limit := input.Limit
	if limit <= 0 {
		limit = s.config.RecallLimit
	}

	filters := memory.Filters{MinImportance: input.MinImportance}
	if input.Kind != "" {
		kind, err := memory.ParseKind(input.Kind)
		if err != nil {
			return errResult(err.Error()), RecallOutput{}, nil
		}
		filters.Kind = kind
	}

	memories, err := s.config.Driver.Recall(ctx, scope, filters, limit)
	if err != nil {
		s.config.Logger.Error("recall failed", "scope", scope, "error", err)
		return errResult(fmt.Sprintf("recall failed: %v", err)), RecallOutput{}, nil
	}

	pack := ContextPack(memories)
	output := RecallOutput{
		Scope:       scope,
		Count:       len(memories),
		ContextPack: pack,
		Memories:    memories,
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: pack},
		},
	}, output, nil
}

// packOrder fixes the kind ordering inside a context pack.
var packOrder = []memory.Kind{
	memory.KindPreference,
	memory.KindDecision,
	memory.KindPitfall,
	memory.KindWorkflowNote,
	memory.KindTodo,
	memory.KindReference,
	memory.KindFact,
}

// ContextPack renders memories as the markdown block agents inject into
// their context. Grouped by kind; each entry carries its id so the agent can
// reference it in later mem.update or mem.forget calls.
func ContextPack(memories []*memory.Memory) string {
	if len(memories) == 0 {
		return "### Relevant memories\n\n(none)"
	}

	byKind := make(map[memory.Kind][]*memory.Memory)
	for _, m := range memories {
		byKind[m.Kind] = append(byKind[m.Kind], m)
	}

	var b strings.Builder
	b.WriteString("### Relevant memories\n")

	for _, kind := range packOrder {
		group := byKind[kind]
		if len(group) == 0 {
			continue
		}

		fmt.Fprintf(&b, "\n%s:\n", kind)
		for _, m := range group {
			text := strings.ReplaceAll(m.Text, "\n", " ")
			fmt.Fprintf(&b, "- [id:%d] %s\n", m.ID, text)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
