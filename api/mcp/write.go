package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loamhq/loam/pkg/memory"
	"github.com/loamhq/loam/pkg/store"
)

var (
	addToolName    = "mem.add"
	addDescription = "Store a memory explicitly. The text is redacted and deduplicated against existing memories; near-duplicates merge instead of creating a new entry."

	updateToolName    = "mem.update"
	updateDescription = "Update an existing memory's kind, text, or importance by id. Supplied text is redacted again."

	forgetToolName    = "mem.forget"
	forgetDescription = "Permanently delete a memory by id."
)

// AddInput represents the input arguments for the add tool.
type AddInput struct {
	Kind       string `json:"kind" jsonschema:"memory kind (preference, decision, todo, pitfall, workflow-note, reference, fact)"`
	Text       string `json:"text" jsonschema:"the memory text"`
	Importance *int   `json:"importance,omitempty" jsonschema:"importance 0-5 (default: 3)"`
	Scope      string `json:"scope,omitempty" jsonschema:"project scope (default: the scope detected from the server working directory)"`
}

// AddOutput represents the output of the add tool.
type AddOutput struct {
	Memory *memory.Memory `json:"memory"`
	Merged bool           `json:"merged"`
}

// handleAdd processes an add request.
func (s *Server) handleAdd(ctx context.Context, req *mcp.CallToolRequest, input AddInput) (*mcp.CallToolResult, AddOutput, error) {
	kind, err := memory.ParseKind(input.Kind)
	if err != nil {
		return errResult(err.Error()), AddOutput{}, nil
	}

	if input.Text == "" {
		return errResult("text is required"), AddOutput{}, nil
	}

	// Pointer so an explicit importance of 0 stays 0 instead of defaulting.
	importance := memory.DefaultImportance
	if input.Importance != nil {
		importance = *input.Importance
	}

	m, merged, err := s.config.Ingestor.Add(ctx, kind, input.Text, s.scopeOr(input.Scope), importance)
	if err != nil {
		s.config.Logger.Error("add failed", "kind", kind, "error", err)
		return errResult(fmt.Sprintf("add failed: %v", err)), AddOutput{}, nil
	}

	verb := "stored"
	if merged {
		verb = "merged into existing memory"
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%s [id:%d] %s", verb, m.ID, m.Text)},
		},
	}, AddOutput{Memory: m, Merged: merged}, nil
}

// UpdateInput represents the input arguments for the update tool.
type UpdateInput struct {
	ID         int64  `json:"id" jsonschema:"the memory id to update"`
	Kind       string `json:"kind,omitempty" jsonschema:"new memory kind"`
	Text       string `json:"text,omitempty" jsonschema:"new memory text"`
	Importance *int   `json:"importance,omitempty" jsonschema:"new importance 0-5"`
}

// UpdateOutput represents the output of the update tool.
type UpdateOutput struct {
	Memory *memory.Memory `json:"memory"`
}

// handleUpdate processes an update request.
func (s *Server) handleUpdate(ctx context.Context, req *mcp.CallToolRequest, input UpdateInput) (*mcp.CallToolResult, UpdateOutput, error) {
	var patch memory.Patch

	if input.Kind != "" {
		kind, err := memory.ParseKind(input.Kind)
		if err != nil {
			return errResult(err.Error()), UpdateOutput{}, nil
		}
		patch.Kind = &kind
	}

	if input.Text != "" {
		text := s.config.Redactor.String(input.Text)
		patch.Text = &text
	}

	if input.Importance != nil {
		patch.Importance = input.Importance
	}

	if patch.Empty() {
		return errResult("nothing to update: provide kind, text, or importance"), UpdateOutput{}, nil
	}

	if err := s.config.Driver.Update(ctx, input.ID, patch); err != nil {
		if store.IsNotFound(err) {
			return errResult(fmt.Sprintf("memory %d not found", input.ID)), UpdateOutput{}, nil
		}
		s.config.Logger.Error("update failed", "id", input.ID, "error", err)
		return errResult(fmt.Sprintf("update failed: %v", err)), UpdateOutput{}, nil
	}

	m, err := s.config.Driver.Get(ctx, input.ID)
	if err != nil {
		return errResult(fmt.Sprintf("reloading memory: %v", err)), UpdateOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("updated [id:%d] %s", m.ID, m.Text)},
		},
	}, UpdateOutput{Memory: m}, nil
}

// ForgetInput represents the input arguments for the forget tool.
type ForgetInput struct {
	ID int64 `json:"id" jsonschema:"the memory id to delete"`
}

// ForgetOutput represents the output of the forget tool.
type ForgetOutput struct {
	ID      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
}

// handleForget processes a forget request.
func (s *Server) handleForget(ctx context.Context, req *mcp.CallToolRequest, input ForgetInput) (*mcp.CallToolResult, ForgetOutput, error) {
	if err := s.config.Driver.Forget(ctx, input.ID); err != nil {
		if store.IsNotFound(err) {
			return errResult(fmt.Sprintf("memory %d not found", input.ID)), ForgetOutput{}, nil
		}
		s.config.Logger.Error("forget failed", "id", input.ID, "error", err)
		return errResult(fmt.Sprintf("forget failed: %v", err)), ForgetOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("deleted memory %d", input.ID)},
		},
	}, ForgetOutput{ID: input.ID, Deleted: true}, nil
}
