// Package store defines the durable persistence interface for memories.
//
// The Driver is the boundary every other component writes through: the
// dedup/merge engine, the reconciler, and the query surface all speak this
// interface, so the SQLite and in-memory implementations stay interchangeable.
package store

import (
	"context"

	"github.com/loamhq/loam/pkg/memory"
)

// Driver persists and queries memories. Every write is atomic: a memory row
// and its full-text index entries commit together or not at all.
type Driver interface {
	// Insert stores a new memory and returns its identifier.
	// Returns ErrConflict if the memory carries an ID that already exists.
	Insert(ctx context.Context, m *memory.Memory) (int64, error)

	// Get retrieves a memory by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id int64) (*memory.Memory, error)

	// Update applies a partial field patch. Returns ErrNotFound if absent.
	Update(ctx context.Context, id int64, patch memory.Patch) error

	// Absorb folds a duplicate candidate into an existing memory: text is
	// widened (unless already contained), importance keeps the max, the
	// merge count increments, and the update timestamp refreshes.
	// Returns ErrNotFound if absent.
	Absorb(ctx context.Context, id int64, text string, importance int) error

	// Forget removes a memory and its index entries. Forgetting an absent
	// ID returns ErrNotFound so callers can detect a double-forget.
	Forget(ctx context.Context, id int64) error

	// Search runs a ranked full-text query within a scope. An empty or "*"
	// query falls back to the Recall ordering.
	Search(ctx context.Context, query, scope string, f memory.Filters, limit int) ([]*memory.Memory, error)

	// Recall returns the most relevant memories for a scope without a text
	// query: importance desc, then most recently updated.
	Recall(ctx context.Context, scope string, f memory.Filters, limit int) ([]*memory.Memory, error)

	// RecentByKind returns the most recently updated memories of one kind in
	// one scope. The dedup/merge engine uses this as its comparison window.
	RecentByKind(ctx context.Context, scope string, kind memory.Kind, limit int) ([]*memory.Memory, error)

	// Stats reports counts by kind, the total, and store size for a scope.
	// An empty scope means the whole store.
	Stats(ctx context.Context, scope string) (*memory.Stats, error)

	// Close releases the underlying resources.
	Close() error
}
