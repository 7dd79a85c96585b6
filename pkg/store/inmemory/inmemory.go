// Package inmemory implements store.Driver with a mutex-guarded map. It backs
// tests and the ephemeral mode, mirroring the SQLite driver's ordering
// semantics so suites can run against either.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/loamhq/loam/pkg/memory"
	"github.com/loamhq/loam/pkg/store"
)

// Driver is an in-memory store.Driver.
type Driver struct {
	mu       sync.RWMutex
	memories map[int64]*memory.Memory
	nextID   int64
}

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		memories: make(map[int64]*memory.Memory),
		nextID:   1,
	}
}

// Insert stores a new memory.
func (d *Driver) Insert(_ context.Context, m *memory.Memory) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}

	if m.ID != 0 {
		if _, exists := d.memories[m.ID]; exists {
			return 0, store.ErrConflict{ID: m.ID}
		}
		if m.ID >= d.nextID {
			d.nextID = m.ID + 1
		}
	} else {
		m.ID = d.nextID
		d.nextID++
	}

	clone := *m
	d.memories[m.ID] = &clone

	return m.ID, nil
}

// Get retrieves a memory by ID.
func (d *Driver) Get(_ context.Context, id int64) (*memory.Memory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m, ok := d.memories[id]
	if !ok {
		return nil, store.ErrNotFound{ID: id}
	}

	clone := *m
	return &clone, nil
}

// Update applies a partial field patch.
func (d *Driver) Update(_ context.Context, id int64, patch memory.Patch) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.memories[id]
	if !ok {
		return store.ErrNotFound{ID: id}
	}

	if patch.Kind != nil {
		m.Kind = *patch.Kind
	}
	if patch.Text != nil {
		m.Text = *patch.Text
	}
	if patch.Importance != nil {
		m.Importance = memory.ClampImportance(*patch.Importance)
	}
	m.UpdatedAt = time.Now().UTC()

	return nil
}

// Absorb folds a duplicate into an existing memory.
func (d *Driver) Absorb(_ context.Context, id int64, text string, importance int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.memories[id]
	if !ok {
		return store.ErrNotFound{ID: id}
	}

	m.Text = store.WidenText(m.Text, text)
	if importance > m.Importance {
		m.Importance = memory.ClampImportance(importance)
	}
	m.MergeCount++
	m.UpdatedAt = time.Now().UTC()

	return nil
}

// Forget removes a memory; an absent ID reports ErrNotFound.
func (d *Driver) Forget(_ context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.memories[id]; !ok {
		return store.ErrNotFound{ID: id}
	}
	delete(d.memories, id)

	return nil
}

// Search ranks by how many query tokens a memory's text contains, mirroring
// the FTS driver's most-relevant-first contract.
func (d *Driver) Search(ctx context.Context, query, scope string, f memory.Filters, limit int) ([]*memory.Memory, error) {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return d.Recall(ctx, scope, f, limit)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	type hit struct {
		m     *memory.Memory
		score int
	}

	var hits []hit
	for _, m := range d.memories {
		if !matches(m, scope, f) {
			continue
		}
		score := 0
		lowered := strings.ToLower(m.Text)
		for _, tok := range tokens {
			if strings.Contains(lowered, tok) {
				score++
			}
		}
		if score == len(tokens) {
			hits = append(hits, hit{m: m, score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if !hits[i].m.UpdatedAt.Equal(hits[j].m.UpdatedAt) {
			return hits[i].m.UpdatedAt.After(hits[j].m.UpdatedAt)
		}
		return hits[i].m.ID > hits[j].m.ID
	})

	out := make([]*memory.Memory, 0, min(limit, len(hits)))
	for _, h := range hits {
		if len(out) == limit {
			break
		}
		clone := *h.m
		out = append(out, &clone)
	}

	return out, nil
}

// Recall orders by importance desc, then recency.
func (d *Driver) Recall(_ context.Context, scope string, f memory.Filters, limit int) ([]*memory.Memory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var all []*memory.Memory
	for _, m := range d.memories {
		if matches(m, scope, f) {
			all = append(all, m)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Importance != all[j].Importance {
			return all[i].Importance > all[j].Importance
		}
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ID > all[j].ID
	})

	return cloneLimit(all, limit), nil
}

// RecentByKind returns the merge window: most recently updated first.
func (d *Driver) RecentByKind(_ context.Context, scope string, kind memory.Kind, limit int) ([]*memory.Memory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var all []*memory.Memory
	for _, m := range d.memories {
		if m.Scope == scope && m.Kind == kind {
			all = append(all, m)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ID > all[j].ID
	})

	return cloneLimit(all, limit), nil
}

// Stats reports counts by kind for a scope (empty scope = everything).
func (d *Driver) Stats(_ context.Context, scope string) (*memory.Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := &memory.Stats{
		Scope:  scope,
		ByKind: make(map[memory.Kind]int64),
	}
	for _, m := range d.memories {
		if scope != "" && m.Scope != scope {
			continue
		}
		stats.ByKind[m.Kind]++
		stats.Total++
	}

	return stats, nil
}

// Count returns the number of stored memories, used by tests.
func (d *Driver) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.memories)
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

func matches(m *memory.Memory, scope string, f memory.Filters) bool {
	if scope != "" && m.Scope != scope {
		return false
	}
	if f.Kind != "" && m.Kind != f.Kind {
		return false
	}
	if f.MinImportance > 0 && m.Importance < f.MinImportance {
		return false
	}
	if !f.Since.IsZero() && m.UpdatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && m.UpdatedAt.After(f.Until) {
		return false
	}
	return true
}

func tokenize(query string) []string {
	cleaned := strings.TrimSpace(query)
	if cleaned == "" || cleaned == "*" {
		return nil
	}

	fields := strings.FieldsFunc(strings.ToLower(cleaned), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '_')
	})
	return fields
}

func cloneLimit(all []*memory.Memory, limit int) []*memory.Memory {
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]*memory.Memory, len(all))
	for i, m := range all {
		clone := *m
		out[i] = &clone
	}
	return out
}

var _ store.Driver = (*Driver)(nil)
