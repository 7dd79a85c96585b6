// Package dedupe decides whether a candidate becomes a new memory or is
// absorbed into an existing one.
//
// This is the sole write path for ingest-derived memories, which is what
// keeps at most one memory per semantically-equivalent fact per scope. It
// also makes spool replay idempotent: a re-derived candidate scores 1.0
// against the memory its first derivation produced and merges instead of
// duplicating.
package dedupe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loamhq/loam/pkg/memory"
	"github.com/loamhq/loam/pkg/store"
)

const (
	// DefaultThreshold is the similarity score at which a candidate merges
	// instead of inserting.
	DefaultThreshold = 0.82

	// DefaultWindow bounds how many recent same-kind same-scope memories a
	// candidate is compared against.
	DefaultWindow = 8
)

// Engine applies candidates against the store through a similarity strategy.
type Engine struct {
	driver     store.Driver
	similarity Similarity
	threshold  float64
	window     int
	logger     *slog.Logger
}

// Config configures an Engine.
type Config struct {
	// Driver is the store to read the comparison window from and write to.
	Driver store.Driver

	// Similarity is the scoring strategy (defaults to Lexical).
	Similarity Similarity

	// Threshold is the merge cut-off (defaults to DefaultThreshold).
	Threshold float64

	// Window bounds the comparison set (defaults to DefaultWindow).
	Window int

	// Logger receives merge/insert debug lines.
	Logger *slog.Logger
}

// NewEngine builds an Engine from c, applying defaults for zero fields.
func NewEngine(c Config) *Engine {
	if c.Similarity == nil {
		c.Similarity = Lexical{}
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		driver:     c.Driver,
		similarity: c.Similarity,
		threshold:  c.Threshold,
		window:     c.Window,
		logger:     c.Logger,
	}
}

// Apply runs one candidate through dedup/merge. It returns the resulting
// memory and whether it was merged into an existing one (true) or newly
// inserted (false).
func (e *Engine) Apply(ctx context.Context, cand memory.Candidate) (*memory.Memory, bool, error) {
	window, err := e.driver.RecentByKind(ctx, cand.Scope, cand.Kind, e.window)
	if err != nil {
		return nil, false, fmt.Errorf("loading merge window: %w", err)
	}

	// RecentByKind returns most-recently-updated first, so on equal top
	// scores the strict > keeps the freshest match.
	var best *memory.Memory
	bestScore := 0.0
	for _, m := range window {
		score := e.similarity.Score(ctx, cand.Text, m.Text)
		if score > bestScore {
			best, bestScore = m, score
		}
	}

	if best != nil && bestScore >= e.threshold {
		if err := e.driver.Absorb(ctx, best.ID, cand.Text, cand.Importance); err != nil {
			return nil, false, fmt.Errorf("merging candidate: %w", err)
		}

		merged, err := e.driver.Get(ctx, best.ID)
		if err != nil {
			return nil, false, fmt.Errorf("reloading merged memory: %w", err)
		}

		e.logger.Debug("candidate merged",
			"id", merged.ID,
			"kind", cand.Kind,
			"score", bestScore,
			"merge_count", merged.MergeCount,
		)
		return merged, true, nil
	}

	m := &memory.Memory{
		Kind:       cand.Kind,
		Text:       cand.Text,
		Scope:      cand.Scope,
		Importance: memory.ClampImportance(cand.Importance),
		SourceTurn: cand.SourceTurn,
	}
	if _, err := e.driver.Insert(ctx, m); err != nil {
		return nil, false, fmt.Errorf("inserting candidate: %w", err)
	}

	e.logger.Debug("candidate inserted", "id", m.ID, "kind", cand.Kind)
	return m, false, nil
}
