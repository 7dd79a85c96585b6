// Package extract turns redacted turns into memory candidates.
//
// The required path is rule-based: each sentence of each utterance is
// classified by a fixed ordered rule list, yielding at most one candidate per
// sentence. A remote Backend may add candidates; its failure is never fatal
// and never blocks ingest. Output is capped and stable-sorted by
// (confidence desc, discovery order asc).
package extract

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/loamhq/loam/pkg/memory"
	"github.com/loamhq/loam/pkg/turn"
)

// DefaultMaxPerTurn caps how many candidates one turn can produce.
const DefaultMaxPerTurn = 5

// Engine applies the rule list (and optionally a remote backend) to turns.
type Engine struct {
	backend    Backend
	maxPerTurn int
	logger     *slog.Logger
}

// Config configures an Engine.
type Config struct {
	// Backend is the optional remote extractor. Nil means rule-based only.
	Backend Backend

	// MaxPerTurn caps candidates per turn (defaults to DefaultMaxPerTurn).
	MaxPerTurn int

	// Logger receives backend-failure debug lines.
	Logger *slog.Logger
}

// NewEngine builds an Engine from c, applying defaults for zero fields.
func NewEngine(c Config) *Engine {
	if c.Backend == nil {
		c.Backend = NopBackend{}
	}
	if c.MaxPerTurn <= 0 {
		c.MaxPerTurn = DefaultMaxPerTurn
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		backend:    c.Backend,
		maxPerTurn: c.MaxPerTurn,
		logger:     c.Logger,
	}
}

// Extract produces at most MaxPerTurn candidates for t, stable-sorted by
// (confidence desc, discovery order asc). A zero-match turn yields nil.
func (e *Engine) Extract(ctx context.Context, t *turn.Turn) []memory.Candidate {
	candidates := e.ruleBased(t)

	remote, err := e.backend.Extract(ctx, t)
	if err != nil {
		if !errors.Is(err, ErrBackendUnavailable) {
			e.logger.Debug("remote extraction failed, using rule output", "error", err)
		}
	} else {
		for _, c := range remote {
			c.Scope = t.Scope
			c.SourceTurn = t.Hash
			if c.Confidence == 0 {
				c.Confidence = defaultBackendConfidence
			}
			c.Importance = memory.ClampImportance(c.Importance)
			candidates = append(candidates, c)
		}
	}

	// Stable sort preserves discovery order among equal confidences.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	if len(candidates) > e.maxPerTurn {
		candidates = candidates[:e.maxPerTurn]
	}

	return candidates
}

// defaultBackendConfidence applies when a backend omits its own score.
const defaultBackendConfidence = 0.7

// ruleBased walks every sentence of every utterance through the rule list.
func (e *Engine) ruleBased(t *turn.Turn) []memory.Candidate {
	var candidates []memory.Candidate
	for _, u := range t.Utterances {
		for _, sentence := range splitSentences(u.Text) {
			kind := classify(sentence)
			if kind == "" {
				continue
			}

			importance := importanceOf(sentence)
			candidates = append(candidates, memory.Candidate{
				Kind:       kind,
				Text:       sentence,
				Importance: importance,
				Confidence: confidenceFor(importance),
				Scope:      t.Scope,
				SourceTurn: t.Hash,
			})
		}
	}
	return candidates
}
