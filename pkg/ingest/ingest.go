// Package ingest orchestrates the capture pipeline: normalize, redact,
// extract, dedupe, store, with the spool as the fallback when the store is
// locked.
//
// The contract with the capture hook is that ingest never makes the agent
// wait on a lock and never loses a turn: a locked store spools the redacted
// turn and returns immediately, and a later reconcile replays it in order.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loamhq/loam/pkg/dedupe"
	"github.com/loamhq/loam/pkg/eventstream"
	"github.com/loamhq/loam/pkg/extract"
	"github.com/loamhq/loam/pkg/memory"
	"github.com/loamhq/loam/pkg/redact"
	"github.com/loamhq/loam/pkg/scope"
	"github.com/loamhq/loam/pkg/spool"
	"github.com/loamhq/loam/pkg/store"
	"github.com/loamhq/loam/pkg/turn"
)

// Outcome classifies what happened to a notified turn.
type Outcome string

const (
	// OutcomeCommitted means the turn's candidates reached the store.
	OutcomeCommitted Outcome = "committed"

	// OutcomeSpooled means the store was locked and the redacted turn went
	// to the spool for later replay.
	OutcomeSpooled Outcome = "spooled"

	// OutcomeDenied means the scope policy rejected the turn.
	OutcomeDenied Outcome = "denied"
)

// Result reports the outcome of one ingested turn.
type Result struct {
	Outcome  Outcome
	Scope    string
	TurnHash string
	Inserted int
	Merged   int
	SpoolSeq uint64
}

// Config wires an Ingestor. Redactor, Extractor, and Dedupe are required;
// Policy, Spool, and Events are optional.
type Config struct {
	Redactor  *redact.Redactor
	Policy    *scope.Policy
	Markers   []string
	Extractor *extract.Engine
	Dedupe    *dedupe.Engine
	Spool     *spool.Spool
	Events    eventstream.Publisher
	Logger    *slog.Logger
}

// Ingestor runs the capture pipeline.
type Ingestor struct {
	redactor  *redact.Redactor
	policy    *scope.Policy
	markers   []string
	extractor *extract.Engine
	dedupe    *dedupe.Engine
	spool     *spool.Spool
	events    eventstream.Publisher
	logger    *slog.Logger
}

// New creates an Ingestor from its wired components.
func New(c Config) *Ingestor {
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	markers := c.Markers
	if len(markers) == 0 {
		markers = scope.DefaultMarkers
	}

	return &Ingestor{
		redactor:  c.Redactor,
		policy:    c.Policy,
		markers:   markers,
		extractor: c.Extractor,
		dedupe:    c.Dedupe,
		spool:     c.Spool,
		events:    c.Events,
		logger:    logger,
	}
}

// Notify ingests one raw capture payload. The error return is reserved for
// unusable payloads and spool-append failures; everything else resolves to a
// Result so the capture hook never sees a pipeline failure.
func (i *Ingestor) Notify(ctx context.Context, payload []byte) (*Result, error) {
	t, err := turn.Parse(payload)
	if err != nil {
		return nil, err
	}

	t.Scope = scope.DetectRoot(t.CWD, i.markers)

	if i.policy != nil {
		if err := i.policy.Check(t.Scope); err != nil {
			i.logger.Info("turn denied by scope policy", "scope", t.Scope)
			return &Result{Outcome: OutcomeDenied, Scope: t.Scope, TurnHash: t.Hash}, nil
		}
	}

	i.redactor.Turn(t)

	// Spooled turns replay before this one commits, preserving order across
	// the lock outage.
	if i.spool != nil {
		pending, err := i.spool.PendingCount()
		if err != nil {
			i.logger.Warn("reading spool backlog", "error", err)
		} else if pending > 0 {
			if _, err := i.Reconcile(ctx); err != nil {
				return i.toSpool(t)
			}
		}
	}

	result, err := i.commit(ctx, t)
	if err != nil {
		if store.IsLocked(err) {
			return i.toSpool(t)
		}
		return nil, err
	}

	i.publish(ctx, t, result)

	return result, nil
}

// commit extracts candidates from a redacted turn and applies them through
// dedupe. A lock error propagates so the caller can spool; other per-candidate
// errors are logged and isolated.
func (i *Ingestor) commit(ctx context.Context, t *turn.Turn) (*Result, error) {
	result := &Result{Outcome: OutcomeCommitted, Scope: t.Scope, TurnHash: t.Hash}

	for _, cand := range i.extractor.Extract(ctx, t) {
		_, merged, err := i.dedupe.Apply(ctx, cand)
		if err != nil {
			if store.IsLocked(err) {
				return nil, err
			}
			i.logger.Warn("applying candidate", "kind", cand.Kind, "error", err)
			continue
		}

		if merged {
			result.Merged++
		} else {
			result.Inserted++
		}
	}

	return result, nil
}

func (i *Ingestor) toSpool(t *turn.Turn) (*Result, error) {
	if i.spool == nil {
		return nil, fmt.Errorf("store locked and no spool configured: %w", store.ErrLocked)
	}

	seq, err := i.spool.Append(t)
	if err != nil {
		return nil, fmt.Errorf("spooling turn: %w", err)
	}

	i.logger.Info("spooled turn", "seq", seq, "scope", t.Scope)

	return &Result{Outcome: OutcomeSpooled, Scope: t.Scope, TurnHash: t.Hash, SpoolSeq: seq}, nil
}

// Reconcile drains the spool through the same extract and dedupe pipeline.
// Replay is idempotent: candidates already committed before a crash or lock
// merge into their existing memories.
func (i *Ingestor) Reconcile(ctx context.Context) (*spool.Report, error) {
	if i.spool == nil {
		return &spool.Report{}, nil
	}

	r := spool.NewReconciler(i.spool, func(ctx context.Context, t *turn.Turn) error {
		_, err := i.commit(ctx, t)
		return err
	}, i.logger)

	return r.Run(ctx)
}

// Add ingests a single memory by hand, bypassing extraction. The text is
// still redacted and the scope still checked; dedupe decides whether it
// merges into an existing memory.
func (i *Ingestor) Add(ctx context.Context, kind memory.Kind, text, scopePath string, importance int) (*memory.Memory, bool, error) {
	scopePath = scope.DetectRoot(scopePath, i.markers)

	if i.policy != nil {
		if err := i.policy.Check(scopePath); err != nil {
			return nil, false, err
		}
	}

	cand := memory.Candidate{
		Kind:       kind,
		Text:       i.redactor.String(text),
		Importance: memory.ClampImportance(importance),
		Confidence: 1,
		Scope:      scopePath,
	}

	return i.dedupe.Apply(ctx, cand)
}

// publish emits the ingest event best-effort; a stream failure never affects
// the ingest result.
func (i *Ingestor) publish(ctx context.Context, t *turn.Turn, result *Result) {
	if i.events == nil || result.Inserted+result.Merged == 0 {
		return
	}

	event := &eventstream.TurnIngestedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeTurnIngested,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Scope:         result.Scope,
		Surface:       t.Surface,
		TurnHash:      result.TurnHash,
		Outcome:       string(result.Outcome),
		Inserted:      result.Inserted,
		Merged:        result.Merged,
	}

	if err := i.events.PublishIngest(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
		i.logger.Warn("publishing ingest event", "error", err)
	}
}
