package spool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/loamhq/loam/pkg/turn"
)

// ReplayFunc commits one spooled turn to the store. Implementations run the
// extract and dedupe pipeline; an error means nothing durable happened for
// this turn and the reconciler must stop.
type ReplayFunc func(ctx context.Context, t *turn.Turn) error

// Reconciler drains the spool into the store, oldest entry first.
type Reconciler struct {
	spool  *Spool
	replay ReplayFunc
	logger *slog.Logger
}

// Report summarizes one reconcile pass.
type Report struct {
	Replayed    int
	Quarantined int

	// Remaining is nonzero when a replay failure stopped the pass early.
	Remaining int
}

// NewReconciler creates a reconciler over a spool.
func NewReconciler(s *Spool, replay ReplayFunc, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{spool: s, replay: replay, logger: logger}
}

// Run replays pending entries in order. The watermark advances only after an
// entry's writes committed, so a crash between commit and advance means at
// worst one replayed entry is re-derived on the next run, where dedupe merges
// it. A store failure stops the pass with the failing entry still pending;
// corrupt entries are quarantined and the pass continues.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	r.spool.mu.Lock()
	defer r.spool.mu.Unlock()

	entries, err := r.spool.pendingLocked()
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			report.Remaining = len(entries) - i
			return report, err
		}

		if e.Corrupt {
			if err := r.spool.quarantine(e); err != nil {
				report.Remaining = len(entries) - i
				return report, err
			}
			report.Quarantined++
			continue
		}

		var t turn.Turn
		if err := json.Unmarshal(e.Payload, &t); err != nil {
			// Valid CRC but unparseable JSON: still a corrupt entry.
			r.logger.Warn("spooled turn does not parse", "seq", e.Seq, "error", err)
			if err := r.spool.quarantine(e); err != nil {
				report.Remaining = len(entries) - i
				return report, err
			}
			report.Quarantined++
			continue
		}

		if err := r.replay(ctx, &t); err != nil {
			report.Remaining = len(entries) - i
			return report, fmt.Errorf("replaying spool entry %d: %w", e.Seq, err)
		}

		if err := r.spool.advance(e.Seq); err != nil {
			report.Remaining = len(entries) - i
			return report, err
		}
		report.Replayed++

		r.logger.Debug("replayed spool entry", "seq", e.Seq)
	}

	if report.Replayed+report.Quarantined > 0 {
		if err := r.spool.truncate(); err != nil {
			return report, err
		}
	}

	return report, nil
}
