package extract

import (
	"context"
	"errors"

	"github.com/loamhq/loam/pkg/memory"
	"github.com/loamhq/loam/pkg/turn"
)

// ErrBackendUnavailable indicates the remote extractor could not serve the
// request (disabled, timed out, or errored). The engine falls back to
// rule-based output; callers never see this error.
var ErrBackendUnavailable = errors.New("extraction backend unavailable")

// Backend is the capability interface for remote extraction. Implementations
// must bound their own latency; the engine treats any error as unavailability.
type Backend interface {
	Extract(ctx context.Context, t *turn.Turn) ([]memory.Candidate, error)
}

// NopBackend is the default null object: always unavailable, so rule-based
// extraction is the single required path.
type NopBackend struct{}

// Extract always reports ErrBackendUnavailable.
func (NopBackend) Extract(context.Context, *turn.Turn) ([]memory.Candidate, error) {
	return nil, ErrBackendUnavailable
}

var _ Backend = NopBackend{}
