// Package eventstream defines the transport-neutral ingest event payload and
// the Publisher interface its backends implement.
package eventstream

import (
	"time"

	"github.com/loamhq/loam/pkg/memory"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnIngested is emitted after a turn's candidates are
	// committed to the store.
	EventTypeTurnIngested = "loam.turn.ingested"
)

// TurnIngestedEvent is a transport-neutral event payload for an ingested
// turn. It carries counts and memory kinds rather than memory text, so the
// stream never leaks content the store redacted into scope-local files.
type TurnIngestedEvent struct {
	SchemaVersion int           `json:"schema_version"`
	EventType     string        `json:"event_type"`
	EventID       string        `json:"event_id"`
	EmittedAt     time.Time     `json:"emitted_at"`
	Scope         string        `json:"scope"`
	Surface       string        `json:"surface,omitempty"`
	TurnHash      string        `json:"turn_hash"`
	Outcome       string        `json:"outcome"`
	Inserted      int           `json:"inserted"`
	Merged        int           `json:"merged"`
	Kinds         []memory.Kind `json:"kinds,omitempty"`
}
