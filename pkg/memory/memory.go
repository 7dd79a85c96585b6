// Package memory defines the domain model of the loam system.
//
// A Memory is the persisted unit: a scoped, kind-tagged piece of durable
// knowledge distilled from agent conversation turns. A Candidate is the
// transient proposal produced by extraction (or a manual add) before the
// dedup/merge engine decides whether it becomes a new Memory or is absorbed
// into an existing one. Memories never contain unredacted secrets; redaction
// happens upstream of every write path.
package memory

import "time"

// Kind classifies what a memory captures. The enumeration is closed; the
// string values below are the persisted representation.
type Kind string

const (
	KindPreference   Kind = "preference"
	KindFact         Kind = "fact"
	KindDecision     Kind = "decision"
	KindTodo         Kind = "todo"
	KindPitfall      Kind = "pitfall"
	KindWorkflowNote Kind = "workflow-note"
	KindReference    Kind = "reference"
)

// Kinds returns all valid kinds in their canonical order.
func Kinds() []Kind {
	return []Kind{
		KindPreference,
		KindFact,
		KindDecision,
		KindTodo,
		KindPitfall,
		KindWorkflowNote,
		KindReference,
	}
}

// ParseKind validates a kind string from an external caller.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", UnknownKindError{Value: s}
}

// Importance bounds. DefaultImportance is assigned when no heuristic or
// caller says otherwise.
const (
	MinImportance     = 0
	MaxImportance     = 5
	DefaultImportance = 3
)

// ClampImportance bounds n to [MinImportance, MaxImportance].
func ClampImportance(n int) int {
	if n < MinImportance {
		return MinImportance
	}
	if n > MaxImportance {
		return MaxImportance
	}
	return n
}

// Memory is the persisted unit of durable knowledge.
type Memory struct {
	ID         int64     `json:"id"`
	Kind       Kind      `json:"kind"`
	Text       string    `json:"text"`
	Scope      string    `json:"scope"`
	Importance int       `json:"importance"`
	SourceTurn string    `json:"source_turn,omitempty"`
	MergeCount int       `json:"merge_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Candidate is a not-yet-committed memory proposal. It always passes through
// the dedup/merge engine before becoming or updating a Memory.
type Candidate struct {
	Kind       Kind    `json:"kind"`
	Text       string  `json:"text"`
	Importance int     `json:"importance"`
	Confidence float64 `json:"confidence"`
	Scope      string  `json:"scope"`
	SourceTurn string  `json:"source_turn,omitempty"`
}

// Patch is a partial update to a Memory. Nil fields are left untouched.
type Patch struct {
	Kind       *Kind
	Text       *string
	Importance *int
}

// Empty reports whether the patch would change nothing.
func (p Patch) Empty() bool {
	return p.Kind == nil && p.Text == nil && p.Importance == nil
}

// Filters narrows search/recall results. Zero values mean "no constraint".
type Filters struct {
	Kind          Kind      `json:"kind,omitempty"`
	MinImportance int       `json:"min_importance,omitempty"`
	Since         time.Time `json:"since,omitempty"`
	Until         time.Time `json:"until,omitempty"`
}

// Stats summarizes a scope's slice of the store.
type Stats struct {
	Scope     string         `json:"scope,omitempty"`
	Total     int64          `json:"total"`
	ByKind    map[Kind]int64 `json:"by_kind"`
	SizeBytes int64          `json:"size_bytes"`
}
