// Package export renders store contents as markdown or JSON for backup and
// for pasting into agent context files.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/loamhq/loam/pkg/memory"
)

// kindOrder fixes section ordering in markdown output so exports diff cleanly
// between runs.
var kindOrder = []memory.Kind{
	memory.KindPreference,
	memory.KindDecision,
	memory.KindTodo,
	memory.KindPitfall,
	memory.KindWorkflowNote,
	memory.KindReference,
	memory.KindFact,
}

// headings maps kinds to their markdown section titles.
var headings = map[memory.Kind]string{
	memory.KindPreference:   "Preferences",
	memory.KindDecision:     "Decisions",
	memory.KindTodo:         "Todos",
	memory.KindPitfall:      "Pitfalls",
	memory.KindWorkflowNote: "Workflow Notes",
	memory.KindReference:    "References",
	memory.KindFact:         "Facts",
}

// Markdown writes memories grouped by kind. Within a section, entries keep
// the order the store returned them in.
func Markdown(w io.Writer, scope string, memories []*memory.Memory) error {
	title := "# Memories"
	if scope != "" {
		title = fmt.Sprintf("# Memories for %s", scope)
	}
	if _, err := fmt.Fprintf(w, "%s\n", title); err != nil {
		return err
	}

	byKind := make(map[memory.Kind][]*memory.Memory)
	for _, m := range memories {
		byKind[m.Kind] = append(byKind[m.Kind], m)
	}

	for _, kind := range kindOrder {
		group := byKind[kind]
		if len(group) == 0 {
			continue
		}

		if _, err := fmt.Fprintf(w, "\n## %s\n\n", headings[kind]); err != nil {
			return err
		}

		for _, m := range group {
			if err := writeEntry(w, m); err != nil {
				return err
			}
		}
	}

	return nil
}

// writeEntry renders one memory as a list item. Widened text keeps its
// bullet sub-structure through indentation.
func writeEntry(w io.Writer, m *memory.Memory) error {
	lines := strings.Split(m.Text, "\n")

	suffix := fmt.Sprintf(" _(importance %d", m.Importance)
	if m.MergeCount > 0 {
		suffix += fmt.Sprintf(", merged %d", m.MergeCount)
	}
	suffix += ")_"

	if _, err := fmt.Fprintf(w, "- %s%s\n", lines[0], suffix); err != nil {
		return err
	}
	for _, line := range lines[1:] {
		if _, err := fmt.Fprintf(w, "  %s\n", line); err != nil {
			return err
		}
	}

	return nil
}

// jsonExport is the stable envelope for JSON exports.
type jsonExport struct {
	Scope    string           `json:"scope,omitempty"`
	Count    int              `json:"count"`
	Memories []*memory.Memory `json:"memories"`
}

// JSON writes memories as an indented JSON document.
func JSON(w io.Writer, scope string, memories []*memory.Memory) error {
	if memories == nil {
		memories = []*memory.Memory{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(jsonExport{
		Scope:    scope,
		Count:    len(memories),
		Memories: memories,
	})
}
