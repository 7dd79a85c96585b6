package store

import "strings"

// WidenText appends a duplicate candidate's text to an existing memory as a
// bullet, unless the existing text already contains it. Shared by every
// Driver's Absorb implementation so merge semantics never drift between
// backends.
func WidenText(existing, text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.Contains(existing, trimmed) {
		return existing
	}
	return strings.TrimSpace(existing) + "\n- " + trimmed
}
