package extract

import (
	"regexp"
	"strings"

	"github.com/loamhq/loam/pkg/memory"
)

// rule classifies a sentence into one memory kind by pattern match.
type rule struct {
	kind     memory.Kind
	patterns []*regexp.Regexp
}

// rules is the fixed classification order. Specific kinds come first; fact is
// the generic fallback and is checked last, so "I always use tabs" lands as a
// preference, not a fact about "use".
var rules = []rule{
	{memory.KindPreference, compile(
		`(?i)\bprefer\b`,
		`(?i)\balways\b`,
		`(?i)\bfrom now on\b`,
	)},
	{memory.KindDecision, compile(
		`(?i)\bwe (will|decided)\b`,
		`(?i)\bdecision\b`,
		`(?i)\bchoose\b`,
	)},
	{memory.KindTodo, compile(
		`\bTODO\b`,
		`(?i)\bnext\b`,
		`(?i)\bfollow up\b`,
		`(?i)\bneed to\b`,
	)},
	{memory.KindPitfall, compile(
		`(?i)\bavoid\b`,
		`(?i)\bdon't\b`,
		`(?i)\bissue\b`,
		`(?i)\bfails?\b`,
	)},
	{memory.KindWorkflowNote, compile(
		`(?i)\bworkflow\b`,
		`(?i)\bprocess\b`,
		`(?i)\bsteps\b`,
	)},
	{memory.KindReference, compile(
		`(?i)\bsee\b`,
		`(?i)\bref(erence)?\b`,
		`(?i)\bdoc\b`,
		`(?i)\burl\b`,
	)},
	{memory.KindFact, compile(
		`(?i)\bus(e|ing)\b`,
		`(?i)\brunning\b`,
		`(?i)\bversion\b`,
	)},
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		out[i] = regexp.MustCompile(expr)
	}
	return out
}

// classify returns the first kind whose patterns match the sentence, or ""
// when no rule matches.
func classify(sentence string) memory.Kind {
	for _, r := range rules {
		for _, p := range r.patterns {
			if p.MatchString(sentence) {
				return r.kind
			}
		}
	}
	return ""
}

// importanceOf derives a 0-5 importance from phrasing strength.
func importanceOf(sentence string) int {
	lowered := strings.ToLower(sentence)
	switch {
	case strings.Contains(lowered, "always"),
		strings.Contains(lowered, "never"),
		strings.Contains(lowered, "must"):
		return 5
	case strings.Contains(lowered, "should"):
		return 4
	case strings.Contains(lowered, "maybe"),
		strings.Contains(lowered, "optional"):
		return 2
	default:
		return memory.DefaultImportance
	}
}

// confidenceFor maps importance onto [0,1] deterministically so the cap's
// ordering is reproducible across replays.
func confidenceFor(importance int) float64 {
	c := 0.5 + 0.1*float64(importance)
	if c > 1 {
		c = 1
	}
	return c
}

// sentenceScan matches one sentence (terminator included) at a time. RE2 has
// no lookbehind, so instead of splitting after terminators the scan consumes
// up to and including each one.
var sentenceScan = regexp.MustCompile(`[^.!?\n]+[.!?\n]?`)

// splitSentences breaks text on ./!/?/newline boundaries, trimming blanks.
func splitSentences(text string) []string {
	raw := sentenceScan.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
