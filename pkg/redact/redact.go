// Package redact rewrites secret-bearing text before it can reach extraction
// or any persistent surface (store or spool).
//
// Matches are replaced with a stable [REDACTED:NAME] placeholder. Placeholders
// never re-match any built-in pattern, so redaction is idempotent.
package redact

import (
	"log/slog"
	"regexp"
	"strconv"

	"github.com/loamhq/loam/pkg/turn"
)

// Placeholder returns the replacement token for a named pattern.
func Placeholder(name string) string {
	return "[REDACTED:" + name + "]"
}

// pattern pairs a placeholder name with its compiled expression.
type pattern struct {
	name string
	re   *regexp.Regexp
}

// builtinPatterns cover the common credential shapes seen in agent
// conversations. Order matters: BEARER before JWT so a bearer-prefixed token
// gets the more specific name.
var builtinPatterns = []pattern{
	{"OPENAI_KEY", regexp.MustCompile(`sk-[A-Za-z0-9]{32,}`)},
	{"GITHUB_TOKEN", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36,}`)},
	{"AWS_KEY", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"BEARER", regexp.MustCompile(`Bearer [A-Za-z0-9\-_=]{20,}\.[A-Za-z0-9\-_=]{10,}\.[A-Za-z0-9\-_=]{10,}`)},
	{"PRIVATE_KEY", regexp.MustCompile(`-----BEGIN [^-]+ PRIVATE KEY-----[\s\S]+?-----END [^-]+ PRIVATE KEY-----`)},
	{"SLACK_TOKEN", regexp.MustCompile(`xox[baprs]-[A-Za-z0-9\-]{10,48}`)},
	{"JWT", regexp.MustCompile(`[A-Za-z0-9\-_]{20,}\.[A-Za-z0-9\-_]{10,}\.[A-Za-z0-9\-_]{10,}`)},
}

// Redactor applies the built-in pattern set plus caller-supplied extras.
type Redactor struct {
	patterns []pattern
}

// New builds a Redactor. Extra expressions that fail to compile are skipped
// with a warning; a bad user pattern never disables redaction as a whole.
// Extras are named USER1..USERn in the order supplied.
func New(extra []string, log *slog.Logger) *Redactor {
	patterns := make([]pattern, len(builtinPatterns), len(builtinPatterns)+len(extra))
	copy(patterns, builtinPatterns)

	n := 0
	for _, expr := range extra {
		re, err := regexp.Compile(expr)
		if err != nil {
			log.Warn("skipping invalid redaction pattern", "pattern", expr, "error", err)
			continue
		}
		n++
		patterns = append(patterns, pattern{name: "USER" + strconv.Itoa(n), re: re})
	}

	return &Redactor{patterns: patterns}
}

// String rewrites all pattern matches in s with their placeholders.
func (r *Redactor) String(s string) string {
	for _, p := range r.patterns {
		s = p.re.ReplaceAllString(s, Placeholder(p.name))
	}
	return s
}

// Turn rewrites every utterance of t in place and returns t.
func (r *Redactor) Turn(t *turn.Turn) *turn.Turn {
	for i := range t.Utterances {
		t.Utterances[i].Text = r.String(t.Utterances[i].Text)
	}
	return t
}

// PatternCount reports how many patterns are active, extras included.
func (r *Redactor) PatternCount() int {
	return len(r.patterns)
}
