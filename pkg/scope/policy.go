package scope

import (
	"errors"
	"log/slog"

	"github.com/gobwas/glob"
)

// ErrDenied is returned when a scope fails the allow/deny policy. Callers
// refuse the operation without writing anything.
var ErrDenied = errors.New("scope denied by policy")

// Policy gates which scopes may receive memories. Deny takes precedence over
// allow; an empty allow list allows every scope.
type Policy struct {
	allow []glob.Glob
	deny  []glob.Glob
}

// NewPolicy compiles the allow and deny glob lists. Patterns that fail to
// compile are skipped with a warning rather than invalidating the policy.
func NewPolicy(allow, deny []string, log *slog.Logger) *Policy {
	return &Policy{
		allow: compileAll(allow, log),
		deny:  compileAll(deny, log),
	}
}

// Check returns ErrDenied when scope matches a deny glob, or when a non-empty
// allow list matches nothing.
func (p *Policy) Check(scope string) error {
	for _, g := range p.deny {
		if g.Match(scope) {
			return ErrDenied
		}
	}

	if len(p.allow) == 0 {
		return nil
	}
	for _, g := range p.allow {
		if g.Match(scope) {
			return nil
		}
	}
	return ErrDenied
}

func compileAll(patterns []string, log *slog.Logger) []glob.Glob {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			log.Warn("skipping invalid scope glob", "pattern", pattern, "error", err)
			continue
		}
		globs = append(globs, g)
	}
	return globs
}
