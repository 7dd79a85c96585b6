// Package turn normalizes raw capture-hook payloads into canonical turns.
//
// A payload arrives as JSON with `input-messages` (strings or role/content
// objects) and `last-assistant-message` (string or object, possibly carrying
// a content part list). Hooks disagree on key style, so both kebab-case and
// snake_case keys are accepted. Normalization never fails on malformed
// structure: parts that cannot be resolved become empty utterances flagged
// Degraded so the pipeline continues instead of dropping the whole turn.
package turn

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role tags who produced an utterance.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Utterance is one role-tagged message within a turn.
type Utterance struct {
	Role     Role   `json:"role"`
	Text     string `json:"text"`
	Surface  string `json:"surface,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

// Turn is one captured interaction. It is ephemeral: consumed by extraction
// and never persisted verbatim unless it lands in the spool.
type Turn struct {
	Utterances []Utterance    `json:"utterances"`
	CWD        string         `json:"cwd,omitempty"`
	Scope      string         `json:"scope"`
	Surface    string         `json:"surface,omitempty"`
	CapturedAt time.Time      `json:"captured_at"`
	Hash       string         `json:"hash"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Degraded reports whether any utterance was only partially normalized.
func (t *Turn) Degraded() bool {
	for _, u := range t.Utterances {
		if u.Degraded {
			return true
		}
	}
	return false
}

// Text concatenates all utterance texts, used for size accounting and
// remote-extraction prompts.
func (t *Turn) Text() string {
	parts := make([]string, 0, len(t.Utterances))
	for _, u := range t.Utterances {
		if u.Text != "" {
			parts = append(parts, u.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// consumedKeys are payload fields with first-class meaning; everything else
// is preserved opaquely in Meta.
var consumedKeys = map[string]bool{
	"input-messages":         true,
	"input_messages":         true,
	"last-assistant-message": true,
	"last_assistant_message": true,
	"cwd":                    true,
	"surface":                true,
	"ts-utc":                 true,
	"ts_utc":                 true,
}

// Parse converts a raw capture payload into a canonical Turn. The only fatal
// condition is input that is not a JSON object; every structural oddity
// inside a valid object degrades instead.
func Parse(payload []byte) (*Turn, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("parsing turn payload: %w", err)
	}

	t := &Turn{
		CWD:        stringField(raw, "cwd"),
		Surface:    stringField(raw, "surface"),
		CapturedAt: timestampField(raw),
	}
	t.Scope = t.CWD

	if inputs, ok := listField(raw, "input-messages", "input_messages"); ok {
		for _, item := range inputs {
			t.Utterances = append(t.Utterances, coerce(item, RoleUser))
		}
	}

	if last, ok := field(raw, "last-assistant-message", "last_assistant_message"); ok {
		t.Utterances = append(t.Utterances, coerce(last, RoleAssistant))
	} else {
		t.Utterances = append(t.Utterances, Utterance{Role: RoleAssistant, Degraded: true})
	}

	for key, value := range raw {
		if consumedKeys[key] {
			continue
		}
		if t.Meta == nil {
			t.Meta = make(map[string]any)
		}
		t.Meta[key] = value
	}

	t.Hash = t.contentHash()

	return t, nil
}

// contentHash derives the turn's stable identity: thread/turn identifiers
// when the hook supplied them, the raw working directory, and every
// utterance's role and text in order.
func (t *Turn) contentHash() string {
	h := sha256.New()
	for _, part := range []string{t.metaString("thread-id", "thread_id"), t.metaString("turn-id", "turn_id"), t.CWD} {
		h.Write([]byte(part))
		h.Write([]byte{0x00})
	}
	for _, u := range t.Utterances {
		h.Write([]byte(u.Role))
		h.Write([]byte{0x1f})
		h.Write([]byte(u.Text))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (t *Turn) metaString(keys ...string) string {
	for _, key := range keys {
		if v, ok := t.Meta[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

// coerce resolves one payload item into an Utterance. Plain strings take the
// default role. Objects may carry role, surface, and content either as a
// string or as an ordered part list (strings or {"text": ...} objects,
// joined by newlines). Anything else degrades.
func coerce(item any, def Role) Utterance {
	switch v := item.(type) {
	case string:
		return Utterance{Role: def, Text: v}

	case map[string]any:
		u := Utterance{
			Role:    parseRole(v["role"], def),
			Surface: stringField(v, "surface"),
		}

		content, ok := v["content"]
		if !ok {
			content, ok = v["text"]
		}
		if !ok {
			u.Degraded = true
			return u
		}

		text, resolved := flattenContent(content)
		u.Text = text
		u.Degraded = !resolved
		return u

	default:
		return Utterance{Role: def, Degraded: true}
	}
}

// flattenContent collapses a content value to plain text. Returns false when
// no part of the value could be resolved.
func flattenContent(content any) (string, bool) {
	switch v := content.(type) {
	case string:
		return v, true

	case []any:
		var parts []string
		resolvedAny := false
		for _, part := range v {
			switch p := part.(type) {
			case string:
				parts = append(parts, p)
				resolvedAny = true
			case map[string]any:
				if text, ok := p["text"].(string); ok {
					parts = append(parts, text)
					resolvedAny = true
				}
			}
		}
		return strings.Join(parts, "\n"), resolvedAny || len(v) == 0

	default:
		return "", false
	}
}

func parseRole(v any, def Role) Role {
	s, ok := v.(string)
	if !ok {
		return def
	}
	switch Role(strings.ToLower(s)) {
	case RoleUser:
		return RoleUser
	case RoleAssistant:
		return RoleAssistant
	case RoleSystem:
		return RoleSystem
	case RoleTool:
		return RoleTool
	default:
		return def
	}
}

func field(m map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			return v, true
		}
	}
	return nil, false
}

func listField(m map[string]any, keys ...string) ([]any, bool) {
	v, ok := field(m, keys...)
	if !ok {
		return nil, false
	}
	list, ok := v.([]any)
	return list, ok
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// timestampField accepts either RFC3339 strings or unix-seconds numbers for
// ts-utc, defaulting to the current time.
func timestampField(m map[string]any) time.Time {
	v, ok := field(m, "ts-utc", "ts_utc")
	if !ok {
		return time.Now().UTC()
	}

	switch ts := v.(type) {
	case string:
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			return parsed.UTC()
		}
	case float64:
		sec := int64(ts)
		nsec := int64((ts - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC()
	}

	return time.Now().UTC()
}
