package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent loam configuration stored as config.toml
// in the .loam/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version    int              `toml:"version"`
	Store      StoreConfig      `toml:"store"`
	Ingest     IngestConfig     `toml:"ingest"`
	Query      QueryConfig      `toml:"query"`
	Merge      MergeConfig      `toml:"merge"`
	Scope      ScopeConfig      `toml:"scope"`
	Redact     RedactConfig     `toml:"redact"`
	Remote     RemoteConfig     `toml:"remote"`
	Embeddings EmbeddingsConfig `toml:"embeddings"`
	Events     EventsConfig     `toml:"events"`
	API        APIConfig        `toml:"api"`
}

// StoreConfig holds the memory store location. An empty path resolves to
// loam.db inside the active .loam/ directory.
type StoreConfig struct {
	Path string `toml:"path"`
}

// IngestConfig holds capture-path settings. The busy timeout is deliberately
// short so a locked store spools instead of stalling the agent hook.
type IngestConfig struct {
	MaxPerTurn    int  `toml:"max_per_turn"`
	SpoolEnabled  bool `toml:"spool_enabled"`
	BusyTimeoutMS int  `toml:"busy_timeout_ms"`
}

// QueryConfig holds read-path settings.
type QueryConfig struct {
	BusyTimeoutMS int `toml:"busy_timeout_ms"`
	RecallLimit   int `toml:"recall_limit"`
}

// MergeConfig holds dedup/merge settings. Similarity is "lexical" or
// "semantic".
type MergeConfig struct {
	Threshold  float64 `toml:"threshold"`
	Window     int     `toml:"window"`
	Similarity string  `toml:"similarity"`
}

// ScopeConfig holds project-root detection markers and the allow/deny glob
// policy over detected scopes.
type ScopeConfig struct {
	Markers []string `toml:"markers"`
	Allow   []string `toml:"allow"`
	Deny    []string `toml:"deny"`
}

// RedactConfig holds extra user-supplied redaction patterns, applied after
// the builtins.
type RedactConfig struct {
	Patterns []string `toml:"patterns"`
}

// RemoteConfig holds the optional remote extraction backend settings.
type RemoteConfig struct {
	Enabled   bool   `toml:"enabled"`
	Model     string `toml:"model"`
	BaseURL   string `toml:"base_url"`
	APIKeyEnv string `toml:"api_key_env"`
	TimeoutMS int    `toml:"timeout_ms"`
	MaxChars  int    `toml:"max_chars"`
}

// EmbeddingsConfig holds the Ollama endpoint used by semantic similarity.
type EmbeddingsConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// EventsConfig holds the optional Kafka ingest event stream settings.
type EventsConfig struct {
	Enabled bool     `toml:"enabled"`
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure. List-valued
// keys read and write comma-separated values.
var configKeys = map[string]configKeyInfo{
	"store.path": {
		get: func(c *Config) string { return c.Store.Path },
		set: func(c *Config, v string) error { c.Store.Path = v; return nil },
	},
	"ingest.max_per_turn": {
		get: func(c *Config) string { return strconv.Itoa(c.Ingest.MaxPerTurn) },
		set: func(c *Config, v string) error { return setInt(&c.Ingest.MaxPerTurn, "ingest.max_per_turn", v) },
	},
	"ingest.spool_enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Ingest.SpoolEnabled) },
		set: func(c *Config, v string) error { return setBool(&c.Ingest.SpoolEnabled, "ingest.spool_enabled", v) },
	},
	"ingest.busy_timeout_ms": {
		get: func(c *Config) string { return strconv.Itoa(c.Ingest.BusyTimeoutMS) },
		set: func(c *Config, v string) error { return setInt(&c.Ingest.BusyTimeoutMS, "ingest.busy_timeout_ms", v) },
	},
	"query.busy_timeout_ms": {
		get: func(c *Config) string { return strconv.Itoa(c.Query.BusyTimeoutMS) },
		set: func(c *Config, v string) error { return setInt(&c.Query.BusyTimeoutMS, "query.busy_timeout_ms", v) },
	},
	"query.recall_limit": {
		get: func(c *Config) string { return strconv.Itoa(c.Query.RecallLimit) },
		set: func(c *Config, v string) error { return setInt(&c.Query.RecallLimit, "query.recall_limit", v) },
	},
	"merge.threshold": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Merge.Threshold, 'g', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for merge.threshold: %w", err)
			}
			if f < 0 || f > 1 {
				return fmt.Errorf("merge.threshold must be between 0 and 1, got %v", f)
			}
			c.Merge.Threshold = f
			return nil
		},
	},
	"merge.window": {
		get: func(c *Config) string { return strconv.Itoa(c.Merge.Window) },
		set: func(c *Config, v string) error { return setInt(&c.Merge.Window, "merge.window", v) },
	},
	"merge.similarity": {
		get: func(c *Config) string { return c.Merge.Similarity },
		set: func(c *Config, v string) error {
			if v != SimilarityLexical && v != SimilaritySemantic {
				return fmt.Errorf("merge.similarity must be %q or %q, got %q", SimilarityLexical, SimilaritySemantic, v)
			}
			c.Merge.Similarity = v
			return nil
		},
	},
	"scope.markers": {
		get: func(c *Config) string { return strings.Join(c.Scope.Markers, ",") },
		set: func(c *Config, v string) error { c.Scope.Markers = splitList(v); return nil },
	},
	"scope.allow": {
		get: func(c *Config) string { return strings.Join(c.Scope.Allow, ",") },
		set: func(c *Config, v string) error { c.Scope.Allow = splitList(v); return nil },
	},
	"scope.deny": {
		get: func(c *Config) string { return strings.Join(c.Scope.Deny, ",") },
		set: func(c *Config, v string) error { c.Scope.Deny = splitList(v); return nil },
	},
	"redact.patterns": {
		get: func(c *Config) string { return strings.Join(c.Redact.Patterns, ",") },
		set: func(c *Config, v string) error { c.Redact.Patterns = splitList(v); return nil },
	},
	"remote.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Remote.Enabled) },
		set: func(c *Config, v string) error { return setBool(&c.Remote.Enabled, "remote.enabled", v) },
	},
	"remote.model": {
		get: func(c *Config) string { return c.Remote.Model },
		set: func(c *Config, v string) error { c.Remote.Model = v; return nil },
	},
	"remote.base_url": {
		get: func(c *Config) string { return c.Remote.BaseURL },
		set: func(c *Config, v string) error { c.Remote.BaseURL = v; return nil },
	},
	"remote.api_key_env": {
		get: func(c *Config) string { return c.Remote.APIKeyEnv },
		set: func(c *Config, v string) error { c.Remote.APIKeyEnv = v; return nil },
	},
	"remote.timeout_ms": {
		get: func(c *Config) string { return strconv.Itoa(c.Remote.TimeoutMS) },
		set: func(c *Config, v string) error { return setInt(&c.Remote.TimeoutMS, "remote.timeout_ms", v) },
	},
	"remote.max_chars": {
		get: func(c *Config) string { return strconv.Itoa(c.Remote.MaxChars) },
		set: func(c *Config, v string) error { return setInt(&c.Remote.MaxChars, "remote.max_chars", v) },
	},
	"embeddings.base_url": {
		get: func(c *Config) string { return c.Embeddings.BaseURL },
		set: func(c *Config, v string) error { c.Embeddings.BaseURL = v; return nil },
	},
	"embeddings.model": {
		get: func(c *Config) string { return c.Embeddings.Model },
		set: func(c *Config, v string) error { c.Embeddings.Model = v; return nil },
	},
	"events.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Events.Enabled) },
		set: func(c *Config, v string) error { return setBool(&c.Events.Enabled, "events.enabled", v) },
	},
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error { c.Events.Brokers = splitList(v); return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"api.listen_addr": {
		get: func(c *Config) string { return c.API.ListenAddr },
		set: func(c *Config, v string) error { c.API.ListenAddr = v; return nil },
	},
}

func setInt(target *int, key, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*target = n
	return nil
}

func setBool(target *bool, key, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*target = b
	return nil
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
