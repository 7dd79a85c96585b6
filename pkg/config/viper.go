package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/loamhq/loam/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the LOAM_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (LOAM_MERGE_THRESHOLD, LOAM_API_LISTEN_ADDR, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("LOAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes the runtime Config from a viper instance built by
// InitViper, after any flag binding.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Store: StoreConfig{
			Path: v.GetString("store.path"),
		},
		Ingest: IngestConfig{
			MaxPerTurn:    v.GetInt("ingest.max_per_turn"),
			SpoolEnabled:  v.GetBool("ingest.spool_enabled"),
			BusyTimeoutMS: v.GetInt("ingest.busy_timeout_ms"),
		},
		Query: QueryConfig{
			BusyTimeoutMS: v.GetInt("query.busy_timeout_ms"),
			RecallLimit:   v.GetInt("query.recall_limit"),
		},
		Merge: MergeConfig{
			Threshold:  v.GetFloat64("merge.threshold"),
			Window:     v.GetInt("merge.window"),
			Similarity: v.GetString("merge.similarity"),
		},
		Scope: ScopeConfig{
			Markers: v.GetStringSlice("scope.markers"),
			Allow:   v.GetStringSlice("scope.allow"),
			Deny:    v.GetStringSlice("scope.deny"),
		},
		Redact: RedactConfig{
			Patterns: v.GetStringSlice("redact.patterns"),
		},
		Remote: RemoteConfig{
			Enabled:   v.GetBool("remote.enabled"),
			Model:     v.GetString("remote.model"),
			BaseURL:   v.GetString("remote.base_url"),
			APIKeyEnv: v.GetString("remote.api_key_env"),
			TimeoutMS: v.GetInt("remote.timeout_ms"),
			MaxChars:  v.GetInt("remote.max_chars"),
		},
		Events: EventsConfig{
			Enabled: v.GetBool("events.enabled"),
			Brokers: v.GetStringSlice("events.brokers"),
			Topic:   v.GetString("events.topic"),
		},
		Embeddings: EmbeddingsConfig{
			BaseURL: v.GetString("embeddings.base_url"),
			Model:   v.GetString("embeddings.model"),
		},
		API: APIConfig{
			ListenAddr: v.GetString("api.listen_addr"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("store.path", d.Store.Path)

	v.SetDefault("ingest.max_per_turn", d.Ingest.MaxPerTurn)
	v.SetDefault("ingest.spool_enabled", d.Ingest.SpoolEnabled)
	v.SetDefault("ingest.busy_timeout_ms", d.Ingest.BusyTimeoutMS)

	v.SetDefault("query.busy_timeout_ms", d.Query.BusyTimeoutMS)
	v.SetDefault("query.recall_limit", d.Query.RecallLimit)

	v.SetDefault("merge.threshold", d.Merge.Threshold)
	v.SetDefault("merge.window", d.Merge.Window)
	v.SetDefault("merge.similarity", d.Merge.Similarity)

	v.SetDefault("scope.markers", d.Scope.Markers)
	v.SetDefault("scope.allow", d.Scope.Allow)
	v.SetDefault("scope.deny", d.Scope.Deny)

	v.SetDefault("redact.patterns", d.Redact.Patterns)

	v.SetDefault("remote.enabled", d.Remote.Enabled)
	v.SetDefault("remote.model", d.Remote.Model)
	v.SetDefault("remote.base_url", d.Remote.BaseURL)
	v.SetDefault("remote.api_key_env", d.Remote.APIKeyEnv)
	v.SetDefault("remote.timeout_ms", d.Remote.TimeoutMS)
	v.SetDefault("remote.max_chars", d.Remote.MaxChars)

	v.SetDefault("embeddings.base_url", d.Embeddings.BaseURL)
	v.SetDefault("embeddings.model", d.Embeddings.Model)

	v.SetDefault("events.enabled", d.Events.Enabled)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	v.SetDefault("api.listen_addr", d.API.ListenAddr)
}
