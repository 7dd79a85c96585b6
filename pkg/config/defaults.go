package config

import "time"

// Similarity strategy names accepted by merge.similarity.
const (
	SimilarityLexical  = "lexical"
	SimilaritySemantic = "semantic"
)

const (
	defaultMaxPerTurn       = 5
	defaultIngestBusyMS     = 250
	defaultQueryBusyMS      = 5000
	defaultRecallLimit      = 12
	defaultMergeThreshold   = 0.82
	defaultMergeWindow      = 8
	defaultScopeMarker      = ".git"
	defaultRemoteModel      = "gpt-4o-mini"
	defaultRemoteBaseURL    = "https://api.openai.com/v1"
	defaultRemoteAPIKeyEnv  = "OPENAI_API_KEY"
	defaultRemoteTimeoutMS  = 4000
	defaultRemoteMaxChars   = 5000
	defaultEmbedBaseURL     = "http://localhost:11434"
	defaultEmbedModel       = "nomic-embed-text"
	defaultEventsTopic      = "loam.ingest"
	defaultAPIListen        = ":8787"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Ingest: IngestConfig{
			MaxPerTurn:    defaultMaxPerTurn,
			SpoolEnabled:  true,
			BusyTimeoutMS: defaultIngestBusyMS,
		},
		Query: QueryConfig{
			BusyTimeoutMS: defaultQueryBusyMS,
			RecallLimit:   defaultRecallLimit,
		},
		Merge: MergeConfig{
			Threshold:  defaultMergeThreshold,
			Window:     defaultMergeWindow,
			Similarity: SimilarityLexical,
		},
		Scope: ScopeConfig{
			Markers: []string{defaultScopeMarker},
		},
		Remote: RemoteConfig{
			Model:     defaultRemoteModel,
			BaseURL:   defaultRemoteBaseURL,
			APIKeyEnv: defaultRemoteAPIKeyEnv,
			TimeoutMS: defaultRemoteTimeoutMS,
			MaxChars:  defaultRemoteMaxChars,
		},
		Embeddings: EmbeddingsConfig{
			BaseURL: defaultEmbedBaseURL,
			Model:   defaultEmbedModel,
		},
		Events: EventsConfig{
			Topic: defaultEventsTopic,
		},
		API: APIConfig{
			ListenAddr: defaultAPIListen,
		},
	}
}

// IngestBusyTimeout returns ingest.busy_timeout_ms as a duration.
func (c *Config) IngestBusyTimeout() time.Duration {
	return time.Duration(c.Ingest.BusyTimeoutMS) * time.Millisecond
}

// QueryBusyTimeout returns query.busy_timeout_ms as a duration.
func (c *Config) QueryBusyTimeout() time.Duration {
	return time.Duration(c.Query.BusyTimeoutMS) * time.Millisecond
}

// RemoteTimeout returns remote.timeout_ms as a duration.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutMS) * time.Millisecond
}
