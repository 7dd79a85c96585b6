// Package bootstrap assembles the loam runtime for CLI commands: it loads
// configuration, opens the store and spool, and wires the ingest pipeline.
// Commands share this so `serve`, `notify`, and `add` all run the exact
// same pipeline.
package bootstrap

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/loamhq/loam/pkg/config"
	"github.com/loamhq/loam/pkg/dedupe"
	"github.com/loamhq/loam/pkg/dotdir"
	"github.com/loamhq/loam/pkg/embeddings/ollama"
	"github.com/loamhq/loam/pkg/eventstream"
	"github.com/loamhq/loam/pkg/eventstream/kafka"
	eventnop "github.com/loamhq/loam/pkg/eventstream/nop"
	"github.com/loamhq/loam/pkg/extract"
	"github.com/loamhq/loam/pkg/extract/openai"
	"github.com/loamhq/loam/pkg/ingest"
	"github.com/loamhq/loam/pkg/logger"
	"github.com/loamhq/loam/pkg/redact"
	"github.com/loamhq/loam/pkg/scope"
	"github.com/loamhq/loam/pkg/spool"
	"github.com/loamhq/loam/pkg/store"
	"github.com/loamhq/loam/pkg/store/sqlite"
)

// Options tune how the runtime is assembled.
type Options struct {
	// ConfigDir overrides dot-directory resolution.
	ConfigDir string

	// StorePath overrides the configured store location.
	StorePath string

	// Debug raises the log level.
	Debug bool

	// ReadOnly skips the write-path wiring (spool, extraction, events).
	// Query commands use this so they never contend for the spool.
	ReadOnly bool

	// QueryTimeout selects the longer query busy timeout instead of the
	// short ingest one.
	QueryTimeout bool

	// LogWriter overrides the log destination. Stdio MCP serving must log
	// to stderr so protocol frames on stdout stay clean.
	LogWriter io.Writer
}

// Runtime is the assembled loam pipeline and its shared handles.
type Runtime struct {
	Config   *config.Config
	Driver   store.Driver
	Spool    *spool.Spool
	Redactor *redact.Redactor
	Ingestor *ingest.Ingestor
	Events   eventstream.Publisher
	Logger   *slog.Logger

	// DefaultScope is the detected project root for the working directory.
	DefaultScope string
}

// Open loads config and builds a Runtime. Close releases the store, spool,
// and event publisher.
func Open(cwd string, opts Options) (*Runtime, error) {
	logOpts := []logger.Option{logger.WithDebug(opts.Debug), logger.WithPretty(true)}
	if opts.LogWriter != nil {
		logOpts = append(logOpts, logger.WithWriter(opts.LogWriter))
	}
	log := logger.New(logOpts...)

	cfger, err := config.NewConfiger(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	ddm := dotdir.NewManager()

	storePath := opts.StorePath
	if storePath == "" {
		storePath = cfg.Store.Path
	}
	if storePath == "" {
		storePath, err = ddm.StorePath(opts.ConfigDir)
		if err != nil {
			return nil, fmt.Errorf("resolving store path: %w", err)
		}
	}

	busy := cfg.IngestBusyTimeout()
	if opts.QueryTimeout {
		busy = cfg.QueryBusyTimeout()
	}

	driver, err := sqlite.New(storePath, sqlite.WithBusyTimeout(busy))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	rt := &Runtime{
		Config:       cfg,
		Driver:       driver,
		Redactor:     redact.New(cfg.Redact.Patterns, log),
		Logger:       log,
		DefaultScope: scope.DetectRoot(cwd, cfg.Scope.Markers),
	}

	if opts.ReadOnly {
		return rt, nil
	}

	if cfg.Ingest.SpoolEnabled {
		sp, err := openSpool(ddm, opts.ConfigDir, log)
		if err != nil {
			driver.Close()
			return nil, err
		}
		rt.Spool = sp
	}

	events, err := openEvents(cfg, log)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Events = events

	rt.Ingestor = ingest.New(ingest.Config{
		Redactor:  rt.Redactor,
		Policy:    scope.NewPolicy(cfg.Scope.Allow, cfg.Scope.Deny, log),
		Markers:   cfg.Scope.Markers,
		Extractor: newExtractor(cfg, log),
		Dedupe:    newDedupe(cfg, driver, log),
		Spool:     rt.Spool,
		Events:    events,
		Logger:    log,
	})

	return rt, nil
}

// Close releases every handle the runtime owns. Safe on partially built
// runtimes.
func (r *Runtime) Close() error {
	var first error

	if r.Events != nil {
		if err := r.Events.Close(); err != nil && first == nil {
			first = err
		}
	}
	if r.Spool != nil {
		if err := r.Spool.Close(); err != nil && first == nil {
			first = err
		}
	}
	if r.Driver != nil {
		if err := r.Driver.Close(); err != nil && first == nil {
			first = err
		}
	}

	return first
}

func openSpool(ddm *dotdir.Manager, configDir string, log *slog.Logger) (*spool.Spool, error) {
	logPath, err := ddm.SpoolPath(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving spool path: %w", err)
	}
	watermarkPath, err := ddm.WatermarkPath(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving watermark path: %w", err)
	}
	quarantinePath, err := ddm.QuarantinePath(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving quarantine path: %w", err)
	}

	sp, err := spool.Open(logPath, watermarkPath, quarantinePath, log)
	if err != nil {
		return nil, fmt.Errorf("opening spool: %w", err)
	}
	return sp, nil
}

func openEvents(cfg *config.Config, log *slog.Logger) (eventstream.Publisher, error) {
	if !cfg.Events.Enabled {
		return eventnop.NewPublisher(), nil
	}

	pub, err := kafka.NewPublisher(kafka.Config{
		Brokers: cfg.Events.Brokers,
		Topic:   cfg.Events.Topic,
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}
	return pub, nil
}

func newExtractor(cfg *config.Config, log *slog.Logger) *extract.Engine {
	var backend extract.Backend
	if cfg.Remote.Enabled {
		backend = openai.New(openai.Config{
			BaseURL:   cfg.Remote.BaseURL,
			Model:     cfg.Remote.Model,
			APIKeyEnv: cfg.Remote.APIKeyEnv,
			Timeout:   cfg.RemoteTimeout(),
			MaxChars:  cfg.Remote.MaxChars,
		})
	}

	return extract.NewEngine(extract.Config{
		Backend:    backend,
		MaxPerTurn: cfg.Ingest.MaxPerTurn,
		Logger:     log,
	})
}

func newDedupe(cfg *config.Config, driver store.Driver, log *slog.Logger) *dedupe.Engine {
	var similarity dedupe.Similarity = dedupe.Lexical{}
	if cfg.Merge.Similarity == config.SimilaritySemantic {
		embedder, err := ollama.NewEmbedder(ollama.Config{
			BaseURL: cfg.Embeddings.BaseURL,
			Model:   cfg.Embeddings.Model,
		})
		if err != nil {
			log.Warn("semantic similarity unavailable, using lexical", "error", err)
		} else {
			similarity = dedupe.NewSemantic(embedder, log)
		}
	}

	return dedupe.NewEngine(dedupe.Config{
		Driver:     driver,
		Similarity: similarity,
		Threshold:  cfg.Merge.Threshold,
		Window:     cfg.Merge.Window,
		Logger:     log,
	})
}
