// Package notifycmder provides the notify command, the capture-hook entry
// point into the ingest pipeline.
package notifycmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loamhq/loam/cmd/loam/bootstrap"
	"github.com/loamhq/loam/pkg/dotdir"
	"github.com/loamhq/loam/pkg/ingest"
)

const notifyLongDesc string = `Ingest a captured conversation turn.

Reads one JSON payload from stdin (or --file) and runs it through the
pipeline: redaction, scope policy, extraction, and dedupe. If the store
is locked by another writer the turn is spooled and replayed later, so
the capture hook never blocks the agent.

With --follow, tails a JSONL file and ingests each appended line. This
is the long-running form for hooks that append to a stream file instead
of invoking loam per turn.

Every processed turn appends an outcome line to notify.log in the
.loam/ directory.

Examples:
  loam notify < payload.json
  loam notify --file payload.json
  loam notify --follow /tmp/agent-turns.jsonl`

const notifyShortDesc string = "Ingest a captured conversation turn"

type notifyCommander struct {
	file   string
	follow string
}

func NewNotifyCmd() *cobra.Command {
	cmder := &notifyCommander{}

	cmd := &cobra.Command{
		Use:   "notify",
		Short: notifyShortDesc,
		Long:  notifyLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			debug, _ := cmd.Flags().GetBool("debug")
			return cmder.run(configDir, debug)
		},
	}

	cmd.Flags().StringVarP(&cmder.file, "file", "f", "", "Read the payload from a file instead of stdin")
	cmd.Flags().StringVar(&cmder.follow, "follow", "", "Tail a JSONL payload stream and ingest each line")

	return cmd
}

func (c *notifyCommander) run(configDir string, debug bool) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	rt, err := bootstrap.Open(cwd, bootstrap.Options{ConfigDir: configDir, Debug: debug})
	if err != nil {
		return err
	}
	defer rt.Close()

	audit := openAudit(configDir, rt)

	if c.follow != "" {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return followPayloads(ctx, c.follow, func(line []byte) {
			result, err := rt.Ingestor.Notify(ctx, line)
			audit(line, result, err)
			if err != nil {
				rt.Logger.Warn("dropping unusable payload", "error", err)
			}
		})
	}

	payload, err := c.readPayload()
	if err != nil {
		return err
	}

	result, err := rt.Ingestor.Notify(context.Background(), payload)
	audit(payload, result, err)
	if err != nil {
		return err
	}

	switch result.Outcome {
	case ingest.OutcomeSpooled:
		fmt.Printf("spooled (seq %d)\n", result.SpoolSeq)
	case ingest.OutcomeDenied:
		fmt.Printf("denied by scope policy: %s\n", result.Scope)
	default:
		fmt.Printf("committed: %d inserted, %d merged\n", result.Inserted, result.Merged)
	}
	return nil
}

func (c *notifyCommander) readPayload() ([]byte, error) {
	if c.file != "" {
		payload, err := os.ReadFile(c.file)
		if err != nil {
			return nil, fmt.Errorf("reading payload file: %w", err)
		}
		return payload, nil
	}

	payload, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("reading payload from stdin: %w", err)
	}
	return payload, nil
}

// auditLine is one record in notify.log.
type auditLine struct {
	At       time.Time `json:"at"`
	Outcome  string    `json:"outcome"`
	Scope    string    `json:"scope,omitempty"`
	TurnHash string    `json:"turn_hash,omitempty"`
	Inserted int       `json:"inserted,omitempty"`
	Merged   int       `json:"merged,omitempty"`
	SpoolSeq uint64    `json:"spool_seq,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// openAudit returns a best-effort appender for the ingest audit log. Audit
// failures are logged, never surfaced: the pipeline result already stands.
func openAudit(configDir string, rt *bootstrap.Runtime) func([]byte, *ingest.Result, error) {
	path, err := dotdir.NewManager().IngestLogPath(configDir)
	if err != nil {
		rt.Logger.Warn("ingest audit log unavailable", "error", err)
		return func([]byte, *ingest.Result, error) {}
	}

	return func(_ []byte, result *ingest.Result, ingestErr error) {
		line := auditLine{At: time.Now().UTC()}
		if ingestErr != nil {
			line.Outcome = "error"
			line.Error = ingestErr.Error()
		}
		if result != nil {
			line.Outcome = string(result.Outcome)
			line.Scope = result.Scope
			line.TurnHash = result.TurnHash
			line.Inserted = result.Inserted
			line.Merged = result.Merged
			line.SpoolSeq = result.SpoolSeq
		}

		encoded, err := json.Marshal(line)
		if err != nil {
			return
		}

		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			rt.Logger.Warn("appending to ingest audit log", "error", err)
			return
		}
		defer f.Close()

		_, _ = f.Write(append(encoded, '\n'))
	}
}
