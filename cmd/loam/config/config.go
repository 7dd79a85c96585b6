// Package configcmder provides the config command for managing persistent
// loam configuration stored in the .loam/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent loam configuration.

Configuration is stored as config.toml in the .loam/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  store.path,
  ingest.max_per_turn, ingest.spool_enabled, ingest.busy_timeout_ms,
  query.busy_timeout_ms, query.recall_limit,
  merge.threshold, merge.window, merge.similarity,
  scope.markers, scope.allow, scope.deny,
  redact.patterns,
  remote.enabled, remote.model, remote.base_url, remote.api_key_env,
  embeddings.base_url, embeddings.model,
  events.enabled, events.brokers, events.topic,
  api.listen_addr

Use subcommands to get, set, or list configuration values:
  loam config set <key> <value>    Set a configuration value
  loam config get <key>            Get a configuration value
  loam config list                 List all configuration values

Examples:
  loam config set merge.threshold 0.9
  loam config set remote.enabled true
  loam config get merge.similarity
  loam config list`

const configShortDesc string = "Manage persistent loam configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
