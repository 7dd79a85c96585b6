// Package browsecmder provides the browse command, a terminal UI over the
// memory store.
package browsecmder

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loamhq/loam/cmd/loam/bootstrap"
)

const browseLongDesc string = `Browse stored memories in a terminal UI.

Shows the scope's memories as a navigable list with a rendered detail
pane. Filter by kind with f, drill into a memory with enter, and delete
with x.

Examples:
  loam browse
  loam browse --scope /work/api`

const browseShortDesc string = "Browse memories in a terminal UI"

type browseCommander struct {
	scope string
}

func NewBrowseCmd() *cobra.Command {
	cmder := &browseCommander{}

	cmd := &cobra.Command{
		Use:   "browse",
		Short: browseShortDesc,
		Long:  browseLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			debug, _ := cmd.Flags().GetBool("debug")
			return cmder.run(cmd, configDir, debug)
		},
	}

	cmd.Flags().StringVarP(&cmder.scope, "scope", "s", "", "Scope path (default: detected project root)")

	return cmd
}

func (c *browseCommander) run(cmd *cobra.Command, configDir string, debug bool) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	rt, err := bootstrap.Open(cwd, bootstrap.Options{
		ConfigDir:    configDir,
		Debug:        debug,
		ReadOnly:     true,
		QueryTimeout: true,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	scopePath := c.scope
	if scopePath == "" {
		scopePath = rt.DefaultScope
	}

	return runBrowseTUI(cmd.Context(), rt.Driver, scopePath)
}
