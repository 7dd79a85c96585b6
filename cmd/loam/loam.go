// Package loamcmder assembles the root loam command.
package loamcmder

import (
	"github.com/spf13/cobra"

	addcmder "github.com/loamhq/loam/cmd/loam/add"
	browsecmder "github.com/loamhq/loam/cmd/loam/browse"
	configcmder "github.com/loamhq/loam/cmd/loam/config"
	doctorcmder "github.com/loamhq/loam/cmd/loam/doctor"
	exportcmder "github.com/loamhq/loam/cmd/loam/export"
	forgetcmder "github.com/loamhq/loam/cmd/loam/forget"
	initcmder "github.com/loamhq/loam/cmd/loam/init"
	notifycmder "github.com/loamhq/loam/cmd/loam/notify"
	reconcilecmder "github.com/loamhq/loam/cmd/loam/reconcile"
	searchcmder "github.com/loamhq/loam/cmd/loam/search"
	servecmder "github.com/loamhq/loam/cmd/loam/serve"
	versioncmder "github.com/loamhq/loam/cmd/loam/version"
)

const loamLongDesc string = `Loam is a durable, local-first memory layer for AI agents.

Capture hooks feed conversation turns into a redacted, deduplicated
memory store that agents read back through MCP, HTTP, or the CLI.

Common commands:
  loam init        Set up the .loam/ directory and store
  loam serve       Serve memories over MCP (stdio) or HTTP
  loam search      Query stored memories
  loam browse      Browse memories in a TUI`

const loamShortDesc string = "Loam - durable memory for agents"

func NewLoamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loam",
		Short: loamShortDesc,
		Long:  loamLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .loam/ directory location")

	// Add subcommands
	cmd.AddCommand(addcmder.NewAddCmd())
	cmd.AddCommand(browsecmder.NewBrowseCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(doctorcmder.NewDoctorCmd())
	cmd.AddCommand(exportcmder.NewExportCmd())
	cmd.AddCommand(forgetcmder.NewForgetCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(notifycmder.NewNotifyCmd())
	cmd.AddCommand(reconcilecmder.NewReconcileCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
