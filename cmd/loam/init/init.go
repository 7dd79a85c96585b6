// Package initcmder provides the init command for setting up a .loam
// directory, its default configuration, and an empty memory store.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/loamhq/loam/pkg/cliui"
	"github.com/loamhq/loam/pkg/config"
	"github.com/loamhq/loam/pkg/dotdir"
	"github.com/loamhq/loam/pkg/store/sqlite"
)

const initLongDesc string = `Initialize loam.

Resolves the .loam/ directory (override > local ./.loam/ > ~/.loam),
writes a default config.toml when none exists, and creates the memory
store so the first capture never races schema creation.

Pass --local to create a ./.loam/ directory in the current project,
which then takes precedence over ~/.loam.

Examples:
  loam init
  loam init --local`

const initShortDesc string = "Initialize the .loam/ directory and store"

const hookSnippet = `Wire your agent to loam:

  Capture hook (run after every turn):
    loam notify < payload.json

  MCP server (stdio):
    {
      "mcpServers": {
        "loam": { "command": "loam", "args": ["serve"] }
      }
    }`

func NewInitCmd() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runInit(configDir, local)
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Create a project-local ./.loam/ directory")

	return cmd
}

func runInit(configDir string, local bool) error {
	if local && configDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		configDir = filepath.Join(cwd, ".loam")
	}

	ddm := dotdir.NewManager()

	var dir string
	err := cliui.Step(os.Stdout, "Resolving .loam/ directory", func() error {
		var err error
		dir, err = ddm.Target(configDir)
		return err
	})
	if err != nil {
		return err
	}

	err = cliui.Step(os.Stdout, "Writing default config", func() error {
		cfger, err := config.NewConfiger(configDir)
		if err != nil {
			return err
		}

		configPath, err := ddm.ConfigPath(configDir)
		if err != nil {
			return err
		}
		if _, err := os.Stat(configPath); err == nil {
			return nil
		}

		return cfger.SaveConfig(config.NewDefaultConfig())
	})
	if err != nil {
		return err
	}

	err = cliui.Step(os.Stdout, "Initializing memory store", func() error {
		storePath, err := ddm.StorePath(configDir)
		if err != nil {
			return err
		}

		driver, err := sqlite.New(storePath)
		if err != nil {
			return err
		}
		return driver.Close()
	})
	if err != nil {
		return err
	}

	fmt.Printf("\nInitialized %s\n\n%s\n", dir, hookSnippet)
	return nil
}
