// Package exportcmder provides the export command for dumping a scope's
// memories as markdown or JSON.
package exportcmder

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loamhq/loam/cmd/loam/bootstrap"
	"github.com/loamhq/loam/pkg/cliui"
	"github.com/loamhq/loam/pkg/export"
	"github.com/loamhq/loam/pkg/memory"
)

// exportLimit bounds a single export. A scope holding more memories than
// this is beyond what a context-pack export is for.
const exportLimit = 10000

const exportLongDesc string = `Export a scope's memories.

Writes all memories for the scope as markdown (grouped by kind) or JSON.
Output goes to stdout unless --out is given. With --pretty the markdown
is rendered for the terminal instead of printed raw.

Examples:
  loam export
  loam export --format json --out memories.json
  loam export --scope /work/api --pretty`

const exportShortDesc string = "Export memories as markdown or JSON"

type exportCommander struct {
	format string
	out    string
	scope  string
	pretty bool
}

func NewExportCmd() *cobra.Command {
	cmder := &exportCommander{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: exportShortDesc,
		Long:  exportLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			debug, _ := cmd.Flags().GetBool("debug")
			return cmder.run(configDir, debug)
		},
	}

	cmd.Flags().StringVarP(&cmder.format, "format", "f", "markdown", "Output format: markdown or json")
	cmd.Flags().StringVarP(&cmder.out, "out", "o", "", "Write to a file instead of stdout")
	cmd.Flags().StringVarP(&cmder.scope, "scope", "s", "", "Scope path (default: detected project root)")
	cmd.Flags().BoolVar(&cmder.pretty, "pretty", false, "Render markdown for the terminal")

	return cmd
}

func (c *exportCommander) run(configDir string, debug bool) error {
	if c.format != "markdown" && c.format != "json" {
		return fmt.Errorf("unknown format %q (markdown or json)", c.format)
	}

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

	memories, err := rt.Driver.Recall(context.Background(), scopePath, memory.Filters{}, exportLimit)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	switch c.format {
	case "json":
		err = export.JSON(&buf, scopePath, memories)
	default:
		err = export.Markdown(&buf, scopePath, memories)
	}
	if err != nil {
		return err
	}

	if c.out != "" {
		if err := os.WriteFile(c.out, buf.Bytes(), 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", c.out, err)
		}
		fmt.Printf("Exported %d memories to %s\n", len(memories), c.out)
		return nil
	}

	if c.pretty && c.format == "markdown" {
		rendered, err := cliui.RenderMarkdown(buf.String())
		if err == nil {
			fmt.Print(rendered)
			return nil
		}
	}

	fmt.Print(buf.String())
	return nil
}
