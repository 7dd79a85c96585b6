// Package searchcmder provides the search command for querying memories.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/loamhq/loam/cmd/loam/bootstrap"
	"github.com/loamhq/loam/pkg/memory"
)

var (
	idStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	kindStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	textStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	starStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	emptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
)

const searchLongDesc string = `Search stored memories.

Runs a ranked full-text query against the memory store, scoped to the
detected project root unless --scope is given. An omitted query lists
the scope's most relevant memories instead.

Examples:
  loam search "connection pool"
  loam search "deploy" --kind pitfall
  loam search --scope /work/api --limit 20
  loam search "retry" --json | jq '.[].text'`

const searchShortDesc string = "Search stored memories"

type searchCommander struct {
	kind     string
	limit    int
	scope    string
	minImp   int
	jsonMode bool
}

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			debug, _ := cmd.Flags().GetBool("debug")

			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return cmder.run(query, configDir, debug)
		},
	}

	cmd.Flags().StringVarP(&cmder.kind, "kind", "k", "", "Restrict to one memory kind")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 0, "Maximum results (default: configured recall limit)")
	cmd.Flags().StringVarP(&cmder.scope, "scope", "s", "", "Scope path (default: detected project root)")
	cmd.Flags().IntVar(&cmder.minImp, "min-importance", 0, "Minimum importance")
	cmd.Flags().BoolVar(&cmder.jsonMode, "json", false, "Emit raw JSON")

	return cmd
}

func (c *searchCommander) run(query, configDir string, debug bool) error {
	var filters memory.Filters
	if c.kind != "" {
		kind, err := memory.ParseKind(c.kind)
		if err != nil {
			return err
		}
		filters.Kind = kind
	}
	filters.MinImportance = c.minImp

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

	limit := c.limit
	if limit <= 0 {
		limit = rt.Config.Query.RecallLimit
	}

	memories, err := rt.Driver.Search(context.Background(), query, scopePath, filters, limit)
	if err != nil {
		return err
	}

	if c.jsonMode {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(memories)
	}

	render(os.Stdout, scopePath, memories)
	return nil
}

func render(w *os.File, scopePath string, memories []*memory.Memory) {
	if len(memories) == 0 {
		fmt.Fprintf(w, "\n  %s\n\n", emptyStyle.Render("No memories found in "+scopePath))
		return
	}

	fmt.Fprintf(w, "\n  %s\n\n", dimStyle.Render(fmt.Sprintf("%d memories in %s", len(memories), scopePath)))

	for _, m := range memories {
		stars := starStyle.Render(strings.Repeat("★", m.Importance))
		merged := ""
		if m.MergeCount > 0 {
			merged = dimStyle.Render(fmt.Sprintf("  merged ×%d", m.MergeCount))
		}

		fmt.Fprintf(w, "  %s %s %s%s\n",
			idStyle.Render(fmt.Sprintf("[id:%d]", m.ID)),
			kindStyle.Render(string(m.Kind)),
			stars,
			merged,
		)

		for _, line := range strings.Split(m.Text, "\n") {
			fmt.Fprintf(w, "      %s\n", textStyle.Render(line))
		}
		fmt.Fprintln(w)
	}
}
