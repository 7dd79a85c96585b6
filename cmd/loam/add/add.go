// Package addcmder provides the add command for storing a memory directly.
package addcmder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loamhq/loam/cmd/loam/bootstrap"
	"github.com/loamhq/loam/pkg/cliui"
	"github.com/loamhq/loam/pkg/memory"
)

const addLongDesc string = `Store a memory directly, bypassing extraction.

The text still passes through redaction, scope policy, and dedupe, so a
manual add behaves exactly like a captured one: secrets are masked and
near-duplicates merge into the existing memory instead of piling up.

Kinds: fact, preference, decision, todo, pitfall, reference, workflow-note

Examples:
  loam add "we deploy from main, never from tags"
  loam add --kind preference --importance 4 "tabs over spaces"
  loam add --kind pitfall "migrations time out when run inside the VPN"`

const addShortDesc string = "Store a memory directly"

type addCommander struct {
	kind       string
	importance int
	scope      string
}

func NewAddCmd() *cobra.Command {
	cmder := &addCommander{}

	cmd := &cobra.Command{
		Use:   "add <text>...",
		Short: addShortDesc,
		Long:  addLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			debug, _ := cmd.Flags().GetBool("debug")
			return cmder.run(strings.Join(args, " "), configDir, debug)
		},
	}

	cmd.Flags().StringVarP(&cmder.kind, "kind", "k", string(memory.KindFact), "Memory kind")
	cmd.Flags().IntVarP(&cmder.importance, "importance", "i", memory.DefaultImportance, "Importance 0-5")
	cmd.Flags().StringVarP(&cmder.scope, "scope", "s", "", "Scope path (default: detected project root)")

	return cmd
}

func (c *addCommander) run(text, configDir string, debug bool) error {
	kind, err := memory.ParseKind(c.kind)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	rt, err := bootstrap.Open(cwd, bootstrap.Options{ConfigDir: configDir, Debug: debug})
	if err != nil {
		return err
	}
	defer rt.Close()

	scopePath := c.scope
	if scopePath == "" {
		scopePath = rt.DefaultScope
	}

	m, merged, err := rt.Ingestor.Add(context.Background(), kind, text, scopePath, c.importance)
	if err != nil {
		return err
	}

	verb := "Stored"
	if merged {
		verb = "Merged into"
	}
	fmt.Printf("\n  %s %s memory %s in %s\n\n",
		cliui.SuccessMark,
		verb,
		cliui.KeyStyle.Render(fmt.Sprintf("[id:%d]", m.ID)),
		cliui.DimStyle.Render(m.Scope),
	)
	return nil
}
