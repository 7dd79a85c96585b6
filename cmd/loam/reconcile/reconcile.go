// Package reconcilecmder provides the reconcile command for draining the
// spool into the memory store.
package reconcilecmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loamhq/loam/cmd/loam/bootstrap"
	"github.com/loamhq/loam/pkg/cliui"
)

const reconcileLongDesc string = `Drain the spool into the memory store.

Turns that arrived while the store was locked wait in the spool log.
Reconcile replays them in capture order, quarantines entries that fail
integrity checks, and truncates the log once it is empty. Ingest also
does this opportunistically, so reconcile is mostly for recovering after
a crash or inspecting a stuck spool.

Examples:
  loam reconcile`

const reconcileShortDesc string = "Drain the spool into the store"

func NewReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: reconcileShortDesc,
		Long:  reconcileLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			debug, _ := cmd.Flags().GetBool("debug")
			return runReconcile(configDir, debug)
		},
	}

	return cmd
}

func runReconcile(configDir string, debug bool) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	rt, err := bootstrap.Open(cwd, bootstrap.Options{ConfigDir: configDir, Debug: debug})
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.Spool == nil {
		fmt.Println("Spool is disabled; nothing to reconcile.")
		return nil
	}

	pending, err := rt.Spool.PendingCount()
	if err != nil {
		return fmt.Errorf("reading spool: %w", err)
	}
	if pending == 0 {
		fmt.Printf("\n  %s Spool is empty\n\n", cliui.SuccessMark)
		return nil
	}

	report, err := rt.Ingestor.Reconcile(context.Background())

	fmt.Printf("\n  %s  replayed %d  quarantined %d  remaining %d\n\n",
		cliui.Mark(err),
		report.Replayed,
		report.Quarantined,
		report.Remaining,
	)

	if err != nil {
		return fmt.Errorf("reconcile stopped early: %w", err)
	}
	return nil
}
