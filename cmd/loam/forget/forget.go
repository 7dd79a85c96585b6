// Package forgetcmder provides the forget command for deleting a memory.
package forgetcmder

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/loamhq/loam/cmd/loam/bootstrap"
	"github.com/loamhq/loam/pkg/cliui"
	"github.com/loamhq/loam/pkg/store"
)

const forgetLongDesc string = `Delete a memory by id.

Removes the memory and its search index entry. Deletion is permanent;
ids come from loam search, loam browse, or the MCP tools.

Examples:
  loam forget 42`

const forgetShortDesc string = "Delete a memory by id"

func NewForgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forget <id>",
		Short: forgetShortDesc,
		Long:  forgetLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			debug, _ := cmd.Flags().GetBool("debug")
			return runForget(args[0], configDir, debug)
		},
	}

	return cmd
}

func runForget(arg, configDir string, debug bool) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid memory id %q", arg)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	rt, err := bootstrap.Open(cwd, bootstrap.Options{
		ConfigDir: configDir,
		Debug:     debug,
		ReadOnly:  true,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Driver.Forget(context.Background(), id); err != nil {
		if store.IsNotFound(err) {
			return fmt.Errorf("memory %d not found", id)
		}
		return err
	}

	fmt.Printf("\n  %s Forgot memory %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(fmt.Sprintf("[id:%d]", id)),
	)
	return nil
}
