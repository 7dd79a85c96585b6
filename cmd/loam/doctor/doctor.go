// Package doctorcmder provides the doctor command for diagnosing a loam
// installation.
package doctorcmder

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loamhq/loam/pkg/cliui"
	"github.com/loamhq/loam/pkg/config"
	"github.com/loamhq/loam/pkg/dotdir"
	"github.com/loamhq/loam/pkg/logger"
	"github.com/loamhq/loam/pkg/spool"
	"github.com/loamhq/loam/pkg/store/sqlite"
)

const doctorLongDesc string = `Diagnose the local loam installation.

Checks the .loam/ directory, the configuration file, store integrity
(including the search index), and the spool. Exits non-zero when any
check fails.

Examples:
  loam doctor`

const doctorShortDesc string = "Diagnose the local loam installation"

func NewDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: doctorShortDesc,
		Long:  doctorLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runDoctor(configDir)
		},
	}

	return cmd
}

func runDoctor(configDir string) error {
	out := os.Stdout
	ddm := dotdir.NewManager()
	failed := false

	check := func(msg string, fn func() error) {
		if err := cliui.Step(out, msg, fn); err != nil {
			fmt.Fprintf(out, "      %s\n", cliui.DimStyle.Render(err.Error()))
			failed = true
		}
	}

	var dir string
	check("dot directory", func() error {
		var err error
		dir, err = ddm.Target(configDir)
		return err
	})

	check("configuration", func() error {
		cfger, err := config.NewConfiger(configDir)
		if err != nil {
			return err
		}
		_, err = cfger.LoadConfig()
		return err
	})

	check("store integrity", func() error {
		storePath, err := ddm.StorePath(configDir)
		if err != nil {
			return err
		}
		if _, err := os.Stat(storePath); err != nil {
			return errors.New("store missing; run loam init")
		}

		driver, err := sqlite.New(storePath)
		if err != nil {
			return err
		}
		defer driver.Close()

		return driver.Quick(context.Background())
	})

	check("spool", func() error {
		logPath, err := ddm.SpoolPath(configDir)
		if err != nil {
			return err
		}
		watermarkPath, err := ddm.WatermarkPath(configDir)
		if err != nil {
			return err
		}
		quarantinePath, err := ddm.QuarantinePath(configDir)
		if err != nil {
			return err
		}

		sp, err := spool.Open(logPath, watermarkPath, quarantinePath, logger.Nop())
		if err != nil {
			return err
		}
		defer sp.Close()

		pending, err := sp.PendingCount()
		if err != nil {
			return err
		}
		quarantined, err := sp.QuarantinedCount()
		if err != nil {
			return err
		}

		if pending > 0 {
			return fmt.Errorf("%d pending entries; run loam reconcile", pending)
		}
		if quarantined > 0 {
			return fmt.Errorf("%d quarantined entries in spool.quarantine", quarantined)
		}
		return nil
	})

	if failed {
		return fmt.Errorf("problems found in %s", dir)
	}

	fmt.Fprintf(out, "\n  %s %s looks healthy\n\n", cliui.SuccessMark, dir)
	return nil
}
