package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/capctl/internal/app"
	"github.com/Iron-Ham/capctl/internal/config"
	"github.com/Iron-Ham/capctl/internal/session"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the instruments capctl can drive",
	Long: `List the available instruments. The selected one is marked with '*';
devices held by another capctl process show the owning PID.`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := afero.NewOsFs()
	a, err := app.New(cfg, app.WithFs(fs))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Controller.RefreshDevices(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	devices, sel := a.Controller.Devices()
	if len(devices) == 0 {
		fmt.Fprintln(out, "No devices found.")
		return nil
	}

	lockDir := cfg.Paths.ResolveLockDir()
	for i, d := range devices {
		marker := " "
		if i == sel {
			marker = "*"
		}
		line := fmt.Sprintf("%s %s", marker, d.Name)
		if lock, locked := session.IsLocked(fs, lockDir, d.Name); locked {
			line += fmt.Sprintf("  (in use by PID %d on %s)", lock.PID, lock.Hostname)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
