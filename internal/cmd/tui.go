package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/capctl/internal/tui"
)

var tuiFlags deviceFlags

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive sampling bar",
	Long: `Open the sampling bar in the terminal. Keys step the sample rate and
duration, switch work and run modes and start or stop captures; press ?
for the full list.

When a config file is in use, edits to it are applied while running.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	tuiFlags.register(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := tuiFlags.openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	return tui.Run(cmd.Context(), a, viper.ConfigFileUsed() != "")
}
