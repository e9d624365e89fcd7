package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/capctl/internal/config"
	"github.com/Iron-Ham/capctl/internal/logging"
	"github.com/Iron-Ham/capctl/internal/prefs"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "View or modify remembered preferences",
	Long: `View or modify the preferences capctl remembers between runs: the
last device, the run mode, the UI language and the file dialog history.

Without arguments, displays the current preferences.`,
	RunE: runPrefsShow,
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current preferences",
	RunE:  runPrefsShow,
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a preference",
	Args:  cobra.ExactArgs(2),
	RunE:  runPrefsSet,
}

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsSetCmd)

	prefsSetCmd.Long = "Set a preference.\n\nValid keys:\n  " + strings.Join(prefs.Keys(), "\n  ")
}

func loadPrefs() (*prefs.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	store := prefs.NewStore(afero.NewOsFs(), cfg.Paths.ResolvePrefsFile(), logging.NopLogger())
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

func runPrefsShow(cmd *cobra.Command, args []string) error {
	store, err := loadPrefs()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# Preferences file: %s\n", store.Path())
	data, err := yaml.Marshal(store.Get())
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func runPrefsSet(cmd *cobra.Command, args []string) error {
	store, err := loadPrefs()
	if err != nil {
		return err
	}
	if err := store.Set(args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
	return nil
}
