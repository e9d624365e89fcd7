package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/capctl/internal/app"
	"github.com/Iron-Ham/capctl/internal/device"
	"github.com/Iron-Ham/capctl/internal/errors"
	"github.com/Iron-Ham/capctl/internal/prefs"
	"github.com/Iron-Ham/capctl/internal/sampling"
)

var (
	durationsFlags deviceFlags
	durationsRate  uint64
)

var durationsCmd = &cobra.Command{
	Use:   "durations",
	Short: "Show the sample rates and capture durations of a device",
	Long: `Show the sample rate list and the capture duration ladder derived from
the device's memory depth. The current selections are marked with '*'.
Durations marked (RLE) only fit with run-length compression.

In dso mode the ladder lists time per division.`,
	Args: cobra.NoArgs,
	RunE: runDurations,
}

func init() {
	rootCmd.AddCommand(durationsCmd)
	durationsFlags.register(durationsCmd)
	durationsCmd.Flags().Uint64VarP(&durationsRate, "rate", "r", 0, "show the ladder for this sample rate in Hz")
}

func runDurations(cmd *cobra.Command, args []string) error {
	a, err := durationsFlags.openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if durationsRate != 0 {
		if err := selectRate(a, durationsRate); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	agent := a.Agent
	fmt.Fprintf(out, "Device: %s (%s)\n", agent.Name(), agent.WorkMode())
	printRates(out, a.Controller.Rates())
	printDurations(out, a.Controller.Durations())

	language, ok := agent.Int32(device.KeyLanguage)
	if !ok {
		language = a.Prefs.Get().Language
	}
	fmt.Fprintf(out, "\nSession file: %s\n",
		prefs.DefaultSessionFile(a.Config().Paths.ResolveResourceDir(), agent.Name(), agent.WorkMode(), language))
	return nil
}

func printRates(out io.Writer, rates *sampling.RateSelector) {
	if rates.Len() == 0 {
		fmt.Fprintln(out, "\nSample rates: (fixed by the device)")
		return
	}
	fmt.Fprintln(out, "\nSample rates:")
	for i, e := range rates.Entries() {
		fmt.Fprintf(out, "  %s %s\n", selMarker(i == rates.Index()), e.Label)
	}
}

func printDurations(out io.Writer, durations *sampling.DurationSelector) {
	limits := durations.Limits()
	fmt.Fprintf(out, "\nDurations at %s", device.FormatRate(durations.Rate()))
	if limits.HWDepth > 0 {
		fmt.Fprintf(out, " (depth %d samples", limits.HWDepth)
		if limits.RLEDepth > 0 {
			fmt.Fprintf(out, ", %d with RLE", limits.RLEDepth)
		}
		fmt.Fprint(out, ")")
	}
	fmt.Fprintln(out, ":")
	for i, e := range durations.Entries() {
		fmt.Fprintf(out, "  %s %s\n", selMarker(i == durations.Index()), e.Label)
	}
}

func selMarker(selected bool) string {
	if selected {
		return "*"
	}
	return " "
}

// selectRate selects the list entry equal to hz.
func selectRate(a *app.App, hz uint64) error {
	for i, e := range a.Controller.Rates().Entries() {
		if e.Rate == hz {
			return a.Controller.SelectRate(i)
		}
	}
	return errors.NewValidationError("sample rate not offered by the device").
		WithField("rate").
		WithValue(hz)
}
