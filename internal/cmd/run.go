package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/capctl/internal/app"
	"github.com/Iron-Ham/capctl/internal/capture"
	"github.com/Iron-Ham/capctl/internal/errors"
	"github.com/Iron-Ham/capctl/internal/event"
)

var (
	runFlags    deviceFlags
	runInstant  bool
	runRepeat   bool
	runRate     uint64
	runDuration time.Duration
	runTimeout  time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a capture on the selected device",
	Long: `Commit the selected sample rate and duration to the device and run a
capture, printing progress until it finishes.

With --repeat the capture restarts after the configured repeat interval
until interrupted or until --timeout expires.`,
	Args: cobra.NoArgs,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runFlags.register(runCmd)
	runCmd.Flags().BoolVarP(&runInstant, "instant", "i", false, "run an instant capture")
	runCmd.Flags().BoolVar(&runRepeat, "repeat", false, "repeat the capture until interrupted")
	runCmd.Flags().Uint64VarP(&runRate, "rate", "r", 0, "sample rate in Hz")
	runCmd.Flags().DurationVar(&runDuration, "duration", 0, "capture duration (time per division in dso mode)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "stop after this long (0 waits for completion)")
}

func runCapture(cmd *cobra.Command, args []string) error {
	var opts []app.Option
	if term.IsTerminal(int(os.Stdin.Fd())) {
		opts = append(opts, app.WithPrompter(stdinPrompter(os.Stdin, cmd.ErrOrStderr())))
	}

	a, err := runFlags.openApp(opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	if runRepeat {
		if err := a.Controller.SetRunMode(capture.Repetitive, a.Config().Sampling.RepeatInterval()); err != nil {
			return err
		}
	}
	if runRate != 0 {
		if err := selectRate(a, runRate); err != nil {
			return err
		}
	}
	if runDuration != 0 {
		if err := selectDuration(a, runDuration); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	out := cmd.OutOrStdout()
	rate, duration := "-", "-"
	if e, ok := a.Controller.Rates().Selected(); ok {
		rate = e.Label
	}
	if e, ok := a.Controller.Durations().Selected(); ok {
		duration = e.Label
	}
	fmt.Fprintf(out, "Capturing on %s (%s) at %s for %s\n", a.Agent.Name(), a.Agent.WorkMode(), rate, duration)

	report := watchProgress(a.Bus, out)
	defer report.stop()

	if runInstant {
		err = a.Controller.InstantStop(ctx)
	} else {
		err = a.Controller.RunStop(ctx)
	}
	if err != nil {
		return err
	}

	err = a.WaitIdle(ctx)
	if runErr := report.err; runErr != nil {
		return runErr
	}
	// A repeating capture only ends by interruption.
	if err != nil && (a.Session.RunMode() != capture.Repetitive || ctx.Err() == nil) {
		return fmt.Errorf("capture interrupted: %w", err)
	}

	fmt.Fprintf(out, "Done: %d capture(s)\n", report.runs)
	return nil
}

type progressReport struct {
	runs  int
	runID string
	err   error

	bus  *event.Bus
	subs []string
}

// stop removes the report's bus subscriptions.
func (r *progressReport) stop() {
	for _, id := range r.subs {
		r.bus.Unsubscribe(id)
	}
	r.subs = nil
}

// watchProgress prints capture progress published on bus.
func watchProgress(bus *event.Bus, out io.Writer) *progressReport {
	r := &progressReport{bus: bus}
	r.subs = append(r.subs, bus.Subscribe(event.TypeCaptureProgress, func(e event.Event) {
		pe, ok := e.(event.CaptureProgressEvent)
		if !ok {
			return
		}
		if pe.RunID != r.runID {
			r.runID = pe.RunID
			r.runs++
		}
		fmt.Fprintf(out, "  run %d: %d/%d samples (%3.0f%%)\n", r.runs, pe.Samples, pe.Total, pe.Fraction()*100)
	}))
	r.subs = append(r.subs, bus.Subscribe(event.TypeCaptureError, func(e event.Event) {
		if ce, ok := e.(event.CaptureErrorEvent); ok && r.err == nil {
			r.err = ce.Err
		}
	}))
	return r
}

// selectDuration selects the ladder entry equal to d. In dso mode the
// selection commits the time base.
func selectDuration(a *app.App, d time.Duration) error {
	durations := a.Controller.Durations()
	i := durations.Find(uint64(d.Nanoseconds()))
	if i < 0 {
		return errors.NewValidationError("duration not on the device's ladder").
			WithField("duration").
			WithValue(d.String())
	}
	return a.Controller.SelectDuration(i)
}

// stdinPrompter asks on w and reads a y/n answer from r. Anything but an
// explicit yes declines.
func stdinPrompter(r io.Reader, w io.Writer) capture.Prompter {
	reader := bufio.NewReader(r)
	return capture.PromptFunc(func(ctx context.Context, message string) bool {
		fmt.Fprintf(w, "%s [y/N] ", message)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	})
}
