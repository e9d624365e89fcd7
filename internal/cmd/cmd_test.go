package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/capctl/internal/errors"
	"github.com/Iron-Ham/capctl/internal/event"
	"github.com/Iron-Ham/capctl/internal/session"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// setupTestEnvironment points the config directory at a temp dir and speeds
// up the simulated session. It returns the capctl config directory.
func setupTestEnvironment(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("CAPCTL_SAMPLING_SPEED_FACTOR", "1000")
	t.Setenv("CAPCTL_SAMPLING_PROGRESS_STEPS", "2")
	t.Setenv("CAPCTL_SAMPLING_REPEAT_INTERVAL_MS", "10")

	resetCommandState()
	t.Cleanup(viper.Reset)
	return filepath.Join(dir, "capctl")
}

// resetCommandState clears viper and the flag values left by an earlier
// command so the next one starts clean.
func resetCommandState() {
	viper.Reset()
	cfgFile = ""
	durationsFlags = deviceFlags{}
	durationsRate = 0
	runFlags = deviceFlags{}
	runInstant, runRepeat = false, false
	runRate, runDuration, runTimeout = 0, 0, 0
	tuiFlags = deviceFlags{}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "capctl" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "capctl")
	}

	expectedCmds := []string{"devices", "durations", "run", "tui", "config", "prefs"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestDevicesCommand(t *testing.T) {
	setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "devices")
	if err != nil {
		t.Fatalf("devices failed: %v\n%s", err, output)
	}
	if !strings.Contains(output, "* demo") {
		t.Errorf("output should list the selected demo device:\n%s", output)
	}
}

func TestDevicesCommand_NoDevices(t *testing.T) {
	setupTestEnvironment(t)
	t.Setenv("CAPCTL_DEVICE_DEMO", "false")
	t.Setenv("CAPCTL_DEVICE_DEFAULT", "bench")

	output, err := executeCommand(rootCmd, "devices")
	if err != nil {
		t.Fatalf("devices failed: %v\n%s", err, output)
	}
	if !strings.Contains(output, "No devices found.") {
		t.Errorf("unexpected output:\n%s", output)
	}
}

func TestDurationsCommand(t *testing.T) {
	setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "durations")
	if err != nil {
		t.Fatalf("durations failed: %v\n%s", err, output)
	}
	for _, want := range []string{"Device: demo (logic)", "Sample rates:", "* 1 MHz", "Durations at 1 MHz", "demo0.def31.dsc"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestDurationsCommand_Flags(t *testing.T) {
	setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "durations", "--mode", "dso")
	if err != nil {
		t.Fatalf("durations --mode dso failed: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Device: demo (dso)") || !strings.Contains(output, "demo1.def31.dsc") {
		t.Errorf("unexpected dso output:\n%s", output)
	}

	resetCommandState()
	if _, err := executeCommand(rootCmd, "durations", "--rate", "3"); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("unknown rate error = %v, want ErrInvalidInput", err)
	}

	resetCommandState()
	if _, err := executeCommand(rootCmd, "durations", "--mode", "spectrum"); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("unknown mode error = %v, want ErrInvalidInput", err)
	}
}

func TestRunCommand(t *testing.T) {
	setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "run", "--rate", "1000000")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, output)
	}
	for _, want := range []string{"Capturing on demo (logic) at 1 MHz", "(100%)", "Done: 1 capture(s)"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestRunCommand_RepeatUntilTimeout(t *testing.T) {
	setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "run", "--repeat", "--timeout", "300ms")
	if err != nil {
		t.Fatalf("run --repeat failed: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Done:") {
		t.Errorf("run --repeat should finish cleanly:\n%s", output)
	}
}

func TestRunCommand_UnknownDuration(t *testing.T) {
	setupTestEnvironment(t)

	if _, err := executeCommand(rootCmd, "run", "--duration", "7ms"); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestStdinPrompter(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var prompt bytes.Buffer
			p := stdinPrompter(strings.NewReader(tt.input), &prompt)
			if got := p.ConfirmCalibration(t.Context(), "Calibrate?"); got != tt.want {
				t.Errorf("ConfirmCalibration() = %v, want %v", got, tt.want)
			}
			if prompt.String() != "Calibrate? [y/N] " {
				t.Errorf("prompt = %q", prompt.String())
			}
		})
	}
}

func TestConfigInitAndSet(t *testing.T) {
	dir := setupTestEnvironment(t)
	configFile := filepath.Join(dir, "config.yaml")

	if _, err := executeCommand(rootCmd, "config", "init"); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if _, err := os.Stat(configFile); err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if _, err := executeCommand(rootCmd, "config", "init"); err == nil {
		t.Error("second config init should fail")
	}

	resetCommandState()
	output, err := executeCommand(rootCmd, "config", "set", "sampling.run_mode", "repetitive")
	if err != nil {
		t.Fatalf("config set failed: %v\n%s", err, output)
	}
	data, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if !strings.Contains(string(data), "run_mode: repetitive") {
		t.Errorf("config file not updated:\n%s", data)
	}

	resetCommandState()
	output, err = executeCommand(rootCmd, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(output, configFile) || !strings.Contains(output, "run_mode: repetitive") {
		t.Errorf("config show output:\n%s", output)
	}
}

func TestConfigSet_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "sampling.turbo", "true"},
		{"not an integer", "sampling.repeat_interval_ms", "soon"},
		{"fails validation", "sampling.run_mode", "continuous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupTestEnvironment(t)
			if _, err := executeCommand(rootCmd, "config", "set", tt.key, tt.value); err == nil {
				t.Error("expected an error")
			}
			if _, err := os.Stat(filepath.Join(dir, "config.yaml")); !os.IsNotExist(err) {
				t.Error("config file should not be written")
			}
		})
	}
}

func TestConfigPath(t *testing.T) {
	dir := setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "config", "path")
	if err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if !strings.Contains(output, filepath.Join(dir, "config.yaml")) || !strings.Contains(output, "CAPCTL_") {
		t.Errorf("unexpected output:\n%s", output)
	}
}

func TestPrefsCommands(t *testing.T) {
	dir := setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "prefs", "set", "run_mode", "repeat")
	if err != nil {
		t.Fatalf("prefs set failed: %v\n%s", err, output)
	}

	resetCommandState()
	output, err = executeCommand(rootCmd, "prefs", "show")
	if err != nil {
		t.Fatalf("prefs show failed: %v", err)
	}
	if !strings.Contains(output, filepath.Join(dir, "prefs.yaml")) || !strings.Contains(output, "run_mode: repetitive") {
		t.Errorf("prefs show output:\n%s", output)
	}

	resetCommandState()
	if _, err := executeCommand(rootCmd, "prefs", "set", "theme", "dark"); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("unknown key error = %v, want ErrInvalidInput", err)
	}
}

func TestReportError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      string
		wantHint  bool
		wantNoErr bool
	}{
		{
			name:      "refused action",
			err:       errors.NewPreconditionError("open device", errors.ErrNoDevice),
			want:      "cannot open device: no device attached",
			wantNoErr: true,
		},
		{
			name:     "device locked",
			err:      fmt.Errorf("%w: PID 42 on bench", session.ErrDeviceLocked),
			want:     "Error: device busy",
			wantHint: true,
		},
		{
			name: "plain failure",
			err:  errors.New("disk full"),
			want: "Error: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			reportError(&buf, tt.err)
			out := buf.String()
			if !strings.Contains(out, tt.want) {
				t.Errorf("output = %q, want it to contain %q", out, tt.want)
			}
			if got := strings.Contains(out, "try again"); got != tt.wantHint {
				t.Errorf("retry hint shown = %v, want %v", got, tt.wantHint)
			}
			if tt.wantNoErr && strings.Contains(out, "Error:") {
				t.Errorf("refused action printed as an error: %q", out)
			}
		})
	}
}

func TestWatchProgress(t *testing.T) {
	bus := event.NewBus()
	var out bytes.Buffer
	r := watchProgress(bus, &out)

	bus.Publish(event.NewCaptureProgressEvent("run-a", 5, 10))
	bus.Publish(event.NewCaptureProgressEvent("run-a", 10, 10))
	bus.Publish(event.NewCaptureProgressEvent("run-b", 10, 10))
	bus.Publish(event.NewCaptureErrorEvent("run-b", errors.ErrDeviceIO))

	if r.runs != 2 {
		t.Errorf("runs = %d, want 2", r.runs)
	}
	if !errors.Is(r.err, errors.ErrDeviceIO) {
		t.Errorf("err = %v, want ErrDeviceIO", r.err)
	}
	if !strings.Contains(out.String(), "run 2: 10/10 samples (100%)") {
		t.Errorf("output:\n%s", out.String())
	}

	r.stop()
	if n := bus.SubscriptionCount(); n != 0 {
		t.Errorf("SubscriptionCount() = %d after stop, want 0", n)
	}
	bus.Publish(event.NewCaptureProgressEvent("run-c", 1, 10))
	if r.runs != 2 {
		t.Error("stopped report still counting runs")
	}
}
