package capture

import (
	"context"
	"time"

	"github.com/Iron-Ham/capctl/internal/device"
	"github.com/Iron-Ham/capctl/internal/event"
)

// State is the controller's view of the capture.
type State int

const (
	Idle State = iota
	Sampling
	AwaitingUpload
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sampling:
		return "sampling"
	case AwaitingUpload:
		return "awaiting-upload"
	default:
		return "unknown"
	}
}

// RunMode selects between one-shot and repeated captures.
type RunMode int

const (
	Single RunMode = iota
	Repetitive
)

// DefaultRepeatInterval is the pause between repeated captures.
const DefaultRepeatInterval = time.Second

func (m RunMode) String() string {
	switch m {
	case Single:
		return "single"
	case Repetitive:
		return "repetitive"
	default:
		return "unknown"
	}
}

// ParseRunMode accepts "single" or "repetitive" (also "repeat").
func ParseRunMode(s string) (RunMode, bool) {
	switch s {
	case "single":
		return Single, true
	case "repetitive", "repeat":
		return Repetitive, true
	default:
		return Single, false
	}
}

// Channel is one input channel of the capture session.
type Channel interface {
	Class() device.ChannelClass
	Enabled() bool
	Enable(on bool)
	// CommitSettings writes the channel's saved settings back to the device.
	CommitSettings() error
}

// Session runs acquisitions on behalf of the controller. Completion and
// progress arrive asynchronously as messages on the event bus.
type Session interface {
	StartCapture(instant bool) error
	StopCapture()
	ExitCapture()
	IsRunning() bool
	IsInstant() bool
	IsRepeating() bool
	SetRepeating(on bool)
	SetRunMode(mode RunMode)
	RunMode() RunMode
	SetRepeatInterval(d time.Duration)
	ChannelCount(class device.ChannelClass) int
	Channels() []Channel
	BroadcastMessage(code event.Code)
}

// Prompter asks the user to confirm an automatic zero calibration.
type Prompter interface {
	ConfirmCalibration(ctx context.Context, message string) bool
}

// PromptFunc adapts a function to Prompter.
type PromptFunc func(ctx context.Context, message string) bool

// ConfirmCalibration implements Prompter.
func (f PromptFunc) ConfirmCalibration(ctx context.Context, message string) bool {
	return f(ctx, message)
}

// AlwaysPrompter answers every calibration prompt with accept.
func AlwaysPrompter(accept bool) Prompter {
	return PromptFunc(func(context.Context, string) bool { return accept })
}

// Calibration prompt texts.
const (
	CalibrationPromptRun     = "Please adjust zero skew and save the result!"
	CalibrationPromptInstant = "Auto Calibration program will be started. Don't connect any probes. It can take a while!"
)

// Waiter blocks until the device reports the calibration has converged.
// It returns an error when the wait was cancelled.
type Waiter interface {
	WaitCalibration(ctx context.Context, agent *device.Agent) error
}

// OptionsFunc edits device options, typically through a dialog. It reports
// whether the user accepted the changes.
type OptionsFunc func(agent *device.Agent) (bool, error)
