package capture

import (
	"context"
	"time"

	"github.com/Iron-Ham/capctl/internal/device"
	"github.com/Iron-Ham/capctl/internal/errors"
	"github.com/Iron-Ham/capctl/internal/event"
	"github.com/Iron-Ham/capctl/internal/logging"
	"github.com/Iron-Ham/capctl/internal/sampling"
)

// Option configures a Controller.
type Option func(*Controller)

// WithEnumerator sets the source of the device list.
func WithEnumerator(e device.Enumerator) Option {
	return func(c *Controller) { c.enum = e }
}

// WithPrompter sets who confirms zero calibration. Without one every
// calibration prompt is declined.
func WithPrompter(p Prompter) Option {
	return func(c *Controller) { c.prompter = p }
}

// WithWaiter sets how the calibration flow waits for convergence.
func WithWaiter(w Waiter) Option {
	return func(c *Controller) { c.waiter = w }
}

// WithBus sets the bus that receives capture state events.
func WithBus(b *event.Bus) Option {
	return func(c *Controller) { c.bus = b }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller is the capture state machine behind the sampling bar.
type Controller struct {
	agent     *device.Agent
	session   Session
	enum      device.Enumerator
	prompter  Prompter
	waiter    Waiter
	bus       *event.Bus
	logger    *logging.Logger
	rates     *sampling.RateSelector
	durations *sampling.DurationSelector
	committer *sampling.Committer

	state    State
	controls Controls

	devices         []device.Info
	selected        int
	updatingDevices bool
	refreshing      bool

	onState func(State)
}

// NewController wires a Controller to agent and session.
func NewController(agent *device.Agent, session Session, opts ...Option) *Controller {
	c := &Controller{
		agent:    agent,
		session:  session,
		controls: defaultControls(),
		selected: -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NopLogger()
	}
	if c.prompter == nil {
		c.prompter = AlwaysPrompter(false)
	}
	if c.waiter == nil {
		c.waiter = NewPollWaiter(0)
	}

	c.rates = sampling.NewRateSelector(agent, c.logger)
	c.durations = sampling.NewDurationSelector(agent, session, c.logger)
	c.committer = sampling.NewCommitter(agent, c.rates, c.durations, session, c.logger)
	c.rates.OnChange(c.onRateSelected)
	c.durations.OnChange(c.onDurationSelected)
	c.logger = c.logger.WithComponent("capture")
	if c.bus != nil {
		c.bus.Subscribe(event.TypeCaptureError, c.onCaptureError)
	}
	return c
}

// State returns the capture state.
func (c *Controller) State() State { return c.state }

// Controls returns a snapshot of the control enablement.
func (c *Controller) Controls() Controls { return c.controls }

// Rates returns the rate selector.
func (c *Controller) Rates() *sampling.RateSelector { return c.rates }

// Durations returns the duration selector.
func (c *Controller) Durations() *sampling.DurationSelector { return c.durations }

// Agent returns the device agent.
func (c *Controller) Agent() *device.Agent { return c.agent }

// OnStateChange registers a callback for state transitions.
func (c *Controller) OnStateChange(fn func(State)) { c.onState = fn }

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	prev := c.state
	c.state = s
	c.logger.Debug("capture state changed", "from", prev.String(), "to", s.String())

	if c.bus != nil {
		c.bus.Publish(event.NewCaptureStateEvent(statusFor(s), ""))
	}
	if c.onState != nil {
		c.onState(s)
	}
}

func statusFor(s State) event.CaptureStatus {
	switch s {
	case Sampling:
		return event.CaptureRunning
	case AwaitingUpload:
		return event.CaptureAwaitingUpload
	default:
		return event.CaptureStopped
	}
}

// busy reports whether a capture is in progress, including the pause
// between repeated captures.
func (c *Controller) busy() bool {
	return c.state != Idle || c.session.IsRepeating()
}

// RunStop toggles a normal capture: it exits a running or repeating capture,
// or starts a new one.
func (c *Controller) RunStop(ctx context.Context) error {
	if c.busy() {
		c.session.ExitCapture()
		c.finish()
		return nil
	}
	return c.start(ctx, false)
}

// InstantStop toggles an instant capture: it stops a running capture, or
// starts an instant one. While an upload drains or a repeated capture is
// pausing it refuses to start.
func (c *Controller) InstantStop(ctx context.Context) error {
	if c.state == Sampling {
		return c.Stop()
	}
	if c.busy() {
		return errors.NewPreconditionError("start capture", errors.ErrAlreadySampling).
			WithState(c.state.String())
	}
	return c.start(ctx, true)
}

// Start begins a capture. It fails with a PreconditionError when a capture
// is already running or no device is attached.
func (c *Controller) Start(ctx context.Context, instant bool) error {
	if c.busy() {
		return errors.NewPreconditionError("start capture", errors.ErrAlreadySampling).
			WithState(c.state.String())
	}
	return c.start(ctx, instant)
}

func (c *Controller) start(ctx context.Context, instant bool) error {
	if !c.agent.HaveInstance() {
		c.logger.Info("have no device, can't collect data")
		return errors.NewPreconditionError("start capture", errors.ErrNoDevice)
	}

	c.enableRunStop(false)
	c.enableInstant(false)
	if err := c.committer.Commit(); err != nil {
		c.logger.Warn("commit before capture failed, device settings kept", "error", err)
	}

	if !c.agent.HaveInstance() {
		c.enableRunStop(true)
		c.enableInstant(true)
		return errors.NewPreconditionError("start capture", errors.ErrNoDevice)
	}

	if c.agent.WorkMode() == device.Dso && c.agent.Flag(device.KeyZero) {
		msg := CalibrationPromptRun
		if instant {
			msg = CalibrationPromptInstant
		}
		if c.prompter.ConfirmCalibration(ctx, msg) {
			return c.ZeroAdjust(ctx)
		}

		c.logger.Info("zero calibration skipped")
		if err := c.agent.SetConfig(device.KeyZero, device.Bool(false)); err != nil {
			c.logger.Warn("clear zero flag failed", "error", err)
		}
		c.enableRunStop(true)
		c.enableInstant(true)
		return nil
	}

	if err := c.session.StartCapture(instant); err != nil {
		c.logger.Error("start capture failed", "error", err)
		c.enableRunStop(true)
		c.enableInstant(true)
		return err
	}
	c.logger.Info("capture started",
		"instant", instant,
		"rate", c.agent.SampleRate(),
		"limit", c.agent.SampleLimit())
	c.setSampling(true)
	c.setState(Sampling)
	return nil
}

// Stop ends the capture. From Idle it does nothing. The repeat flag is
// cleared first; outside repetitive mode a device still uploading moves the
// controller to AwaitingUpload, which the session's completion message
// resolves.
func (c *Controller) Stop() error {
	if c.state == Idle {
		return nil
	}

	c.session.SetRepeating(false)

	waitUpload := false
	if c.session.RunMode() != Repetitive {
		waitUpload = c.agent.Flag(device.KeyWaitUpload)
	}
	if waitUpload {
		c.logger.Info("waiting for upload to drain")
		c.setState(AwaitingUpload)
		return nil
	}

	c.session.StopCapture()
	c.finish()
	return nil
}

func (c *Controller) finish() {
	c.setSampling(false)
	c.setState(Idle)
}

// onCaptureError returns the controller to Idle when the session reports a
// failed acquisition. The session has already stopped its worker.
func (c *Controller) onCaptureError(e event.Event) {
	ce, ok := e.(event.CaptureErrorEvent)
	if !ok {
		return
	}
	c.logger.Error("capture failed", "run_id", ce.RunID, "error", ce.Err)
	if !c.busy() {
		return
	}
	c.session.SetRepeating(false)
	c.finish()
}

// SetRunMode switches between single and repeated captures. interval only
// applies to Repetitive; zero keeps the session's current interval.
func (c *Controller) SetRunMode(mode RunMode, interval time.Duration) error {
	if c.busy() {
		return errors.NewPreconditionError("change run mode", errors.ErrAlreadySampling).
			WithState(c.state.String())
	}
	if mode == Repetitive && interval > 0 {
		c.session.SetRepeatInterval(interval)
	}
	c.session.SetRunMode(mode)
	c.controls.RunMode = mode
	return nil
}

// OnMessage implements event.Listener.
func (c *Controller) OnMessage(code event.Code) {
	switch code {
	case event.MsgDeviceListUpdate:
		if err := c.RefreshDevices(); err != nil {
			c.logger.Error("device list update failed", "error", err)
		}
	case event.MsgCollectStart:
		// A start queued before a stop must not revive the capture.
		if !c.session.IsRunning() {
			return
		}
		c.setSampling(true)
		if c.state == Idle {
			c.setState(Sampling)
		}
	case event.MsgCollectEnd:
		c.finish()
	case event.MsgDeviceModeChanged:
		if c.durations.Len() == 0 || c.durations.Limits().Mode != c.agent.WorkMode() {
			c.Reload()
		}
	}
}

// Reload rebuilds both selectors from the device and resets the controls
// for the current work mode.
func (c *Controller) Reload() {
	c.refreshSelectors()
	c.reloadControls()
}

func (c *Controller) refreshSelectors() {
	c.rates.Refresh()
	c.refreshDurations(c.rates.Rate())
}

// refreshDurations rebuilds the ladder, lines the selection up with what
// the device is configured for and then handles it as a selection.
func (c *Controller) refreshDurations(rate uint64) {
	mode := c.agent.WorkMode()

	c.refreshing = true
	c.durations.Refresh(mode, rate)
	c.refreshing = false

	e, ok := c.durations.Selected()
	if !ok {
		return
	}
	if err := c.durations.SyncToDevice(mode); err != nil {
		c.logger.Warn("duration sync failed", "error", err)
	} else {
		e, _ = c.durations.Selected()
	}
	c.onDurationSelected(e)
}

func (c *Controller) onRateSelected(e sampling.RateEntry) {
	c.logger.Debug("rate selected", "rate", e.Label)
	if c.agent.WorkMode() != device.Dso {
		c.refreshDurations(e.Rate)
	}
}

func (c *Controller) onDurationSelected(e sampling.DurationEntry) {
	if c.refreshing {
		return
	}
	if c.agent.WorkMode() == device.Dso {
		if _, err := c.committer.CommitHorizontalResolution(); err != nil {
			c.logger.Warn("commit time base failed", "timebase", e.Label, "error", err)
		}
	}
	c.session.BroadcastMessage(event.MsgDeviceDurationUpdate)
}

// SelectRate selects rate entry i as the user would.
func (c *Controller) SelectRate(i int) error {
	return c.rates.Select(i)
}

// SelectDuration selects duration entry i as the user would.
func (c *Controller) SelectDuration(i int) error {
	return c.durations.Select(i)
}

// HoriKnob steps the oscilloscope time base. dir > 0 lengthens it, dir < 0
// shortens it and 0 re-commits the current one. It returns the committed
// time per division in seconds, or sampling.FailedResolution when the knob
// is already at its end.
func (c *Controller) HoriKnob(dir int) (float64, error) {
	if dir != 0 && !c.durations.Step(dir) {
		return sampling.FailedResolution, nil
	}
	return c.committer.CommitHorizontalResolution()
}

// Commit writes the current selections to the device.
func (c *Controller) Commit() error {
	return c.committer.Commit()
}
