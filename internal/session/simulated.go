package session

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/capctl/internal/capture"
	"github.com/Iron-Ham/capctl/internal/device"
	"github.com/Iron-Ham/capctl/internal/errors"
	"github.com/Iron-Ham/capctl/internal/event"
	"github.com/Iron-Ham/capctl/internal/logging"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

const (
	// DefaultProgressSteps is the number of progress notifications per acquisition.
	DefaultProgressSteps = 10
	// DefaultSpeed runs acquisitions in real time.
	DefaultSpeed = 1.0
	// MaxAcquisitionTime caps the simulated wall time of one acquisition.
	MaxAcquisitionTime = 10 * time.Second
)

// Option configures a Simulated session.
type Option func(*Simulated)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Simulated) { s.logger = l }
}

// WithSpeed scales acquisition wall time. 1 is real time, 0 completes
// immediately.
func WithSpeed(factor float64) Option {
	return func(s *Simulated) {
		if factor >= 0 {
			s.speed = factor
		}
	}
}

// WithProgressSteps sets how many progress notifications an acquisition posts.
func WithProgressSteps(n int) Option {
	return func(s *Simulated) {
		if n > 0 {
			s.steps = n
		}
	}
}

// WithRepeatInterval sets the initial pause between repeated acquisitions.
func WithRepeatInterval(d time.Duration) Option {
	return func(s *Simulated) { s.interval = d }
}

type channelKey struct {
	handle device.Handle
	mode   device.WorkMode
	count  int
}

// Simulated is a capture.Session that fabricates acquisitions from the
// device's committed settings.
type Simulated struct {
	agent   *device.Agent
	bus     *event.Bus
	mailbox *event.Mailbox
	logger  *logging.Logger
	speed   float64
	steps   int

	mu        sync.Mutex
	running   bool
	instant   bool
	repeating bool
	runMode   capture.RunMode
	interval  time.Duration
	runID     string
	cancel    context.CancelFunc
	wg        *conc.WaitGroup

	channels    []*Channel
	channelsFor channelKey
}

// New creates a Simulated session. Worker notifications go to mailbox;
// BroadcastMessage publishes synchronously on bus.
func New(agent *device.Agent, bus *event.Bus, mailbox *event.Mailbox, opts ...Option) *Simulated {
	s := &Simulated{
		agent:    agent,
		bus:      bus,
		mailbox:  mailbox,
		speed:    DefaultSpeed,
		steps:    DefaultProgressSteps,
		interval: capture.DefaultRepeatInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NopLogger()
	}
	s.logger = s.logger.WithComponent("session")
	return s
}

type acquisition struct {
	mode      device.WorkMode
	rate      uint64
	limit     uint64
	calibrate bool
}

// wallTime is how long the acquisition takes at the session's speed.
func (a acquisition) wallTime(speed float64) time.Duration {
	if a.rate == 0 || speed == 0 {
		return 0
	}
	d := time.Duration(float64(a.limit) / float64(a.rate) * speed * float64(time.Second))
	return min(d, MaxAcquisitionTime)
}

// StartCapture implements capture.Session.
func (s *Simulated) StartCapture(instant bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.NewPreconditionError("start capture", errors.ErrAlreadySampling)
	}

	acq := acquisition{
		mode:  s.agent.WorkMode(),
		rate:  s.agent.SampleRate(),
		limit: s.agent.SampleLimit(),
	}
	if acq.rate == 0 || acq.limit == 0 {
		return errors.Wrap(errors.ErrProtocolInvariant, "capture needs samplerate and limit_samples")
	}
	acq.calibrate = acq.mode == device.Dso && s.agent.Flag(device.KeyZero)

	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.instant = instant
	s.repeating = !instant && s.runMode == capture.Repetitive
	s.cancel = cancel
	s.wg = conc.NewWaitGroup()

	s.logger.Info("acquisition starting",
		"mode", acq.mode.String(),
		"rate", acq.rate,
		"limit", acq.limit,
		"instant", instant,
		"calibrate", acq.calibrate)

	s.wg.Go(func() { s.run(ctx, acq) })
	return nil
}

func (s *Simulated) run(ctx context.Context, acq acquisition) {
	defer s.finish()

	for {
		runID := uuid.NewString()
		var (
			pc   panics.Catcher
			done bool
		)
		pc.Try(func() { done = s.acquire(ctx, runID, acq) })
		if r := pc.Recovered(); r != nil {
			s.fail(ctx, runID, errors.NewDeviceError("acquisition aborted", r.AsError()).
				WithDevice(s.agent.Name()).
				WithRetryable(false))
			return
		}
		if !done {
			return
		}
		if acq.calibrate {
			if err := s.agent.SetConfig(device.KeyZero, device.Bool(false)); err != nil {
				s.logger.Warn("clear zero flag failed", "error", err)
			}
			acq.calibrate = false
		}
		if !s.IsRepeating() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.repeatInterval()):
		}

		// Each repeat captures with whatever the device reports now.
		rate, limit, err := s.readSettings()
		if err != nil {
			s.fail(ctx, uuid.NewString(), err)
			return
		}
		acq.rate, acq.limit = rate, limit
		s.setRunning(true)
	}
}

// readSettings queries the committed rate and sample limit.
func (s *Simulated) readSettings() (rate, limit uint64, err error) {
	rate, limit = s.agent.SampleRate(), s.agent.SampleLimit()
	if rate == 0 || limit == 0 {
		return 0, 0, errors.NewDeviceError("read capture settings", errors.ErrDeviceIO).
			WithDevice(s.agent.Name()).
			WithOperation("get")
	}
	return rate, limit, nil
}

// fail ends the capture and reports err. The session is marked idle before
// the event is posted so that whoever handles it sees a stopped session.
func (s *Simulated) fail(ctx context.Context, runID string, err error) {
	s.mu.Lock()
	s.running = false
	s.repeating = false
	s.mu.Unlock()

	s.logger.Error("acquisition failed", "run_id", runID, "error", err)
	s.mailbox.PostEvent(ctx, event.NewCaptureErrorEvent(runID, err))
}

// acquire runs one acquisition. It reports false if it was cancelled.
func (s *Simulated) acquire(ctx context.Context, runID string, acq acquisition) bool {
	s.mu.Lock()
	s.runID = runID
	s.mu.Unlock()

	s.mailbox.Post(ctx, event.MsgCollectStart)
	s.mailbox.PostEvent(ctx, event.NewCaptureStateEvent(event.CaptureRunning, runID))

	step := acq.wallTime(s.speed) / time.Duration(s.steps)
	for i := 1; i <= s.steps; i++ {
		if step > 0 {
			t := time.NewTimer(step)
			select {
			case <-ctx.Done():
				t.Stop()
				s.logger.Debug("acquisition cancelled", "run_id", runID)
				return false
			case <-t.C:
			}
		} else if ctx.Err() != nil {
			return false
		}
		samples := acq.limit * uint64(i) / uint64(s.steps)
		s.mailbox.PostEvent(ctx, event.NewCaptureProgressEvent(runID, samples, acq.limit))
	}

	s.setRunning(false)
	s.logger.Info("acquisition complete", "run_id", runID, "samples", acq.limit)
	s.mailbox.PostEvent(ctx, event.NewCaptureStateEvent(event.CaptureStopped, runID))
	s.mailbox.Post(ctx, event.MsgCollectEnd)
	return true
}

func (s *Simulated) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.repeating = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Simulated) setRunning(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = on
}

func (s *Simulated) repeatInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// StopCapture implements capture.Session. It cancels the worker and waits
// for it to exit.
func (s *Simulated) StopCapture() {
	s.mu.Lock()
	cancel, wg := s.cancel, s.wg
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	wg.Wait()
}

// ExitCapture implements capture.Session.
func (s *Simulated) ExitCapture() {
	s.SetRepeating(false)
	s.StopCapture()
}

// Wait blocks until the current worker, if any, exits.
func (s *Simulated) Wait() {
	s.mu.Lock()
	wg := s.wg
	s.mu.Unlock()
	if wg != nil {
		wg.Wait()
	}
}

// IsRunning implements capture.Session.
func (s *Simulated) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// IsInstant implements capture.Session.
func (s *Simulated) IsInstant() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instant
}

// IsRepeating implements capture.Session.
func (s *Simulated) IsRepeating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repeating
}

// SetRepeating implements capture.Session.
func (s *Simulated) SetRepeating(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeating = on
}

// SetRunMode implements capture.Session.
func (s *Simulated) SetRunMode(mode capture.RunMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runMode = mode
}

// RunMode implements capture.Session.
func (s *Simulated) RunMode() capture.RunMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runMode
}

// SetRepeatInterval implements capture.Session.
func (s *Simulated) SetRepeatInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
}

// RepeatInterval returns the pause between repeated acquisitions.
func (s *Simulated) RepeatInterval() time.Duration {
	return s.repeatInterval()
}

// RunID returns the identifier of the latest acquisition.
func (s *Simulated) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Channels implements capture.Session. The list is rebuilt, all inputs
// enabled, whenever the device, its work mode or its input count changes.
func (s *Simulated) Channels() []capture.Channel {
	chans := s.syncChannels()
	out := make([]capture.Channel, len(chans))
	for i, ch := range chans {
		out[i] = ch
	}
	return out
}

// ChannelCount implements capture.Session by counting enabled inputs of class.
func (s *Simulated) ChannelCount(class device.ChannelClass) int {
	n := 0
	for _, ch := range s.syncChannels() {
		if ch.class == class && ch.enabled {
			n++
		}
	}
	return n
}

func (s *Simulated) syncChannels() []*Channel {
	key := channelKey{
		handle: s.agent.Handle(),
		mode:   s.agent.WorkMode(),
		count:  s.agent.ChannelCount(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if key != s.channelsFor || s.channels == nil {
		class := device.ChannelClassFor(key.mode)
		s.channels = make([]*Channel, key.count)
		for i := range s.channels {
			s.channels[i] = newChannel(class, i)
		}
		s.channelsFor = key
	}
	return s.channels
}

// BroadcastMessage implements capture.Session.
func (s *Simulated) BroadcastMessage(code event.Code) {
	if s.bus != nil {
		s.bus.Broadcast(code)
	}
}
