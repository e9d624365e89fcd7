package capture

import (
	"context"
	"time"

	"github.com/Iron-Ham/capctl/internal/device"
	"github.com/Iron-Ham/capctl/internal/errors"
	"github.com/Iron-Ham/capctl/internal/sampling"
)

// ZeroTimebase is the time per division, in nanoseconds, used while the
// oscilloscope calibrates its zero offset.
const ZeroTimebase = 2 * sampling.Microsecond

// ZeroAdjust runs the oscilloscope zero calibration: all Dso channels are
// enabled, the calibration time base is committed and a capture runs until
// the waiter sees the device converge. A cancelled wait restores the
// channels' committed settings. Either way the previous time base is
// restored and committed again. A capture that was already running when
// the flow began is left running.
func (c *Controller) ZeroAdjust(ctx context.Context) error {
	channels := c.dsoChannels()
	for _, ch := range channels {
		ch.Enable(true)
	}

	back := c.durations.Index()
	i := c.durations.Find(uint64(ZeroTimebase))
	if i < 0 {
		i = sampling.Remap(ZeroTimebase/sampling.Second, c.durations.Entries())
		c.logger.Warn("calibration time base not offered, using nearest", "index", i)
	}
	c.durations.SetIndex(i)
	if _, err := c.committer.CommitHorizontalResolution(); err != nil {
		c.logger.Error("commit calibration time base failed", "error", err)
	}

	started := false
	if !c.session.IsRunning() {
		if err := c.session.StartCapture(true); err != nil {
			c.logger.Error("start calibration capture failed", "error", err)
		} else {
			started = true
			c.setSampling(true)
			c.setState(Sampling)
		}
	}

	c.logger.Info("zero calibration running")
	begin := time.Now()
	waitErr := c.waiter.WaitCalibration(ctx, c.agent)
	if waitErr != nil {
		c.logger.Info("zero calibration cancelled", "error", waitErr)
		for _, ch := range channels {
			if err := ch.CommitSettings(); err != nil {
				c.logger.Warn("restore channel settings failed", "error", err)
			}
		}
	} else {
		c.logger.Info("zero calibration converged", "elapsed", time.Since(begin).String())
	}

	if started && c.session.IsRunning() {
		c.session.StopCapture()
	}
	if started || !c.session.IsRunning() {
		c.finish()
	}

	c.durations.SetIndex(back)
	if _, err := c.committer.CommitHorizontalResolution(); err != nil {
		c.logger.Error("restore time base failed", "error", err)
	}

	if waitErr != nil {
		return errors.Wrap(errors.ErrCanceled, "zero calibration")
	}
	return nil
}

func (c *Controller) dsoChannels() []Channel {
	var out []Channel
	for _, ch := range c.session.Channels() {
		if ch.Class() == device.ChannelDso {
			out = append(out, ch)
		}
	}
	return out
}

// DefaultPollInterval is how often PollWaiter checks the zero flag.
const DefaultPollInterval = 100 * time.Millisecond

// PollWaiter waits for the device to clear its zero flag.
type PollWaiter struct {
	Interval time.Duration
	// Timeout bounds the wait; zero waits until ctx is done.
	Timeout time.Duration
}

// NewPollWaiter returns a PollWaiter with the default interval.
func NewPollWaiter(timeout time.Duration) *PollWaiter {
	return &PollWaiter{Interval: DefaultPollInterval, Timeout: timeout}
}

// WaitCalibration implements Waiter.
func (w *PollWaiter) WaitCalibration(ctx context.Context, agent *device.Agent) error {
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if !agent.Flag(device.KeyZero) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WaitFunc adapts a function to Waiter.
type WaitFunc func(ctx context.Context, agent *device.Agent) error

// WaitCalibration implements Waiter.
func (f WaitFunc) WaitCalibration(ctx context.Context, agent *device.Agent) error {
	return f(ctx, agent)
}
