package sampling

import (
	"github.com/Iron-Ham/capctl/internal/device"
	"github.com/Iron-Ham/capctl/internal/errors"
	"github.com/Iron-Ham/capctl/internal/logging"
)

// HorizontalDivisions is the number of time-base divisions across a Dso capture.
const HorizontalDivisions = 10

// FailedResolution is returned by CommitHorizontalResolution when nothing
// was written.
const FailedResolution = -1.0

// Committer writes the selected rate and duration to the device.
type Committer struct {
	agent     *device.Agent
	rates     *RateSelector
	durations *DurationSelector
	channels  ChannelCounter
	logger    *logging.Logger
}

// NewCommitter creates a Committer. channels may be nil, in which case a
// single Dso channel is assumed.
func NewCommitter(agent *device.Agent, rates *RateSelector, durations *DurationSelector, channels ChannelCounter, logger *logging.Logger) *Committer {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Committer{
		agent:     agent,
		rates:     rates,
		durations: durations,
		channels:  channels,
		logger:    logger.WithComponent("commit"),
	}
}

// Commit pushes the selections to the device, writing only values that
// differ from the device's current ones. In test mode the device owns rate
// and depth, so the selectors are synced from it instead.
//
// Failed writes are logged and joined into the returned error; the
// remaining writes are still attempted.
func (c *Committer) Commit() error {
	if !c.agent.HaveInstance() {
		return nil
	}

	mode := c.agent.WorkMode()
	if c.agent.Flag(device.KeyTest) {
		c.rates.SyncToDevice()
		return c.durations.SyncToDevice(mode)
	}

	var errs []error
	rate := c.rates.Rate()
	if rate != 0 && rate != c.agent.SampleRate() {
		if err := c.agent.SetConfig(device.KeySampleRate, device.Uint64(rate)); err != nil {
			errs = append(errs, err)
		}
	}

	if mode == device.Dso {
		return errors.Join(errs...)
	}

	entry, ok := c.durations.Selected()
	if !ok || rate == 0 {
		return errors.Join(errs...)
	}

	count := SampleCount(entry.Duration, rate)
	if count != c.agent.SampleLimit() {
		if err := c.agent.SetConfig(device.KeyLimitSamples, device.Uint64(count)); err != nil {
			errs = append(errs, err)
		}
	}

	if err := c.commitRLE(entry.RLE); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		c.logger.Warn("commit incomplete", "errors", len(errs))
	}
	return errors.Join(errs...)
}

// commitRLE writes the RLE flag when it differs from the device. A device
// without the key only needs a write to enable it.
func (c *Committer) commitRLE(want bool) error {
	cur, ok := c.agent.Bool(device.KeyRLE)
	if (ok && cur == want) || (!ok && !want) {
		return nil
	}
	return c.agent.SetConfig(device.KeyRLE, device.Bool(want))
}

// CommitHorizontalResolution applies the selected time per division in Dso
// mode. The rate is derived from the sample limit and capped by the
// device's maximum Dso rate shared across enabled channels; it is written
// before the time base. It returns the committed duration in seconds.
//
// If the device does not report its maximum Dso rate the call returns
// FailedResolution and errors.ErrProtocolInvariant without writing.
func (c *Committer) CommitHorizontalResolution() (float64, error) {
	entry, ok := c.durations.Selected()
	if !ok {
		return FailedResolution, errors.ErrNoSelection
	}

	maxRate, ok := c.agent.Uint64(device.KeyMaxDSOSampleRate)
	if !ok {
		c.logger.Error("max dso samplerate query failed")
		return FailedResolution, errors.Wrap(errors.ErrProtocolInvariant, "query max_dso_samplerate")
	}

	channels := 0
	if c.channels != nil {
		channels = c.channels.ChannelCount(device.ChannelDso)
	}
	rate := DsoRate(c.agent.SampleLimit(), entry.Nanoseconds(), maxRate, channels)

	var errs []error
	if c.rates.Len() > 0 {
		c.rates.SelectRate(rate)
		if err := c.Commit(); err != nil {
			errs = append(errs, err)
		}
	} else if rate != c.agent.SampleRate() {
		if err := c.agent.SetConfig(device.KeySampleRate, device.Uint64(rate)); err != nil {
			errs = append(errs, err)
		}
	}

	if err := c.agent.SetConfig(device.KeyTimebase, device.Uint64(entry.Nanoseconds())); err != nil {
		errs = append(errs, err)
	}

	c.logger.Debug("horizontal resolution committed", "timebase", entry.Label, "rate", rate)
	return entry.Duration, errors.Join(errs...)
}

// DsoRate returns min(limit / (timebase*HorizontalDivisions), maxRate/channels)
// for a time base in nanoseconds. A channel count below one counts as one.
func DsoRate(limit, timebaseNs, maxRate uint64, channels int) uint64 {
	if channels < 1 {
		channels = 1
	}
	capRate := maxRate / uint64(channels)
	if timebaseNs == 0 {
		return capRate
	}
	fill := float64(limit) * Second / (float64(timebaseNs) * HorizontalDivisions)
	if fill >= float64(capRate) {
		return capRate
	}
	return uint64(fill)
}
