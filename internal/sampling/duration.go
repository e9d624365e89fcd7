package sampling

import (
	"fmt"

	"github.com/Iron-Ham/capctl/internal/device"
	"github.com/Iron-Ham/capctl/internal/errors"
	"github.com/Iron-Ham/capctl/internal/logging"
)

// ChannelCounter reports how many channels of a class are enabled.
type ChannelCounter interface {
	ChannelCount(class device.ChannelClass) int
}

// DurationSelector holds the ladder of selectable capture durations.
type DurationSelector struct {
	agent    *device.Agent
	channels ChannelCounter
	logger   *logging.Logger
	entries  []DurationEntry
	index    int
	limits   Limits
	rate     uint64
	guard    Guard
	onChange func(DurationEntry)
}

// NewDurationSelector creates an empty DurationSelector. channels may be nil.
func NewDurationSelector(agent *device.Agent, channels ChannelCounter, logger *logging.Logger) *DurationSelector {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &DurationSelector{
		agent:    agent,
		channels: channels,
		logger:   logger.WithComponent("duration"),
	}
}

// OnChange registers the callback run when the selected duration changes,
// whether by the user or once at the end of a Refresh.
func (s *DurationSelector) OnChange(fn func(DurationEntry)) {
	s.onChange = fn
}

// Refresh regenerates the ladder for mode at rate and carries the previous
// selection over with Remap.
func (s *DurationSelector) Refresh(mode device.WorkMode, rate uint64) {
	if s.guard.Active() {
		return
	}
	restore := s.guard.Suppress()
	defer restore()

	prev := DefaultPreviousDuration
	if e, ok := s.Selected(); ok {
		prev = e.Duration
	}

	s.limits = s.ReadLimits(mode)
	s.rate = rate
	s.entries = Ladder(s.limits, rate)
	s.index = Remap(prev, s.entries)
	if s.index < 0 {
		s.index = 0
		s.logger.Warn("duration ladder empty", "mode", mode.String(), "rate", rate)
		return
	}

	s.logger.Debug("duration ladder rebuilt",
		"mode", mode.String(),
		"rate", rate,
		"entries", len(s.entries),
		"selected", s.entries[s.index].Label)

	s.emit()
}

// ReadLimits queries the device properties the ladder depends on.
func (s *DurationSelector) ReadLimits(mode device.WorkMode) Limits {
	l := Limits{Mode: mode, MinTimebase: uint64(DefaultMinTimebase)}
	l.Stream = s.agent.Flag(device.KeyStream)
	l.HWDepth, _ = s.agent.Uint64(device.KeyHWDepth)

	logicChannels := 0
	if s.channels != nil {
		logicChannels = s.channels.ChannelCount(device.ChannelLogic)
	}
	l.SWDepth = SoftwareDepth(mode, logicChannels)

	switch mode {
	case device.Logic:
		l.RLESupport = s.agent.Flag(device.KeyRLESupport)
		if l.RLESupport {
			l.RLEDepth = min(l.HWDepth*RLEFactor, l.SWDepth)
		}
	case device.Dso:
		l.MaxTimebase, _ = s.agent.Uint64(device.KeyMaxTimebase)
		if tb, ok := s.agent.Uint64(device.KeyMinTimebase); ok {
			l.MinTimebase = tb
		}
	}
	return l
}

// SyncToDevice selects the entry matching the duration the device is
// configured for: the time base in Dso mode, limit/rate otherwise.
func (s *DurationSelector) SyncToDevice(mode device.WorkMode) error {
	if s.guard.Active() {
		return nil
	}

	var seconds float64
	if mode == device.Dso {
		tb, ok := s.agent.Uint64(device.KeyTimebase)
		if !ok {
			s.logger.Error("time base query failed")
			return errors.Wrap(errors.ErrProtocolInvariant, "query timebase")
		}
		seconds = float64(tb) / Second
	} else {
		limit, ok := s.agent.Uint64(device.KeyLimitSamples)
		if !ok {
			s.logger.Error("sample limit query failed")
			return errors.Wrap(errors.ErrProtocolInvariant, "query limit_samples")
		}
		rate := s.agent.SampleRate()
		if rate == 0 {
			return errors.Wrap(errors.ErrProtocolInvariant, "query samplerate")
		}
		seconds = float64(limit) / float64(rate)
	}

	restore := s.guard.Suppress()
	defer restore()

	if e, ok := s.Selected(); ok && e.Duration == seconds {
		return nil
	}
	for i, e := range s.entries {
		if seconds >= e.Duration {
			s.index = i
			break
		}
	}
	return nil
}

// Select makes entry i the active duration, as a user choice would.
func (s *DurationSelector) Select(i int) error {
	if i < 0 || i >= len(s.entries) {
		return errors.NewValidationError("duration index out of range").
			WithField("duration").
			WithValue(i)
	}
	s.index = i
	if !s.guard.Active() {
		s.emit()
	}
	return nil
}

// SetIndex moves the selection without notifying. Out-of-range indexes are
// clamped.
func (s *DurationSelector) SetIndex(i int) {
	if len(s.entries) == 0 {
		s.index = 0
		return
	}
	s.index = max(0, min(i, len(s.entries)-1))
}

// Step moves the selection one entry towards longer (dir > 0) or shorter
// (dir < 0) durations without notifying. It reports whether it moved.
func (s *DurationSelector) Step(dir int) bool {
	switch {
	case dir > 0 && s.index > 0:
		s.index--
		return true
	case dir < 0 && s.index < len(s.entries)-1:
		s.index++
		return true
	default:
		return false
	}
}

// Find returns the index of the entry lasting exactly ns nanoseconds, or -1.
func (s *DurationSelector) Find(ns uint64) int {
	for i, e := range s.entries {
		if e.Nanoseconds() == ns {
			return i
		}
	}
	return -1
}

// Clear drops all entries.
func (s *DurationSelector) Clear() {
	s.entries = nil
	s.index = 0
	s.limits = Limits{}
	s.rate = 0
}

func (s *DurationSelector) emit() {
	if s.onChange != nil && len(s.entries) > 0 {
		s.onChange(s.entries[s.index])
	}
}

// Entries returns a copy of the ladder.
func (s *DurationSelector) Entries() []DurationEntry {
	return append([]DurationEntry(nil), s.entries...)
}

// Len returns the number of entries.
func (s *DurationSelector) Len() int { return len(s.entries) }

// Index returns the selected index, or -1 when the ladder is empty.
func (s *DurationSelector) Index() int {
	if len(s.entries) == 0 {
		return -1
	}
	return s.index
}

// Selected returns the active entry.
func (s *DurationSelector) Selected() (DurationEntry, bool) {
	if len(s.entries) == 0 {
		return DurationEntry{}, false
	}
	return s.entries[s.index], true
}

// Limits returns the limits the current ladder was built from.
func (s *DurationSelector) Limits() Limits { return s.limits }

// Rate returns the sample rate the current ladder was built for.
func (s *DurationSelector) Rate() uint64 { return s.rate }

func (s *DurationSelector) String() string {
	e, ok := s.Selected()
	if !ok {
		return "duration: <none>"
	}
	return fmt.Sprintf("duration: %s (%d/%d)", e.Label, s.index+1, len(s.entries))
}
