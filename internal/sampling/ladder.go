package sampling

import (
	"math"
	"strconv"

	"github.com/Iron-Ham/capctl/internal/device"
)

// Software depth caps, in samples.
const (
	LogicMaxSWDepth64 uint64 = 16 << 30
	LogicMaxSWDepth32 uint64 = 8 << 30
	AnalogMaxSWDepth  uint64 = 100_000_000
)

const (
	// RLEFactor is the depth multiplier of run-length compression.
	RLEFactor = 1024
	// MinSamples is the smallest capture the ladder offers outside Dso mode.
	MinSamples = 1000
	// MinAnalogDuration is the shortest Analog capture, in nanoseconds.
	MinAnalogDuration = 100 * Millisecond
	// DefaultMinTimebase applies when a Dso device does not report one, in nanoseconds.
	DefaultMinTimebase = 10 * Nanosecond
	// DefaultPreviousDuration seeds the remap when nothing was selected, in seconds.
	DefaultPreviousDuration = 1.0

	// DivSuffix marks time-per-division labels.
	DivSuffix = " / div"
	// RLESuffix marks durations that only fit with RLE compression.
	RLESuffix = " (RLE)"

	maxLadderSteps = 512
)

// DurationEntry is one selectable capture duration.
type DurationEntry struct {
	Duration float64 // seconds; time per division in Dso mode
	Label    string
	RLE      bool
}

// Nanoseconds returns the duration rounded to whole nanoseconds.
func (e DurationEntry) Nanoseconds() uint64 {
	return uint64(math.Round(e.Duration * Second))
}

// Limits are the device properties the ladder is derived from.
type Limits struct {
	Mode        device.WorkMode
	Stream      bool
	RLESupport  bool
	HWDepth     uint64 // samples
	SWDepth     uint64 // samples
	RLEDepth    uint64 // samples, zero without RLE support
	MinTimebase uint64 // ns, Dso only
	MaxTimebase uint64 // ns, Dso only
}

// SoftwareDepth returns the host-side sample cap for a mode. On 32-bit
// hosts the Logic cap is shared by the enabled logic channels.
func SoftwareDepth(mode device.WorkMode, logicChannels int) uint64 {
	return softwareDepth(mode, logicChannels, strconv.IntSize)
}

func softwareDepth(mode device.WorkMode, logicChannels, intSize int) uint64 {
	if mode != device.Logic {
		return AnalogMaxSWDepth
	}
	if intSize == 64 {
		return LogicMaxSWDepth64
	}
	if logicChannels <= 0 {
		return LogicMaxSWDepth32
	}
	return LogicMaxSWDepth32 / uint64(logicChannels)
}

// InitialDuration returns the longest duration the device can hold at rate,
// in nanoseconds. Zero means no ladder can be built.
func InitialDuration(l Limits, rate uint64) float64 {
	if l.Mode == device.Dso {
		return float64(l.MaxTimebase)
	}
	if rate == 0 {
		return 0
	}
	switch {
	case l.Stream:
		return depthDuration(l.SWDepth, rate)
	case l.RLESupport:
		return depthDuration(l.RLEDepth, rate)
	default:
		return depthDuration(l.HWDepth, rate)
	}
}

func depthDuration(depth, rate uint64) float64 {
	return float64(depth) * Second / float64(rate)
}

// Ladder builds the strictly decreasing duration sequence for l at rate.
// The first entry is InitialDuration; each following entry is the next
// 1-2-5 step below it. Generation stops before the first step that would
// fall under the mode's floor: the Dso minimum time base, or fewer than
// MinSamples samples (plus 100 ms for Analog).
func Ladder(l Limits, rate uint64) []DurationEntry {
	d := InitialDuration(l, rate)
	if d <= 0 || math.IsInf(d, 0) || math.IsNaN(d) {
		return nil
	}

	minTimebase := float64(l.MinTimebase)
	if minTimebase <= 0 {
		minTimebase = DefaultMinTimebase
	}

	hwDuration := math.Inf(1)
	if rate > 0 {
		hwDuration = depthDuration(l.HWDepth, rate)
	}

	var entries []DurationEntry
	for range maxLadderSteps {
		entries = append(entries, makeEntry(l, d, hwDuration))

		d = nextStep(d)
		if d <= 0 || !keepStep(l.Mode, d, rate, minTimebase) {
			break
		}
	}
	return entries
}

func makeEntry(l Limits, ns, hwDuration float64) DurationEntry {
	e := DurationEntry{Duration: ns / Second}
	label := formatNanos(ns)
	switch {
	case l.Mode == device.Dso:
		label += DivSuffix
	case !l.Stream && ns > hwDuration:
		label += RLESuffix
		e.RLE = true
	}
	e.Label = label
	return e
}

func keepStep(mode device.WorkMode, ns float64, rate uint64, minTimebase float64) bool {
	samples := ns * float64(rate) / Second
	switch mode {
	case device.Dso:
		return ns >= minTimebase
	case device.Analog:
		return ns >= MinAnalogDuration && samples >= MinSamples
	default:
		return samples >= MinSamples
	}
}

// nextStep returns the largest of 5, 2 or 1 times a power of ten (in the
// day, hour, minute or nanosecond unit matching d) that is below d. Exact
// decade values are halved, except at the unit floors where one day drops
// to 20 hours, one hour to 50 minutes and one minute to 50 seconds.
func nextStep(d float64) float64 {
	unit := Nanosecond
	switch {
	case d >= Day:
		unit = Day
	case d >= Hour:
		unit = Hour
	case d >= Minute:
		unit = Minute
	}

	p := decade(d / unit)
	switch {
	case d > 5*p*unit:
		return 5 * p * unit
	case d > 2*p*unit:
		return 2 * p * unit
	case d > p*unit:
		return p * unit
	case p > 1:
		return d * 0.5
	case unit == Day:
		return 20 * Hour
	case unit == Hour:
		return 50 * Minute
	case unit == Minute:
		return 50 * Second
	default:
		return d * 0.5
	}
}

// decade returns the largest power of ten not above x. It steps by
// multiplication so exact powers stay exact.
func decade(x float64) float64 {
	p := 1.0
	if x >= 1 {
		for p*10 <= x {
			p *= 10
		}
		return p
	}
	for p > x && p > 0 {
		p /= 10
	}
	return p
}

// Remap picks the index in entries for a previously selected duration:
// 0 when prev is above the first entry, the last index when it is below
// the last one, otherwise the first entry not exceeding prev. It returns
// -1 only for an empty list.
func Remap(prev float64, entries []DurationEntry) int {
	if len(entries) == 0 {
		return -1
	}
	last := len(entries) - 1
	if prev > entries[0].Duration {
		return 0
	}
	if prev < entries[last].Duration {
		return last
	}
	for i, e := range entries {
		if prev >= e.Duration {
			return i
		}
	}
	return last
}

// SampleAlign is the bit mask the sample-count limit is aligned to.
const SampleAlign = 1023

// SampleCount returns the sample-count limit for capturing seconds at rate:
// ceil(seconds*rate) rounded up to the next multiple of SampleAlign+1.
func SampleCount(seconds float64, rate uint64) uint64 {
	n := uint64(math.Ceil(seconds * float64(rate)))
	return (n + SampleAlign) &^ SampleAlign
}
