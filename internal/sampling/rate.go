package sampling

import (
	"fmt"

	"github.com/Iron-Ham/capctl/internal/device"
	"github.com/Iron-Ham/capctl/internal/errors"
	"github.com/Iron-Ham/capctl/internal/logging"
)

// RateEntry is one selectable sample rate.
type RateEntry struct {
	Rate  uint64 // Hz
	Label string
}

// RateSelector tracks the device's legal sample rates and the active one.
// Entries keep the order the device reported them in.
type RateSelector struct {
	agent    *device.Agent
	logger   *logging.Logger
	entries  []RateEntry
	index    int
	guard    Guard
	onChange func(RateEntry)
}

// NewRateSelector creates an empty RateSelector bound to agent.
func NewRateSelector(agent *device.Agent, logger *logging.Logger) *RateSelector {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &RateSelector{
		agent:  agent,
		logger: logger.WithComponent("rate"),
	}
}

// OnChange registers the callback run when the user selects a rate.
// Selections made while refreshing do not trigger it.
func (s *RateSelector) OnChange(fn func(RateEntry)) {
	s.onChange = fn
}

// Refresh rebuilds the entries from the device's rate list and selects the
// device's current rate. A device without a discrete rate list leaves the
// selector empty.
func (s *RateSelector) Refresh() {
	if s.guard.Active() {
		return
	}
	if !s.agent.HaveInstance() {
		s.logger.Info("rate refresh skipped, no device")
		return
	}

	restore := s.guard.Suppress()
	defer restore()

	list, ok := s.agent.ConfigList(device.KeySampleRate)
	if !ok {
		s.entries = nil
		s.index = 0
		return
	}

	entries := make([]RateEntry, 0, len(list))
	for _, v := range list {
		r, ok := v.AsUint64()
		if !ok {
			continue
		}
		entries = append(entries, RateEntry{Rate: r, Label: device.FormatRate(r)})
	}
	s.entries = entries
	if s.index >= len(entries) {
		s.index = 0
	}

	s.syncToDevice()
}

// SyncToDevice selects the entry matching the device's current rate without
// rebuilding the list.
func (s *RateSelector) SyncToDevice() {
	if s.guard.Active() {
		return
	}
	restore := s.guard.Suppress()
	defer restore()

	s.syncToDevice()
}

func (s *RateSelector) syncToDevice() {
	target := s.agent.SampleRate()
	if cur, ok := s.Selected(); ok && cur.Rate == target {
		return
	}
	if i := s.nearestBelow(target); i >= 0 {
		s.index = i
	}
}

// nearestBelow returns the index of the largest entry not exceeding target,
// or -1 when every entry is above it.
func (s *RateSelector) nearestBelow(target uint64) int {
	best := -1
	for i := len(s.entries) - 1; i >= 0; i-- {
		r := s.entries[i].Rate
		if r <= target && (best < 0 || r > s.entries[best].Rate) {
			best = i
		}
	}
	return best
}

// Select makes entry i the active rate, as a user choice would.
func (s *RateSelector) Select(i int) error {
	if i < 0 || i >= len(s.entries) {
		return errors.NewValidationError("rate index out of range").
			WithField("rate").
			WithValue(i)
	}
	s.index = i
	if !s.guard.Active() && s.onChange != nil {
		s.onChange(s.entries[i])
	}
	return nil
}

// SelectRate selects the largest entry not exceeding rate without notifying.
// It reports false and keeps the selection when no entry qualifies.
func (s *RateSelector) SelectRate(rate uint64) bool {
	i := s.nearestBelow(rate)
	if i < 0 {
		return false
	}
	s.index = i
	return true
}

// Clear drops all entries.
func (s *RateSelector) Clear() {
	s.entries = nil
	s.index = 0
}

// Entries returns a copy of the entries.
func (s *RateSelector) Entries() []RateEntry {
	return append([]RateEntry(nil), s.entries...)
}

// Len returns the number of entries.
func (s *RateSelector) Len() int { return len(s.entries) }

// Index returns the selected index, or -1 when the selector is empty.
func (s *RateSelector) Index() int {
	if len(s.entries) == 0 {
		return -1
	}
	return s.index
}

// Selected returns the active entry.
func (s *RateSelector) Selected() (RateEntry, bool) {
	if len(s.entries) == 0 {
		return RateEntry{}, false
	}
	return s.entries[s.index], true
}

// Rate returns the active rate, falling back to the device's rate when the
// selector is empty.
func (s *RateSelector) Rate() uint64 {
	if e, ok := s.Selected(); ok {
		return e.Rate
	}
	return s.agent.SampleRate()
}

func (s *RateSelector) String() string {
	e, ok := s.Selected()
	if !ok {
		return "rate: <none>"
	}
	return fmt.Sprintf("rate: %s (%d/%d)", e.Label, s.index+1, len(s.entries))
}
