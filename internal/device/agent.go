// Package device wraps the capability query/set protocol spoken by
// measurement instruments.
//
// A [Driver] is the raw protocol: it answers Get/List/Set for named
// [Key]s and reports unsupported keys with errors.ErrUnsupported. The
// [Agent] sits in front of the currently attached driver, turns failures
// into "absent" results for queries, and logs them.
package device

import (
	"sync"

	"github.com/Iron-Ham/capctl/internal/errors"
	"github.com/Iron-Ham/capctl/internal/logging"
)

// Handle is an opaque identifier for an attached instrument. It is unique
// per enumeration pass and must not be kept across a device list update.
type Handle uint64

// Driver is the capability protocol implemented by an instrument.
// Get and List return errors.ErrUnsupported for keys without meaning on
// this device.
type Driver interface {
	Name() string
	Get(key Key) (Value, error)
	List(key Key) ([]Value, error)
	Set(key Key, v Value) error
}

// ChannelReporter is implemented by drivers that know how many inputs they
// have in the current work mode.
type ChannelReporter interface {
	ChannelCount() int
}

// VirtualSessionName is the driver name used for sessions replayed from a
// file. Their rate and duration are fixed.
const VirtualSessionName = "virtual-session"

// Agent is the controller's view of the attached instrument.
// It is safe for concurrent use.
type Agent struct {
	mu     sync.RWMutex
	driver Driver
	handle Handle
	logger *logging.Logger
}

// NewAgent creates an Agent with no device attached.
func NewAgent(logger *logging.Logger) *Agent {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Agent{logger: logger.WithComponent("device")}
}

// Attach makes d the active instrument.
func (a *Agent) Attach(h Handle, d Driver) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.driver = d
	a.handle = h
	a.logger.Info("device attached", "device", d.Name(), "handle", uint64(h))
}

// Detach drops the active instrument.
func (a *Agent) Detach() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.driver != nil {
		a.logger.Info("device detached", "device", a.driver.Name())
	}
	a.driver = nil
	a.handle = 0
}

// HaveInstance reports whether a device is attached.
func (a *Agent) HaveInstance() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.driver != nil
}

// Handle returns the handle of the attached device, or 0.
func (a *Agent) Handle() Handle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.handle
}

// Name returns the driver name of the attached device, or "".
func (a *Agent) Name() string {
	d := a.current()
	if d == nil {
		return ""
	}
	return d.Name()
}

// IsVirtualSession reports whether the attached device replays a stored session.
func (a *Agent) IsVirtualSession() bool {
	return a.Name() == VirtualSessionName
}

func (a *Agent) current() Driver {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.driver
}

// Config queries key. The second result is false if no device is attached,
// the key is unsupported or the query failed.
func (a *Agent) Config(key Key) (Value, bool) {
	d := a.current()
	if d == nil {
		return Value{}, false
	}

	v, err := d.Get(key)
	if err != nil {
		if !errors.IsUnsupported(err) {
			a.logger.Warn("config query failed", "device", d.Name(), "key", key.String(), "error", err)
		}
		return Value{}, false
	}
	if !v.IsValid() {
		return Value{}, false
	}
	return v, true
}

// ConfigList queries the legal values of key.
func (a *Agent) ConfigList(key Key) ([]Value, bool) {
	d := a.current()
	if d == nil {
		return nil, false
	}

	vs, err := d.List(key)
	if err != nil {
		if !errors.IsUnsupported(err) {
			a.logger.Warn("config list query failed", "device", d.Name(), "key", key.String(), "error", err)
		}
		return nil, false
	}
	return vs, true
}

// SetConfig writes key. Failures are logged and returned as *errors.DeviceError;
// the device's previous value stays authoritative.
func (a *Agent) SetConfig(key Key, v Value) error {
	d := a.current()
	if d == nil {
		return errors.NewDeviceError("set config", errors.ErrNoDevice).
			WithKey(key.String()).
			WithOperation("set").
			WithRetryable(false)
	}

	if want := key.Kind(); want != KindInvalid && v.Kind() != want {
		return errors.NewDeviceError("set config", errors.ErrTypeMismatch).
			WithDevice(d.Name()).
			WithKey(key.String()).
			WithOperation("set").
			WithSeverity(errors.SeverityError).
			WithRetryable(false)
	}

	if err := d.Set(key, v); err != nil {
		a.logger.Warn("config write failed", "device", d.Name(), "key", key.String(), "value", v.String(), "error", err)
		derr := errors.NewDeviceError("set config", err).
			WithDevice(d.Name()).
			WithKey(key.String()).
			WithOperation("set")
		if errors.IsUnsupported(err) {
			derr = derr.WithRetryable(false)
		}
		return derr
	}

	a.logger.Debug("config written", "device", d.Name(), "key", key.String(), "value", v.String())
	return nil
}

// Bool queries a boolean key.
func (a *Agent) Bool(key Key) (bool, bool) {
	v, ok := a.Config(key)
	if !ok {
		return false, false
	}
	return v.AsBool()
}

// Uint64 queries an unsigned key.
func (a *Agent) Uint64(key Key) (uint64, bool) {
	v, ok := a.Config(key)
	if !ok {
		return 0, false
	}
	return v.AsUint64()
}

// Int32 queries a signed key.
func (a *Agent) Int32(key Key) (int32, bool) {
	v, ok := a.Config(key)
	if !ok {
		return 0, false
	}
	return v.AsInt32()
}

// Flag returns the value of a boolean key, treating absence as false.
func (a *Agent) Flag(key Key) bool {
	b, _ := a.Bool(key)
	return b
}

// WorkMode returns the device's active work mode. Logic is assumed when
// the device does not report one.
func (a *Agent) WorkMode() WorkMode {
	if m, ok := a.Int32(KeyWorkMode); ok {
		return WorkMode(m)
	}
	return Logic
}

// SampleRate returns the device's current sample rate in Hz, or 0.
func (a *Agent) SampleRate() uint64 {
	r, _ := a.Uint64(KeySampleRate)
	return r
}

// SampleLimit returns the device's current sample-count limit, or 0.
func (a *Agent) SampleLimit() uint64 {
	n, _ := a.Uint64(KeyLimitSamples)
	return n
}

// ChannelCount returns the input count of the attached device, or 0 when
// the driver does not report one.
func (a *Agent) ChannelCount() int {
	if r, ok := a.current().(ChannelReporter); ok {
		return r.ChannelCount()
	}
	return 0
}
