package device

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Iron-Ham/capctl/internal/errors"
)

// Profile describes the keys a Virtual instrument exposes in one work mode.
type Profile struct {
	Mode     WorkMode
	Channels int
	// Rates is reported by List(KeySampleRate) in this order. A nil slice
	// makes the rate list unsupported.
	Rates []uint64
	// Values holds the initial value of every supported key.
	Values map[Key]Value
}

// Write records one successful Set call.
type Write struct {
	Key   Key
	Value Value
}

func (w Write) String() string {
	return fmt.Sprintf("%s=%s", w.Key, w.Value)
}

// Virtual is an in-memory instrument. It backs the demo device and the
// controller tests, records every write and can inject failures per key.
type Virtual struct {
	mu       sync.Mutex
	name     string
	profiles map[WorkMode]Profile
	order    []WorkMode
	mode     WorkMode
	values   map[Key]Value
	rates    []uint64
	getErrs  map[Key]error
	setErrs  map[Key]error
	writes   []Write
}

// NewVirtual creates an instrument supporting the given profiles. The first
// profile selects the initial work mode.
func NewVirtual(name string, profiles ...Profile) *Virtual {
	v := &Virtual{
		name:     name,
		profiles: make(map[WorkMode]Profile, len(profiles)),
		getErrs:  make(map[Key]error),
		setErrs:  make(map[Key]error),
	}
	for _, p := range profiles {
		if _, dup := v.profiles[p.Mode]; !dup {
			v.order = append(v.order, p.Mode)
		}
		v.profiles[p.Mode] = p
	}
	if len(v.order) > 0 {
		v.load(v.order[0])
	} else {
		v.values = make(map[Key]Value)
	}
	return v
}

// NewDemo creates the built-in demo instrument with Logic, Analog and Dso modes.
func NewDemo(name string) *Virtual {
	return NewVirtual(name, LogicProfile(), AnalogProfile(), DsoProfile())
}

func (v *Virtual) load(mode WorkMode) {
	p := v.profiles[mode]
	v.mode = mode
	v.rates = append([]uint64(nil), p.Rates...)
	if p.Rates == nil {
		v.rates = nil
	}
	v.values = make(map[Key]Value, len(p.Values))
	for k, val := range p.Values {
		v.values[k] = val
	}
}

// Name implements Driver.
func (v *Virtual) Name() string { return v.name }

// Get implements Driver.
func (v *Virtual) Get(key Key) (Value, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err, ok := v.getErrs[key]; ok {
		return Value{}, err
	}
	if key == KeyWorkMode {
		return Int32(int32(v.mode)), nil
	}
	val, ok := v.values[key]
	if !ok {
		return Value{}, errors.ErrUnsupported
	}
	return val, nil
}

// List implements Driver.
func (v *Virtual) List(key Key) ([]Value, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err, ok := v.getErrs[key]; ok {
		return nil, err
	}
	switch key {
	case KeySampleRate:
		if v.rates == nil {
			return nil, errors.ErrUnsupported
		}
		out := make([]Value, len(v.rates))
		for i, r := range v.rates {
			out[i] = Uint64(r)
		}
		return out, nil
	case KeyWorkMode:
		out := make([]Value, len(v.order))
		for i, m := range v.order {
			out[i] = Int32(int32(m))
		}
		return out, nil
	default:
		return nil, errors.ErrUnsupported
	}
}

// Set implements Driver. Switching KeyWorkMode reloads that mode's profile.
func (v *Virtual) Set(key Key, val Value) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err, ok := v.setErrs[key]; ok {
		return err
	}
	if want := key.Kind(); want != KindInvalid && val.Kind() != want {
		return errors.ErrTypeMismatch
	}

	if key == KeyWorkMode {
		m, _ := val.AsInt32()
		if _, ok := v.profiles[WorkMode(m)]; !ok {
			return errors.ErrUnsupported
		}
		if WorkMode(m) != v.mode {
			v.load(WorkMode(m))
		}
		v.writes = append(v.writes, Write{Key: key, Value: val})
		return nil
	}

	if _, ok := v.values[key]; !ok {
		return errors.ErrUnsupported
	}
	v.values[key] = val
	v.writes = append(v.writes, Write{Key: key, Value: val})
	return nil
}

// Mode returns the active work mode.
func (v *Virtual) Mode() WorkMode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

// ChannelCount returns the channel count of the active profile.
func (v *Virtual) ChannelCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.profiles[v.mode].Channels
}

// Put stores a value without recording a write, making key supported.
func (v *Virtual) Put(key Key, val Value) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values[key] = val
}

// Delete makes key unsupported.
func (v *Virtual) Delete(key Key) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.values, key)
}

// FailGet makes queries of key return err until ClearFailures.
func (v *Virtual) FailGet(key Key, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.getErrs[key] = err
}

// FailSet makes writes of key return err until ClearFailures.
func (v *Virtual) FailSet(key Key, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.setErrs[key] = err
}

// ClearFailures removes every injected failure.
func (v *Virtual) ClearFailures() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.getErrs = make(map[Key]error)
	v.setErrs = make(map[Key]error)
}

// Writes returns the successful writes since creation or the last ResetWrites.
func (v *Virtual) Writes() []Write {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Write(nil), v.writes...)
}

// WritesTo returns the recorded writes of a single key.
func (v *Virtual) WritesTo(key Key) []Write {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []Write
	for _, w := range v.writes {
		if w.Key == key {
			out = append(out, w)
		}
	}
	return out
}

// ResetWrites clears the write log.
func (v *Virtual) ResetWrites() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.writes = nil
}

// Snapshot returns the supported keys and their current values, sorted by key.
func (v *Virtual) Snapshot() []Write {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Write, 0, len(v.values)+1)
	out = append(out, Write{Key: KeyWorkMode, Value: Int32(int32(v.mode))})
	for k, val := range v.values {
		out = append(out, Write{Key: k, Value: val})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// -----------------------------------------------------------------------------
// Demo profiles
// -----------------------------------------------------------------------------

// LogicProfile is the demo logic analyzer: 16 channels, 16 Mi samples of
// hardware depth and RLE compression.
func LogicProfile() Profile {
	return Profile{
		Mode:     Logic,
		Channels: 16,
		Rates: []uint64{
			100_000_000, 50_000_000, 20_000_000, 10_000_000, 5_000_000, 2_000_000, 1_000_000,
			500_000, 200_000, 100_000, 50_000, 20_000, 10_000,
		},
		Values: map[Key]Value{
			KeySampleRate:   Uint64(1_000_000),
			KeyLimitSamples: Uint64(1 << 20),
			KeyHWDepth:      Uint64(16 << 20),
			KeyStream:       Bool(false),
			KeyRLESupport:   Bool(true),
			KeyRLE:          Bool(false),
			KeyTest:         Bool(false),
			KeyWaitUpload:   Bool(false),
			KeyLanguage:     Int32(LanguageEnglish),
			KeyUSBSpeed:     Int32(USBSpeedSuper),
		},
	}
}

// AnalogProfile is the demo data recorder: 2 channels streaming into host memory.
func AnalogProfile() Profile {
	return Profile{
		Mode:     Analog,
		Channels: 2,
		Rates: []uint64{
			10_000_000, 5_000_000, 2_000_000, 1_000_000, 500_000, 200_000, 100_000,
			50_000, 20_000, 10_000,
		},
		Values: map[Key]Value{
			KeySampleRate:   Uint64(1_000_000),
			KeyLimitSamples: Uint64(1 << 20),
			KeyHWDepth:      Uint64(1 << 20),
			KeyStream:       Bool(true),
			KeyTest:         Bool(false),
			KeyWaitUpload:   Bool(false),
			KeyLanguage:     Int32(LanguageEnglish),
			KeyUSBSpeed:     Int32(USBSpeedSuper),
		},
	}
}

// DsoProfile is the demo oscilloscope: 2 channels, 10 ns to 10 s per division.
func DsoProfile() Profile {
	return Profile{
		Mode:     Dso,
		Channels: 2,
		Rates: []uint64{
			1_000_000_000, 500_000_000, 200_000_000, 100_000_000, 50_000_000, 20_000_000,
			10_000_000, 5_000_000, 2_000_000, 1_000_000, 500_000, 200_000, 100_000,
			50_000, 20_000, 10_000, 5_000, 2_000, 1_000, 500, 200, 100,
		},
		Values: map[Key]Value{
			KeySampleRate:       Uint64(100_000_000),
			KeyLimitSamples:     Uint64(10_000),
			KeyHWDepth:          Uint64(256 << 10),
			KeyTimebase:         Uint64(1_000),
			KeyMinTimebase:      Uint64(10),
			KeyMaxTimebase:      Uint64(10_000_000_000),
			KeyMaxDSOSampleRate: Uint64(1_000_000_000),
			KeyZero:             Bool(false),
			KeyTest:             Bool(false),
			KeyWaitUpload:       Bool(false),
			KeyLanguage:         Int32(LanguageEnglish),
			KeyUSBSpeed:         Int32(USBSpeedSuper),
		},
	}
}
