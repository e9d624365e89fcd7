package device

import (
	"fmt"
	"strings"
)

// Key identifies a queryable or settable device property.
type Key int

const (
	KeySampleRate Key = iota + 1
	KeyLimitSamples
	KeyHWDepth
	KeyMaxTimebase
	KeyMinTimebase
	KeyTimebase
	KeyStream
	KeyRLESupport
	KeyRLE
	KeyTest
	KeyWorkMode
	KeyZero
	KeyWaitUpload
	KeyLanguage
	KeyMaxDSOSampleRate
	KeyUSBSpeed
)

var keyNames = map[Key]string{
	KeySampleRate:       "samplerate",
	KeyLimitSamples:     "limit_samples",
	KeyHWDepth:          "hw_depth",
	KeyMaxTimebase:      "max_timebase",
	KeyMinTimebase:      "min_timebase",
	KeyTimebase:         "timebase",
	KeyStream:           "stream",
	KeyRLESupport:       "rle_support",
	KeyRLE:              "rle",
	KeyTest:             "test",
	KeyWorkMode:         "work_mode",
	KeyZero:             "zero",
	KeyWaitUpload:       "wait_upload",
	KeyLanguage:         "language",
	KeyMaxDSOSampleRate: "max_dso_samplerate",
	KeyUSBSpeed:         "usb_speed",
}

func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("key(%d)", int(k))
}

// Kind returns the value kind a key carries.
func (k Key) Kind() Kind {
	switch k {
	case KeyStream, KeyRLESupport, KeyRLE, KeyTest, KeyZero, KeyWaitUpload:
		return KindBool
	case KeyWorkMode, KeyLanguage, KeyUSBSpeed:
		return KindInt32
	case KeySampleRate, KeyLimitSamples, KeyHWDepth, KeyMaxTimebase, KeyMinTimebase,
		KeyTimebase, KeyMaxDSOSampleRate:
		return KindUint64
	default:
		return KindInvalid
	}
}

// ParseKey resolves a key from its name.
func ParseKey(name string) (Key, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range keyNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Keys returns every known key in declaration order.
func Keys() []Key {
	keys := make([]Key, 0, len(keyNames))
	for k := KeySampleRate; k <= KeyUSBSpeed; k++ {
		keys = append(keys, k)
	}
	return keys
}

// WorkMode is the acquisition class of an instrument.
type WorkMode int

const (
	Logic WorkMode = iota
	Analog
	Dso
)

func (m WorkMode) String() string {
	switch m {
	case Logic:
		return "logic"
	case Analog:
		return "analog"
	case Dso:
		return "dso"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseWorkMode resolves a work mode from its name.
func ParseWorkMode(s string) (WorkMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "logic":
		return Logic, true
	case "analog":
		return Analog, true
	case "dso", "scope", "oscilloscope":
		return Dso, true
	default:
		return 0, false
	}
}

// Language codes reported under KeyLanguage.
const (
	LanguageChinese int32 = 25
	LanguageEnglish int32 = 31
)

// USB link speeds reported under KeyUSBSpeed.
const (
	USBSpeedUnknown int32 = 0
	USBSpeedHigh    int32 = 3
	USBSpeedSuper   int32 = 4
)

// ChannelClass groups the probes of an instrument.
type ChannelClass int

const (
	ChannelLogic ChannelClass = iota
	ChannelAnalog
	ChannelDso
)

func (c ChannelClass) String() string {
	switch c {
	case ChannelLogic:
		return "logic"
	case ChannelAnalog:
		return "analog"
	case ChannelDso:
		return "dso"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// ChannelClassFor returns the probe class used by a work mode.
func ChannelClassFor(m WorkMode) ChannelClass {
	switch m {
	case Analog:
		return ChannelAnalog
	case Dso:
		return ChannelDso
	default:
		return ChannelLogic
	}
}
