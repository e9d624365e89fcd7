// Package testutil provides testing utilities for capctl tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/Iron-Ham/capctl/internal/device"
	"github.com/Iron-Ham/capctl/internal/logging"
	"github.com/spf13/afero"
)

// AttachVirtual creates a virtual instrument from profiles and attaches it
// to a fresh Agent.
func AttachVirtual(t *testing.T, profiles ...device.Profile) (*device.Agent, *device.Virtual) {
	t.Helper()

	if len(profiles) == 0 {
		t.Fatal("AttachVirtual needs at least one profile")
	}
	v := device.NewVirtual("test-device", profiles...)
	agent := device.NewAgent(logging.NopLogger())
	agent.Attach(1, v)
	return agent, v
}

// Channels is a fixed ChannelCounter.
type Channels map[device.ChannelClass]int

// ChannelCount returns the configured count for class.
func (c Channels) ChannelCount(class device.ChannelClass) int {
	return c[class]
}

// LogicProfile returns a Logic profile with hwDepth samples of memory, no
// RLE and no streaming, reporting rates in the given order with the first
// rate active.
func LogicProfile(hwDepth uint64, rates ...uint64) device.Profile {
	active := uint64(0)
	if len(rates) > 0 {
		active = rates[0]
	}
	return device.Profile{
		Mode:     device.Logic,
		Channels: 8,
		Rates:    rates,
		Values: map[device.Key]device.Value{
			device.KeySampleRate:   device.Uint64(active),
			device.KeyLimitSamples: device.Uint64(hwDepth),
			device.KeyHWDepth:      device.Uint64(hwDepth),
			device.KeyStream:       device.Bool(false),
			device.KeyTest:         device.Bool(false),
			device.KeyWaitUpload:   device.Bool(false),
		},
	}
}

// DsoProfile returns a Dso profile with the given time-base range in
// nanoseconds and the demo oscilloscope's rate list.
func DsoProfile(minTimebase, maxTimebase uint64) device.Profile {
	p := device.DsoProfile()
	p.Values[device.KeyMinTimebase] = device.Uint64(minTimebase)
	p.Values[device.KeyMaxTimebase] = device.Uint64(maxTimebase)
	return p
}

// WriteFiles creates files on fs. Keys are paths, values are contents.
func WriteFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()

	for path, content := range files {
		if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}
}

// ReadFile returns the content of path on fs.
func ReadFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}
