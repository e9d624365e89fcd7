package sampling

import (
	"testing"

	"github.com/Iron-Ham/capctl/internal/device"
	"github.com/Iron-Ham/capctl/internal/errors"
	"github.com/Iron-Ham/capctl/internal/testutil"
)

type commitFixture struct {
	agent     *device.Agent
	dev       *device.Virtual
	rates     *RateSelector
	durations *DurationSelector
	committer *Committer
}

func newCommitFixture(t *testing.T, channels testutil.Channels, profiles ...device.Profile) *commitFixture {
	t.Helper()
	agent, v := testutil.AttachVirtual(t, profiles...)
	f := &commitFixture{
		agent:     agent,
		dev:       v,
		rates:     NewRateSelector(agent, nil),
		durations: NewDurationSelector(agent, channels, nil),
	}
	f.committer = NewCommitter(agent, f.rates, f.durations, channels, nil)
	f.refresh()
	return f
}

func (f *commitFixture) refresh() {
	f.rates.Refresh()
	f.durations.Refresh(f.agent.WorkMode(), f.rates.Rate())
}

func (f *commitFixture) selectRate(t *testing.T, rate uint64) {
	t.Helper()
	for i, e := range f.rates.Entries() {
		if e.Rate == rate {
			if err := f.rates.Select(i); err != nil {
				t.Fatal(err)
			}
			f.durations.Refresh(f.agent.WorkMode(), f.rates.Rate())
			return
		}
	}
	t.Fatalf("rate %d not offered", rate)
}

func scenarioProfile() device.Profile {
	p := testutil.LogicProfile(1_000_000, 1_000, 10_000, 100_000, 1_000_000)
	p.Values[device.KeyRLE] = device.Bool(false)
	return p
}

func TestCommit_WritesChangedValuesOnce(t *testing.T) {
	f := newCommitFixture(t, nil, scenarioProfile())
	f.selectRate(t, 1_000_000)
	f.dev.ResetWrites()

	if err := f.committer.Commit(); err != nil {
		t.Fatalf("Commit() = %v", err)
	}

	writes := f.dev.Writes()
	want := []device.Write{
		{Key: device.KeySampleRate, Value: device.Uint64(1_000_000)},
		{Key: device.KeyLimitSamples, Value: device.Uint64(SampleCount(1, 1_000_000))},
	}
	if len(writes) != len(want) {
		t.Fatalf("writes = %v, want %v", writes, want)
	}
	for i := range want {
		if writes[i].Key != want[i].Key || !writes[i].Value.Equal(want[i].Value) {
			t.Errorf("write %d = %v, want %v", i, writes[i], want[i])
		}
	}

	f.dev.ResetWrites()
	if err := f.committer.Commit(); err != nil {
		t.Fatalf("second Commit() = %v", err)
	}
	if w := f.dev.Writes(); len(w) != 0 {
		t.Errorf("second Commit wrote %v, want nothing", w)
	}
}

func TestCommit_RLEFlag(t *testing.T) {
	f := newCommitFixture(t, testutil.Channels{device.ChannelLogic: 16}, device.LogicProfile())
	if err := f.durations.Select(0); err != nil {
		t.Fatal(err)
	}
	first, _ := f.durations.Selected()
	if !first.RLE {
		t.Fatalf("longest demo duration %q should need RLE", first.Label)
	}

	f.dev.ResetWrites()
	if err := f.committer.Commit(); err != nil {
		t.Fatalf("Commit() = %v", err)
	}
	if w := f.dev.WritesTo(device.KeyRLE); len(w) != 1 || !w[0].Value.Equal(device.Bool(true)) {
		t.Errorf("RLE writes = %v, want one rle=true", w)
	}

	f.dev.ResetWrites()
	_ = f.committer.Commit()
	if w := f.dev.Writes(); len(w) != 0 {
		t.Errorf("repeat Commit wrote %v", w)
	}

	if err := f.durations.Select(f.durations.Len() - 1); err != nil {
		t.Fatal(err)
	}
	_ = f.committer.Commit()
	if w := f.dev.WritesTo(device.KeyRLE); len(w) != 1 || !w[0].Value.Equal(device.Bool(false)) {
		t.Errorf("RLE writes = %v, want one rle=false", w)
	}
}

func TestCommit_AbsentRLEKeyNeedsNoWrite(t *testing.T) {
	p := scenarioProfile()
	delete(p.Values, device.KeyRLE)
	f := newCommitFixture(t, nil, p)
	f.dev.ResetWrites()

	if err := f.committer.Commit(); err != nil {
		t.Fatalf("Commit() = %v", err)
	}
	if w := f.dev.WritesTo(device.KeyRLE); len(w) != 0 {
		t.Errorf("wrote %v to a device without RLE", w)
	}
}

func TestCommit_TestModeOnlyResyncs(t *testing.T) {
	f := newCommitFixture(t, nil, scenarioProfile())
	f.selectRate(t, 1_000_000)
	f.dev.Put(device.KeyTest, device.Bool(true))
	f.dev.ResetWrites()

	if err := f.committer.Commit(); err != nil {
		t.Fatalf("Commit() = %v", err)
	}
	if w := f.dev.Writes(); len(w) != 0 {
		t.Errorf("test mode wrote %v", w)
	}
	if f.rates.Rate() != 1_000 {
		t.Errorf("rate selector = %d, want the device's 1000", f.rates.Rate())
	}
}

func TestCommit_DsoWritesRateOnly(t *testing.T) {
	f := newCommitFixture(t, nil, testutil.DsoProfile(10, 1_000_000_000))
	f.selectRate(t, 1_000_000)
	f.dev.ResetWrites()

	if err := f.committer.Commit(); err != nil {
		t.Fatalf("Commit() = %v", err)
	}
	writes := f.dev.Writes()
	if len(writes) != 1 || writes[0].Key != device.KeySampleRate {
		t.Errorf("writes = %v, want only samplerate", writes)
	}
}

func TestCommit_FailedWriteKeepsGoing(t *testing.T) {
	f := newCommitFixture(t, nil, scenarioProfile())
	f.selectRate(t, 1_000_000)
	f.dev.FailSet(device.KeySampleRate, errors.ErrDeviceBusy)
	f.dev.ResetWrites()

	err := f.committer.Commit()
	if !errors.Is(err, errors.ErrDeviceBusy) {
		t.Fatalf("Commit() = %v, want ErrDeviceBusy", err)
	}
	if f.agent.SampleRate() != 1_000 {
		t.Errorf("device rate changed to %d after a rejected write", f.agent.SampleRate())
	}
	if w := f.dev.WritesTo(device.KeyLimitSamples); len(w) != 1 {
		t.Errorf("limit writes = %v, want the limit still committed", w)
	}
	if f.rates.Rate() != 1_000_000 {
		t.Error("the rate selection should not be rolled back")
	}
}

func TestCommit_NoDevice(t *testing.T) {
	agent := device.NewAgent(nil)
	c := NewCommitter(agent, NewRateSelector(agent, nil), NewDurationSelector(agent, nil, nil), nil, nil)
	if err := c.Commit(); err != nil {
		t.Errorf("Commit() without device = %v, want nil", err)
	}
}

func TestCommitHorizontalResolution(t *testing.T) {
	f := newCommitFixture(t, testutil.Channels{device.ChannelDso: 2}, testutil.DsoProfile(10, 1_000_000_000))
	i := f.durations.Find(1_000_000)
	if i < 0 {
		t.Fatal("1 ms / div missing from the ladder")
	}
	f.durations.SetIndex(i)
	f.dev.ResetWrites()

	got, err := f.committer.CommitHorizontalResolution()
	if err != nil {
		t.Fatalf("CommitHorizontalResolution() error = %v", err)
	}
	if got != 0.001 {
		t.Errorf("CommitHorizontalResolution() = %v, want 0.001", got)
	}

	// 10000 samples across 10 ms gives 1 MHz, below 1 GHz shared by 2 channels.
	want := []device.Write{
		{Key: device.KeySampleRate, Value: device.Uint64(1_000_000)},
		{Key: device.KeyTimebase, Value: device.Uint64(1_000_000)},
	}
	writes := f.dev.Writes()
	if len(writes) != len(want) {
		t.Fatalf("writes = %v, want %v", writes, want)
	}
	for i := range want {
		if writes[i].Key != want[i].Key || !writes[i].Value.Equal(want[i].Value) {
			t.Errorf("write %d = %v, want %v", i, writes[i], want[i])
		}
	}
}

func TestCommitHorizontalResolution_MissingMaxRate(t *testing.T) {
	p := testutil.DsoProfile(10, 1_000_000_000)
	delete(p.Values, device.KeyMaxDSOSampleRate)
	f := newCommitFixture(t, testutil.Channels{device.ChannelDso: 2}, p)
	f.dev.ResetWrites()

	got, err := f.committer.CommitHorizontalResolution()
	if got != FailedResolution {
		t.Errorf("CommitHorizontalResolution() = %v, want %v", got, FailedResolution)
	}
	if !errors.Is(err, errors.ErrProtocolInvariant) {
		t.Errorf("error = %v, want ErrProtocolInvariant", err)
	}
	if w := f.dev.Writes(); len(w) != 0 {
		t.Errorf("wrote %v despite the missing max rate", w)
	}
}

func TestCommitHorizontalResolution_NoSelection(t *testing.T) {
	agent, _ := testutil.AttachVirtual(t, testutil.DsoProfile(10, 1_000_000_000))
	c := NewCommitter(agent, NewRateSelector(agent, nil), NewDurationSelector(agent, nil, nil), nil, nil)

	got, err := c.CommitHorizontalResolution()
	if got != FailedResolution || !errors.Is(err, errors.ErrNoSelection) {
		t.Errorf("CommitHorizontalResolution() = %v, %v", got, err)
	}
}

func TestDsoRate(t *testing.T) {
	tests := []struct {
		name       string
		limit      uint64
		timebaseNs uint64
		maxRate    uint64
		channels   int
		want       uint64
	}{
		{"limited by depth", 10_000, 1_000_000, 1_000_000_000, 2, 1_000_000},
		{"limited by max rate", 10_000, 10, 1_000_000_000, 2, 500_000_000},
		{"zero channels counts as one", 10_000, 10, 1_000_000_000, 0, 1_000_000_000},
		{"zero time base", 10_000, 0, 1_000_000_000, 4, 250_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DsoRate(tt.limit, tt.timebaseNs, tt.maxRate, tt.channels); got != tt.want {
				t.Errorf("DsoRate() = %d, want %d", got, tt.want)
			}
		})
	}
}
