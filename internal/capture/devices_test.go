package capture

import (
	"context"
	"testing"

	"github.com/Iron-Ham/capctl/internal/device"
	"github.com/Iron-Ham/capctl/internal/errors"
	"github.com/Iron-Ham/capctl/internal/event"
	"github.com/Iron-Ham/capctl/internal/testutil"
)

func newRegistryController(t *testing.T, drivers ...device.Driver) (*Controller, *fakeSession) {
	t.Helper()
	sess := newFakeSession()
	sess.counts[device.ChannelLogic] = 16
	sess.counts[device.ChannelDso] = 2
	ctl := NewController(device.NewAgent(nil), sess, WithEnumerator(device.NewRegistry(drivers...)))
	return ctl, sess
}

func TestController_RefreshDevices(t *testing.T) {
	ctl, _ := newRegistryController(t,
		device.NewVirtual("alpha", logicProfile()),
		device.NewDemo("beta"),
	)

	if err := ctl.RefreshDevices(); err != nil {
		t.Fatalf("RefreshDevices() = %v", err)
	}
	infos, sel := ctl.Devices()
	if len(infos) != 2 || sel != 0 {
		t.Fatalf("Devices() = %v, %d", infos, sel)
	}
	if ctl.Agent().Name() != "alpha" || ctl.Agent().Handle() != infos[0].Handle {
		t.Errorf("attached %q handle %#x, want alpha %#x", ctl.Agent().Name(), ctl.Agent().Handle(), infos[0].Handle)
	}
	if ctl.Rates().Len() != 4 || ctl.Durations().Len() == 0 {
		t.Errorf("selectors not rebuilt: %d rates, %d durations", ctl.Rates().Len(), ctl.Durations().Len())
	}

	old := infos[0].Handle
	ctl.OnMessage(event.MsgDeviceListUpdate)
	if ctl.Agent().Handle() == old {
		t.Error("handle from the previous enumeration still attached")
	}
}

func TestController_RefreshDevicesStopsCapture(t *testing.T) {
	ctl, sess := newRegistryController(t, device.NewVirtual("alpha", logicProfile()))
	if err := ctl.RefreshDevices(); err != nil {
		t.Fatal(err)
	}
	if err := ctl.Start(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	if err := ctl.RefreshDevices(); err != nil {
		t.Fatalf("RefreshDevices() = %v", err)
	}
	if ctl.State() != Idle {
		t.Errorf("State() = %v, want idle", ctl.State())
	}
	if sess.called("stop") != 1 {
		t.Errorf("stop calls = %d, want 1", sess.called("stop"))
	}
}

func TestController_RefreshDevicesEmpty(t *testing.T) {
	ctl, _ := newRegistryController(t)

	if err := ctl.RefreshDevices(); err != nil {
		t.Fatalf("RefreshDevices() = %v", err)
	}
	if _, sel := ctl.Devices(); sel != -1 {
		t.Errorf("selected = %d, want -1", sel)
	}
	if ctl.Agent().HaveInstance() {
		t.Error("agent should be detached")
	}
	if err := ctl.Start(context.Background(), false); !errors.Is(err, errors.ErrNoDevice) {
		t.Errorf("Start() = %v, want ErrNoDevice", err)
	}
}

func TestController_SelectDevice(t *testing.T) {
	ctl, sess := newRegistryController(t,
		device.NewVirtual("alpha", logicProfile()),
		device.NewDemo("beta"),
	)
	if err := ctl.RefreshDevices(); err != nil {
		t.Fatal(err)
	}

	if err := ctl.SelectDeviceByName("beta"); err != nil {
		t.Fatalf("SelectDeviceByName() = %v", err)
	}
	if ctl.Agent().Name() != "beta" {
		t.Errorf("attached %q, want beta", ctl.Agent().Name())
	}
	if _, sel := ctl.Devices(); sel != 1 {
		t.Errorf("selected = %d, want 1", sel)
	}
	if sess.called("stop") != 1 {
		t.Error("capture should be stopped before switching devices")
	}
	if ctl.Rates().Len() != len(device.LogicProfile().Rates) {
		t.Errorf("rates = %d, want the demo list", ctl.Rates().Len())
	}

	if err := ctl.SelectDevice(5); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("SelectDevice(5) = %v, want ErrInvalidInput", err)
	}
}

func TestController_SetWorkMode(t *testing.T) {
	ctl, sess := newRegistryController(t, device.NewDemo("demo"))
	if err := ctl.RefreshDevices(); err != nil {
		t.Fatal(err)
	}

	if err := ctl.SetWorkMode(device.Dso); err != nil {
		t.Fatalf("SetWorkMode() = %v", err)
	}
	if ctl.Agent().WorkMode() != device.Dso {
		t.Errorf("work mode = %v, want dso", ctl.Agent().WorkMode())
	}
	if !sess.sawMessage(event.MsgDeviceModeChanged) {
		t.Error("mode change not broadcast")
	}
	labels := ctl.Durations().Entries()
	if len(labels) == 0 || labels[0].Label != "10 s / div" {
		t.Errorf("dso ladder starts at %v", labels)
	}

	c := ctl.Controls()
	if c.Rate || !c.Duration || c.InstantLabel != SingleLabel || c.ModeVisible {
		t.Errorf("dso controls = %+v", c)
	}
}

func TestController_ApplyDeviceOptions(t *testing.T) {
	ctx := context.Background()

	t.Run("no device", func(t *testing.T) {
		ctl := NewController(device.NewAgent(nil), newFakeSession())
		err := ctl.ApplyDeviceOptions(ctx, func(*device.Agent) (bool, error) { return true, nil })
		if !errors.Is(err, errors.ErrNoDevice) {
			t.Errorf("ApplyDeviceOptions() = %v, want ErrNoDevice", err)
		}
	})

	t.Run("while sampling", func(t *testing.T) {
		agent, _ := testutil.AttachVirtual(t, testutil.DsoProfile(10, 1_000_000_000))
		sess := newFakeSession()
		ctl := NewController(agent, sess)
		ctl.Reload()
		if err := ctl.Start(ctx, false); err != nil {
			t.Fatal(err)
		}
		sess.messages = nil

		edited := false
		err := ctl.ApplyDeviceOptions(ctx, func(a *device.Agent) (bool, error) {
			edited = true
			return true, a.SetConfig(device.KeyZero, device.Bool(true))
		})
		if !errors.Is(err, errors.ErrAlreadySampling) {
			t.Fatalf("ApplyDeviceOptions() = %v, want ErrAlreadySampling", err)
		}
		if edited || len(sess.messages) != 0 {
			t.Errorf("editor ran (%v) or messages sent %v while sampling", edited, sess.messages)
		}
		if ctl.State() != Sampling || !sess.running {
			t.Errorf("state %v, session running %v, want the capture untouched", ctl.State(), sess.running)
		}
	})

	t.Run("declined", func(t *testing.T) {
		ctl, sess, _ := newLogicController(t)
		sess.messages = nil
		err := ctl.ApplyDeviceOptions(ctx, func(*device.Agent) (bool, error) { return false, nil })
		if err != nil {
			t.Fatal(err)
		}
		want := []event.Code{event.MsgBeginDeviceOptions, event.MsgEndDeviceOptions}
		if len(sess.messages) != 2 || sess.messages[0] != want[0] || sess.messages[1] != want[1] {
			t.Errorf("messages = %v, want %v", sess.messages, want)
		}
	})

	t.Run("test mode locks selectors", func(t *testing.T) {
		ctl, sess, _ := newLogicController(t)
		sess.messages = nil
		err := ctl.ApplyDeviceOptions(ctx, func(a *device.Agent) (bool, error) {
			return true, a.SetConfig(device.KeyTest, device.Bool(true))
		})
		if err != nil {
			t.Fatal(err)
		}
		if sess.messages[0] != event.MsgBeginDeviceOptions || sess.messages[len(sess.messages)-1] != event.MsgEndDeviceOptions {
			t.Errorf("messages = %v, want begin ... end", sess.messages)
		}
		if !sess.sawMessage(event.MsgDeviceOptionsUpdated) {
			t.Error("options update not broadcast")
		}
		if c := ctl.Controls(); c.Rate || c.Duration {
			t.Errorf("controls = %+v, want rate and duration locked", c)
		}
	})

	t.Run("dso zero runs calibration", func(t *testing.T) {
		agent, _ := testutil.AttachVirtual(t, testutil.DsoProfile(10, 1_000_000_000))
		sess := newFakeSession()
		calibrated := false
		ctl := NewController(agent, sess, WithWaiter(WaitFunc(func(context.Context, *device.Agent) error {
			calibrated = true
			return nil
		})))
		ctl.Reload()

		err := ctl.ApplyDeviceOptions(ctx, func(a *device.Agent) (bool, error) {
			return true, a.SetConfig(device.KeyZero, device.Bool(true))
		})
		if err != nil {
			t.Fatal(err)
		}
		if !calibrated {
			t.Error("zero calibration did not run")
		}
		if sess.messages[len(sess.messages)-1] != event.MsgEndDeviceOptions {
			t.Error("end of device options not broadcast after calibration")
		}
	})
}

func TestController_ControlVisibility(t *testing.T) {
	tests := []struct {
		name        string
		driver      device.Driver
		wantMode    bool
		wantInstant bool
		wantRate    bool
		wantDur     bool
	}{
		{"logic", device.NewVirtual("logic", device.LogicProfile()), true, true, true, true},
		{"analog", device.NewVirtual("analog", device.AnalogProfile()), false, false, true, true},
		{"dso", device.NewVirtual("dso", device.DsoProfile()), false, true, false, true},
		{"virtual session", device.NewVirtual(device.VirtualSessionName, device.LogicProfile()), false, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := device.NewAgent(nil)
			agent.Attach(1, tt.driver)
			ctl := NewController(agent, newFakeSession())
			ctl.Reload()

			c := ctl.Controls()
			if c.ModeVisible != tt.wantMode || c.InstantVisible != tt.wantInstant {
				t.Errorf("visible mode %v instant %v", c.ModeVisible, c.InstantVisible)
			}
			if c.Rate != tt.wantRate || c.Duration != tt.wantDur {
				t.Errorf("enabled rate %v duration %v", c.Rate, c.Duration)
			}
		})
	}
}
