package session

import (
	"testing"
	"time"

	"github.com/Iron-Ham/capctl/internal/capture"
	"github.com/Iron-Ham/capctl/internal/device"
	"github.com/Iron-Ham/capctl/internal/errors"
	"github.com/Iron-Ham/capctl/internal/event"
	"github.com/Iron-Ham/capctl/internal/testutil"
)

var _ capture.Session = (*Simulated)(nil)

func drain(mb *event.Mailbox) []event.Event {
	var out []event.Event
	for {
		select {
		case e := <-mb.C():
			out = append(out, e)
		default:
			return out
		}
	}
}

func codes(events []event.Event) []event.Code {
	var out []event.Code
	for _, e := range events {
		if m, ok := e.(event.MessageEvent); ok {
			out = append(out, m.Code)
		}
	}
	return out
}

func TestSimulated_SingleAcquisition(t *testing.T) {
	agent, _ := testutil.AttachVirtual(t, device.LogicProfile())
	mb := event.NewMailbox(0)
	s := New(agent, nil, mb, WithSpeed(0), WithProgressSteps(4))

	if err := s.StartCapture(false); err != nil {
		t.Fatalf("StartCapture() = %v", err)
	}
	s.Wait()

	if s.IsRunning() || s.IsRepeating() {
		t.Error("session still active after a single acquisition")
	}
	if s.RunID() == "" {
		t.Error("acquisition has no run id")
	}

	events := drain(mb)
	got := codes(events)
	if len(got) != 2 || got[0] != event.MsgCollectStart || got[1] != event.MsgCollectEnd {
		t.Errorf("message codes = %v, want collect start then end", got)
	}

	var progress []event.CaptureProgressEvent
	for _, e := range events {
		if p, ok := e.(event.CaptureProgressEvent); ok {
			progress = append(progress, p)
		}
	}
	if len(progress) != 4 {
		t.Fatalf("progress events = %d, want 4", len(progress))
	}
	last := progress[len(progress)-1]
	if last.Samples != last.Total || last.Total != agent.SampleLimit() || last.RunID != s.RunID() {
		t.Errorf("last progress = %+v", last)
	}
}

func TestSimulated_StartWhileRunning(t *testing.T) {
	agent, _ := testutil.AttachVirtual(t, device.LogicProfile())
	mb := event.NewMailbox(0)
	s := New(agent, nil, mb)

	if err := s.StartCapture(false); err != nil {
		t.Fatal(err)
	}
	if err := s.StartCapture(true); !errors.Is(err, errors.ErrAlreadySampling) {
		t.Errorf("second StartCapture() = %v, want ErrAlreadySampling", err)
	}

	s.StopCapture()
	if s.IsRunning() {
		t.Error("IsRunning() after StopCapture")
	}
	if got := codes(drain(mb)); len(got) > 0 && got[len(got)-1] == event.MsgCollectEnd {
		t.Error("a stopped acquisition should not report completion")
	}
}

func TestSimulated_NeedsCommittedSettings(t *testing.T) {
	s := New(device.NewAgent(nil), nil, event.NewMailbox(0))
	if err := s.StartCapture(false); !errors.Is(err, errors.ErrProtocolInvariant) {
		t.Errorf("StartCapture() without device = %v, want ErrProtocolInvariant", err)
	}
}

func TestSimulated_CalibrationClearsZero(t *testing.T) {
	agent, v := testutil.AttachVirtual(t, device.DsoProfile())
	v.Put(device.KeyZero, device.Bool(true))
	s := New(agent, nil, event.NewMailbox(0), WithSpeed(0))

	if err := s.StartCapture(true); err != nil {
		t.Fatal(err)
	}
	s.Wait()

	if agent.Flag(device.KeyZero) {
		t.Error("zero flag still set after the calibration run")
	}
}

func TestSimulated_Repetitive(t *testing.T) {
	agent, _ := testutil.AttachVirtual(t, device.LogicProfile())
	mb := event.NewMailbox(0)
	s := New(agent, nil, mb, WithSpeed(0), WithRepeatInterval(time.Millisecond))
	s.SetRunMode(capture.Repetitive)

	if err := s.StartCapture(false); err != nil {
		t.Fatal(err)
	}
	if !s.IsRepeating() {
		t.Fatal("repetitive start should set the repeat flag")
	}

	ends := 0
	timeout := time.After(5 * time.Second)
	for ends < 2 {
		select {
		case e := <-mb.C():
			if m, ok := e.(event.MessageEvent); ok && m.Code == event.MsgCollectEnd {
				ends++
			}
		case <-timeout:
			t.Fatalf("saw %d acquisitions before timeout", ends)
		}
	}

	s.ExitCapture()
	if s.IsRepeating() || s.IsRunning() {
		t.Error("ExitCapture left the session active")
	}
}

func TestSimulated_Channels(t *testing.T) {
	agent, _ := testutil.AttachVirtual(t, device.LogicProfile(), device.DsoProfile())
	s := New(agent, nil, event.NewMailbox(0))

	if got := s.ChannelCount(device.ChannelLogic); got != 16 {
		t.Fatalf("logic channels = %d, want 16", got)
	}

	chans := s.Channels()
	chans[0].Enable(false)
	if got := s.ChannelCount(device.ChannelLogic); got != 15 {
		t.Errorf("enabled logic channels = %d, want 15", got)
	}
	if err := chans[0].CommitSettings(); err != nil {
		t.Fatal(err)
	}
	if !chans[0].Enabled() {
		t.Error("CommitSettings should restore the saved enable state")
	}

	if err := agent.SetConfig(device.KeyWorkMode, device.Int32(int32(device.Dso))); err != nil {
		t.Fatal(err)
	}
	dso := s.Channels()
	if len(dso) != 2 || dso[0].Class() != device.ChannelDso {
		t.Errorf("dso channels = %d", len(dso))
	}
	if name := dso[1].(*Channel).Name(); name != "CH2" {
		t.Errorf("Name() = %q, want CH2", name)
	}
}

func TestSimulated_BroadcastMessage(t *testing.T) {
	bus := event.NewBus()
	var got []event.Code
	bus.AddListener(event.ListenerFunc(func(c event.Code) { got = append(got, c) }))

	s := New(device.NewAgent(nil), bus, event.NewMailbox(0))
	s.BroadcastMessage(event.MsgDeviceDurationUpdate)

	if len(got) != 1 || got[0] != event.MsgDeviceDurationUpdate {
		t.Errorf("listener saw %v", got)
	}
}

func TestSimulated_SettingsRoundTrip(t *testing.T) {
	s := New(device.NewAgent(nil), nil, event.NewMailbox(0))
	if s.RepeatInterval() != capture.DefaultRepeatInterval {
		t.Errorf("RepeatInterval() = %v", s.RepeatInterval())
	}
	s.SetRepeatInterval(3 * time.Second)
	s.SetRunMode(capture.Repetitive)
	if s.RepeatInterval() != 3*time.Second || s.RunMode() != capture.Repetitive {
		t.Error("settings not kept")
	}
}

// waitCaptureError reads mb until a CaptureErrorEvent arrives.
func waitCaptureError(t *testing.T, mb *event.Mailbox) event.CaptureErrorEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-mb.C():
			if ce, ok := e.(event.CaptureErrorEvent); ok {
				return ce
			}
		case <-timeout:
			t.Fatal("no capture error before timeout")
		}
	}
}

func TestSimulated_RepeatFailsWhenSettingsUnreadable(t *testing.T) {
	agent, v := testutil.AttachVirtual(t, device.LogicProfile())
	mb := event.NewMailbox(0)
	s := New(agent, nil, mb, WithSpeed(0), WithRepeatInterval(100*time.Millisecond))
	s.SetRunMode(capture.Repetitive)

	if err := s.StartCapture(false); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(5 * time.Second)
	for ended := false; !ended; {
		select {
		case e := <-mb.C():
			if m, ok := e.(event.MessageEvent); ok && m.Code == event.MsgCollectEnd {
				ended = true
			}
		case <-timeout:
			t.Fatal("first acquisition did not finish")
		}
	}
	v.FailGet(device.KeySampleRate, errors.ErrDeviceIO)

	ce := waitCaptureError(t, mb)
	if !errors.Is(ce.Err, errors.ErrDeviceIO) {
		t.Errorf("capture error = %v, want ErrDeviceIO", ce.Err)
	}
	if ce.RunID == "" {
		t.Error("capture error has no run id")
	}

	s.Wait()
	if s.IsRunning() || s.IsRepeating() {
		t.Error("session still active after a failed repeat")
	}
}

func TestSimulated_WorkerPanicReported(t *testing.T) {
	agent, _ := testutil.AttachVirtual(t, device.LogicProfile())
	mb := event.NewMailbox(0)
	posts := 0
	mb.OnPost(func() {
		posts++
		if posts == 2 {
			panic("progress sink failed")
		}
	})
	s := New(agent, nil, mb, WithSpeed(0), WithProgressSteps(4))

	if err := s.StartCapture(false); err != nil {
		t.Fatal(err)
	}
	s.Wait()

	ce := waitCaptureError(t, mb)
	if ce.Err == nil || ce.RunID != s.RunID() {
		t.Errorf("capture error = %+v, want an error for run %s", ce, s.RunID())
	}
	if errors.IsRetryable(ce.Err) {
		t.Error("an aborted worker should not be reported as retryable")
	}
	if s.IsRunning() || s.IsRepeating() {
		t.Error("session still active after a worker panic")
	}
	if err := s.StartCapture(false); err != nil {
		t.Errorf("StartCapture() after a panic = %v", err)
	}
	s.Wait()
}
