package capture

import (
	"time"

	"github.com/Iron-Ham/capctl/internal/device"
	"github.com/Iron-Ham/capctl/internal/event"
)

type fakeChannel struct {
	class   device.ChannelClass
	enabled bool
	commits int
}

func (c *fakeChannel) Class() device.ChannelClass { return c.class }
func (c *fakeChannel) Enabled() bool              { return c.enabled }
func (c *fakeChannel) Enable(on bool)             { c.enabled = on }
func (c *fakeChannel) CommitSettings() error {
	c.commits++
	return nil
}

// fakeSession records every call the controller makes.
type fakeSession struct {
	running   bool
	instant   bool
	repeating bool
	runMode   RunMode
	interval  time.Duration
	startErr  error
	channels  []*fakeChannel
	counts    map[device.ChannelClass]int

	calls    []string
	messages []event.Code
}

func newFakeSession() *fakeSession {
	return &fakeSession{counts: map[device.ChannelClass]int{}}
}

func (s *fakeSession) record(call string) { s.calls = append(s.calls, call) }

func (s *fakeSession) called(call string) int {
	n := 0
	for _, c := range s.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (s *fakeSession) StartCapture(instant bool) error {
	if instant {
		s.record("start-instant")
	} else {
		s.record("start")
	}
	if s.startErr != nil {
		return s.startErr
	}
	s.running = true
	s.instant = instant
	return nil
}

func (s *fakeSession) StopCapture() {
	s.record("stop")
	s.running = false
}

func (s *fakeSession) ExitCapture() {
	s.record("exit")
	s.running = false
	s.repeating = false
}

func (s *fakeSession) IsRunning() bool {
	s.record("is-running")
	return s.running
}

func (s *fakeSession) IsInstant() bool {
	s.record("is-instant")
	return s.instant
}

func (s *fakeSession) IsRepeating() bool {
	s.record("is-repeating")
	return s.repeating
}

func (s *fakeSession) SetRepeating(on bool) {
	s.record("set-repeating")
	s.repeating = on
}

func (s *fakeSession) SetRunMode(mode RunMode) {
	s.record("set-run-mode")
	s.runMode = mode
}

func (s *fakeSession) RunMode() RunMode {
	s.record("run-mode")
	return s.runMode
}

func (s *fakeSession) SetRepeatInterval(d time.Duration) {
	s.record("set-interval")
	s.interval = d
}

func (s *fakeSession) ChannelCount(class device.ChannelClass) int {
	return s.counts[class]
}

func (s *fakeSession) Channels() []Channel {
	out := make([]Channel, len(s.channels))
	for i, ch := range s.channels {
		out[i] = ch
	}
	return out
}

func (s *fakeSession) BroadcastMessage(code event.Code) {
	s.messages = append(s.messages, code)
}

func (s *fakeSession) sawMessage(code event.Code) bool {
	for _, m := range s.messages {
		if m == code {
			return true
		}
	}
	return false
}
