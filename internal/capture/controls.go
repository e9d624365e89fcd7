package capture

import "github.com/Iron-Ham/capctl/internal/device"

// Controls reports which sampling bar controls are usable. Front ends
// render from it; they never decide enablement themselves.
type Controls struct {
	RunStop        bool
	Instant        bool
	Mode           bool
	Configure      bool
	DeviceSelector bool
	Rate           bool
	Duration       bool

	ModeVisible    bool
	InstantVisible bool
	InstantLabel   string

	// Sampling selects the stop glyph on whichever button started the capture.
	Sampling bool
	// InstantRun is set when the running capture was started by Instant.
	InstantRun bool
	RunMode    RunMode
}

// Instant button labels.
const (
	InstantLabel = "Instant"
	SingleLabel  = "Single"
)

func defaultControls() Controls {
	return Controls{
		RunStop:        true,
		Instant:        true,
		Mode:           true,
		Configure:      true,
		DeviceSelector: true,
		Rate:           true,
		Duration:       true,
		ModeVisible:    true,
		InstantVisible: true,
		InstantLabel:   InstantLabel,
	}
}

// setSampling updates the buttons for a capture starting or ending.
func (c *Controller) setSampling(sampling bool) {
	ctl := &c.controls
	ctl.Sampling = sampling
	ctl.InstantRun = c.session.IsInstant()
	ctl.RunMode = c.session.RunMode()

	if !sampling {
		ctl.RunStop = true
		ctl.Instant = true
	} else if ctl.InstantRun {
		ctl.Instant = true
	} else {
		ctl.RunStop = true
	}

	ctl.Mode = !sampling
	ctl.Configure = !sampling
	ctl.DeviceSelector = !sampling
}

func (c *Controller) enableRunStop(on bool) { c.controls.RunStop = on }

func (c *Controller) enableInstant(on bool) { c.controls.Instant = on }

// enableToggle sets the rate and duration selectors. Test mode, oscilloscope
// rates and virtual sessions stay locked regardless of enable.
func (c *Controller) enableToggle(enable bool) {
	ctl := &c.controls
	test := c.agent.HaveInstance() && c.agent.Flag(device.KeyTest)

	if test {
		ctl.Duration = false
		ctl.Rate = false
	} else {
		ctl.Duration = enable
		ctl.Rate = enable && c.agent.WorkMode() != device.Dso
	}

	if c.agent.IsVirtualSession() {
		ctl.Duration = false
		ctl.Rate = false
	}
}

// reloadControls applies the per-mode visibility rules.
func (c *Controller) reloadControls() {
	ctl := &c.controls
	ctl.InstantLabel = InstantLabel
	ctl.RunMode = c.session.RunMode()

	switch c.agent.WorkMode() {
	case device.Logic:
		ctl.ModeVisible = !c.agent.IsVirtualSession()
		ctl.InstantVisible = true
	case device.Analog:
		ctl.ModeVisible = false
		ctl.InstantVisible = false
	case device.Dso:
		ctl.ModeVisible = false
		ctl.InstantVisible = true
		ctl.InstantLabel = SingleLabel
	}
	c.enableToggle(true)
}
