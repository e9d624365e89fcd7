package capture

import (
	"context"

	"github.com/Iron-Ham/capctl/internal/device"
	"github.com/Iron-Ham/capctl/internal/errors"
	"github.com/Iron-Ham/capctl/internal/event"
)

// Devices returns the last enumerated device list and the selected index.
func (c *Controller) Devices() ([]device.Info, int) {
	return append([]device.Info(nil), c.devices...), c.selected
}

// RefreshDevices re-enumerates the instruments and re-attaches the selected
// one under its new handle. Any capture in progress is stopped first and
// both selectors are rebuilt from scratch.
func (c *Controller) RefreshDevices() error {
	if c.enum == nil {
		return nil
	}

	if c.state != Idle || c.session.IsRepeating() {
		c.logger.Info("device list changed during capture, stopping")
		c.session.SetRepeating(false)
		c.session.StopCapture()
		c.finish()
	}

	c.updatingDevices = true
	defer func() { c.updatingDevices = false }()

	infos, sel, err := c.enum.ListDevices()
	if err != nil {
		c.logger.Error("get device list failed", "error", err)
		return errors.Wrap(err, "list devices")
	}
	c.devices = infos
	c.selected = sel

	c.rates.Clear()
	c.durations.Clear()

	if sel < 0 || sel >= len(infos) {
		c.agent.Detach()
		c.selected = -1
		c.reloadControls()
		return nil
	}

	if err := c.attach(infos[sel]); err != nil {
		return err
	}
	c.Reload()
	return nil
}

// SelectDevice switches to device i of the last enumeration. A running
// capture is stopped before the switch.
func (c *Controller) SelectDevice(i int) error {
	if c.updatingDevices {
		return nil
	}
	if i < 0 || i >= len(c.devices) {
		return errors.NewValidationError("no such device").
			WithField("device").
			WithValue(i)
	}

	c.session.StopCapture()
	c.finish()

	if err := c.attach(c.devices[i]); err != nil {
		return err
	}
	c.selected = i
	c.rates.Clear()
	c.durations.Clear()
	c.Reload()
	return nil
}

// SelectDeviceByName selects the device with the given name.
func (c *Controller) SelectDeviceByName(name string) error {
	for i, d := range c.devices {
		if d.Name == name {
			return c.SelectDevice(i)
		}
	}
	return errors.NewValidationError("no such device").WithField("device").WithValue(name)
}

func (c *Controller) attach(info device.Info) error {
	drv, err := c.enum.Open(info.Handle)
	if err != nil {
		c.logger.Error("open device failed", "device", info.Name, "error", err)
		c.agent.Detach()
		return err
	}
	c.agent.Attach(info.Handle, drv)
	c.logger.Info("device attached", "device", info.Name, "mode", c.agent.WorkMode().String())
	return nil
}

// SetWorkMode switches the device to mode and rebuilds the selectors.
func (c *Controller) SetWorkMode(mode device.WorkMode) error {
	if c.busy() {
		return errors.NewPreconditionError("change work mode", errors.ErrAlreadySampling).
			WithState(c.state.String())
	}
	if !c.agent.HaveInstance() {
		return errors.NewPreconditionError("change work mode", errors.ErrNoDevice)
	}
	if c.agent.WorkMode() == mode {
		return nil
	}
	if err := c.agent.SetConfig(device.KeyWorkMode, device.Int32(int32(mode))); err != nil {
		return err
	}
	c.rates.Clear()
	c.durations.Clear()
	c.Reload()
	c.session.BroadcastMessage(event.MsgDeviceModeChanged)
	return nil
}

// ApplyDeviceOptions runs the device options editor. When the user accepts,
// the rate list is rebuilt, a pending oscilloscope zero calibration is run
// and the selectors are locked if the device entered test mode. The
// begin and end notifications bracket the whole exchange.
func (c *Controller) ApplyDeviceOptions(ctx context.Context, edit OptionsFunc) error {
	if !c.agent.HaveInstance() {
		c.logger.Info("have no device, can't set device config")
		return errors.NewPreconditionError("configure device", errors.ErrNoDevice)
	}
	if c.busy() {
		return errors.NewPreconditionError("configure device", errors.ErrAlreadySampling).
			WithState(c.state.String())
	}

	c.session.BroadcastMessage(event.MsgBeginDeviceOptions)
	defer c.session.BroadcastMessage(event.MsgEndDeviceOptions)

	accepted, err := edit(c.agent)
	if err != nil {
		return err
	}
	if !accepted {
		return nil
	}

	c.session.BroadcastMessage(event.MsgDeviceOptionsUpdated)
	c.refreshSelectors()

	mode := c.agent.WorkMode()
	if mode == device.Dso && c.agent.Flag(device.KeyZero) {
		return c.ZeroAdjust(ctx)
	}

	if test, ok := c.agent.Bool(device.KeyTest); ok {
		if test {
			c.rates.SyncToDevice()
			c.controls.Duration = false
			c.controls.Rate = false
		} else {
			c.controls.Duration = true
			if mode != device.Dso {
				c.controls.Rate = true
			}
		}
	}
	return nil
}
