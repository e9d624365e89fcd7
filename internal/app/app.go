// Package app assembles a running capctl instance from its configuration:
// the device registry and agent, the simulated capture session, the event
// bus and mailbox, the capture controller, user preferences and the device
// lock. Front ends (the CLI commands and the TUI) drive an App from a single
// control goroutine.
package app

import (
	"context"
	"strings"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/capctl/internal/capture"
	"github.com/Iron-Ham/capctl/internal/config"
	"github.com/Iron-Ham/capctl/internal/device"
	"github.com/Iron-Ham/capctl/internal/errors"
	"github.com/Iron-Ham/capctl/internal/event"
	"github.com/Iron-Ham/capctl/internal/logging"
	"github.com/Iron-Ham/capctl/internal/prefs"
	"github.com/Iron-Ham/capctl/internal/session"
)

// DemoDeviceName is the name of the built-in virtual instrument.
const DemoDeviceName = "demo"

// Option configures an App.
type Option func(*options)

type options struct {
	fs       afero.Fs
	logger   *logging.Logger
	drivers  []device.Driver
	prompter capture.Prompter
}

// WithFs sets the file system used for preferences, locks and logs.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithLogger overrides the logger built from the logging config.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDrivers adds instruments to the device registry.
func WithDrivers(d ...device.Driver) Option {
	return func(o *options) { o.drivers = append(o.drivers, d...) }
}

// WithPrompter replaces the config-driven calibration prompter.
func WithPrompter(p capture.Prompter) Option {
	return func(o *options) { o.prompter = p }
}

// App is one assembled controller instance. It is not safe for concurrent
// use; see the capture package for the threading rules.
type App struct {
	cfg    *config.Config
	fs     afero.Fs
	logger *logging.Logger

	Registry   *device.Registry
	Agent      *device.Agent
	Bus        *event.Bus
	Mailbox    *event.Mailbox
	Session    *session.Simulated
	Controller *capture.Controller
	Prefs      *prefs.Store

	autoCalibrate bool
	lock          *session.Lock
}

// New builds an App from cfg. It loads preferences but does not enumerate
// devices; call Open for that.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fs == nil {
		o.fs = afero.NewOsFs()
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = newLogger(o.fs, cfg)
		if err != nil {
			return nil, err
		}
	}

	store := prefs.NewStore(o.fs, cfg.Paths.ResolvePrefsFile(), logger)
	if err := store.Load(); err != nil {
		logger.Close()
		return nil, err
	}

	drivers := o.drivers
	if cfg.Device.Demo {
		drivers = append(drivers, device.NewDemo(DemoDeviceName))
	}

	a := &App{
		cfg:           cfg,
		fs:            o.fs,
		logger:        logger,
		Registry:      device.NewRegistry(drivers...),
		Agent:         device.NewAgent(logger),
		Bus:           event.NewBus(event.WithLogger(logger)),
		Mailbox:       event.NewMailbox(0),
		Prefs:         store,
		autoCalibrate: cfg.Sampling.AutoCalibrate,
	}

	speed := session.DefaultSpeed
	if cfg.Sampling.SpeedFactor > 0 {
		speed = 1 / cfg.Sampling.SpeedFactor
	}
	a.Session = session.New(a.Agent, a.Bus, a.Mailbox,
		session.WithLogger(logger),
		session.WithSpeed(speed),
		session.WithProgressSteps(cfg.Sampling.ProgressSteps),
		session.WithRepeatInterval(cfg.Sampling.RepeatInterval()),
	)

	prompter := o.prompter
	if prompter == nil {
		prompter = capture.PromptFunc(func(context.Context, string) bool { return a.autoCalibrate })
	}

	a.Controller = capture.NewController(a.Agent, a.Session,
		capture.WithEnumerator(a.Registry),
		capture.WithPrompter(prompter),
		capture.WithWaiter(capture.NewPollWaiter(cfg.Sampling.CalibrationTimeout())),
		capture.WithBus(a.Bus),
		capture.WithLogger(logger),
	)
	a.Bus.AddListener(a.Controller)
	a.Bus.SubscribeAll(func(e event.Event) {
		if msg, ok := e.(event.MessageEvent); ok {
			logger.Debug("message delivered", "code", msg.Code.String())
			return
		}
		logger.Debug("event delivered", "type", e.EventType())
	})

	return a, nil
}

func newLogger(fs afero.Fs, cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	return logging.NewRotatingLogger(fs, cfg.Paths.ResolveLogDir(), strings.ToUpper(cfg.Logging.Level),
		logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		})
}

// Config returns the active configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Logger returns the application logger.
func (a *App) Logger() *logging.Logger { return a.logger }

// Open enumerates devices, selects the configured (or last used) one,
// takes its lock and applies the configured work mode and run mode.
func (a *App) Open() error {
	if err := a.Controller.RefreshDevices(); err != nil {
		return err
	}

	if name := a.cfg.Device.Default; name != "" {
		if err := a.Controller.SelectDeviceByName(name); err != nil {
			return err
		}
	} else if last := a.Prefs.Get().LastDevice; last != "" {
		if err := a.Controller.SelectDeviceByName(last); err != nil {
			a.logger.Info("last used device not present", "device", last)
		}
	}

	if !a.Agent.HaveInstance() {
		return errors.NewPreconditionError("open device", errors.ErrNoDevice)
	}
	if err := a.lockDevice(a.Agent.Name()); err != nil {
		return err
	}

	if m := a.cfg.Device.WorkMode; m != "" {
		mode, _ := device.ParseWorkMode(m)
		if mode != a.Agent.WorkMode() {
			if err := a.Controller.SetWorkMode(mode); err != nil {
				return err
			}
		}
	}

	mode, _ := capture.ParseRunMode(a.cfg.Sampling.RunMode)
	if err := a.Controller.SetRunMode(mode, a.cfg.Sampling.RepeatInterval()); err != nil {
		return err
	}
	return nil
}

// SelectDevice switches to the named device, moving the lock with it.
func (a *App) SelectDevice(name string) error {
	if err := a.Controller.SelectDeviceByName(name); err != nil {
		return err
	}
	return a.lockDevice(a.Agent.Name())
}

// NextDevice selects the device after the current one in the list.
func (a *App) NextDevice() error {
	devices, sel := a.Controller.Devices()
	if len(devices) == 0 {
		return errors.NewPreconditionError("select device", errors.ErrNoDevice)
	}
	return a.SelectDevice(devices[(sel+1)%len(devices)].Name)
}

// Rescan re-enumerates devices and locks whichever one ends up attached.
func (a *App) Rescan() error {
	if err := a.Controller.RefreshDevices(); err != nil {
		return err
	}
	if !a.Agent.HaveInstance() {
		a.releaseLock()
		return nil
	}
	return a.lockDevice(a.Agent.Name())
}

// NextWorkMode switches the device to the next work mode it supports,
// in the order logic, analog, dso.
func (a *App) NextWorkMode() (device.WorkMode, error) {
	cur := a.Agent.WorkMode()
	modes := []device.WorkMode{device.Logic, device.Analog, device.Dso}
	for i := 1; i < len(modes); i++ {
		next := modes[(int(cur)+i)%len(modes)]
		err := a.Controller.SetWorkMode(next)
		if err == nil {
			return next, nil
		}
		if !errors.IsUnsupported(err) {
			return cur, err
		}
	}
	return cur, errors.Wrapf(errors.ErrUnsupported, "%s has no other work mode", a.Agent.Name())
}

// ToggleRunMode flips between single and repetitive capture and remembers
// the choice in the preferences.
func (a *App) ToggleRunMode() (capture.RunMode, error) {
	mode := capture.Repetitive
	if a.Session.RunMode() == capture.Repetitive {
		mode = capture.Single
	}
	if err := a.Controller.SetRunMode(mode, a.cfg.Sampling.RepeatInterval()); err != nil {
		return a.Session.RunMode(), err
	}
	if err := a.Prefs.Update(func(p *prefs.Prefs) { p.RunMode = mode.String() }); err != nil {
		a.logger.Warn("failed to remember run mode", "error", err)
	}
	return mode, nil
}

func (a *App) lockDevice(name string) error {
	if a.lock != nil && a.lock.Device == name {
		return nil
	}
	lock, err := session.AcquireLock(a.fs, a.cfg.Paths.ResolveLockDir(), name, a.logger)
	if err != nil {
		return err
	}
	a.releaseLock()
	a.lock = lock

	if err := a.Prefs.Update(func(p *prefs.Prefs) { p.LastDevice = name }); err != nil {
		a.logger.Warn("failed to remember device", "device", name, "error", err)
	}
	return nil
}

func (a *App) releaseLock() {
	if a.lock == nil {
		return
	}
	if err := a.lock.Release(); err != nil {
		a.logger.Warn("failed to release device lock", "device", a.lock.Device, "error", err)
	}
	a.lock = nil
}

// Pump publishes queued session notifications on the bus and reports how
// many were delivered. Call it from the control goroutine.
func (a *App) Pump() int {
	return a.Mailbox.Drain(a.Bus)
}

// Busy reports whether a capture is in progress or will repeat.
func (a *App) Busy() bool {
	return a.Controller.State() != capture.Idle || a.Session.IsRunning() || a.Session.IsRepeating()
}

// WaitIdle delivers session notifications until the capture finishes.
// When ctx ends first the capture is stopped and ctx.Err is returned.
func (a *App) WaitIdle(ctx context.Context) error {
	for a.Busy() {
		select {
		case e := <-a.Mailbox.C():
			a.Bus.Publish(e)
		case <-ctx.Done():
			if a.Busy() {
				_ = a.Controller.RunStop(context.WithoutCancel(ctx))
			}
			a.Session.Wait()
			a.Pump()
			return ctx.Err()
		}
	}
	a.Pump()
	return nil
}

// Reconfigure applies settings that may change while running: the
// calibration answer, run mode and repeat interval. Device and path
// settings need a restart. Call it from the control goroutine.
func (a *App) Reconfigure(cfg *config.Config) error {
	a.autoCalibrate = cfg.Sampling.AutoCalibrate
	a.cfg.Sampling = cfg.Sampling
	a.cfg.TUI = cfg.TUI

	if a.Busy() {
		a.logger.Info("run mode change deferred while sampling")
		return nil
	}
	mode, _ := capture.ParseRunMode(cfg.Sampling.RunMode)
	return a.Controller.SetRunMode(mode, cfg.Sampling.RepeatInterval())
}

// Close stops any capture, releases the device lock and closes the log.
func (a *App) Close() error {
	if a.Busy() {
		a.Session.SetRepeating(false)
		a.Session.StopCapture()
	}
	a.Session.Wait()
	a.Mailbox.Close()
	a.Pump()
	a.releaseLock()
	return a.logger.Close()
}
