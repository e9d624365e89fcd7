// Package tui renders the sampling bar as a terminal UI: the device, work
// mode, sample rate and duration selectors, the run and instant controls
// and live capture progress.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/capctl/internal/app"
	"github.com/Iron-Ham/capctl/internal/capture"
	"github.com/Iron-Ham/capctl/internal/config"
	"github.com/Iron-Ham/capctl/internal/device"
	"github.com/Iron-Ham/capctl/internal/event"
)

// DefaultTick is the mailbox drain interval when the config gives none.
const DefaultTick = 50 * time.Millisecond

// Messages

type tickMsg time.Time

type configMsg struct {
	cfg *config.Config
	err error
}

// progress is updated by bus handlers. Handlers run inside Update (the
// mailbox is drained there) so no locking is needed.
type progress struct {
	runID    string
	fraction float64
	runs     int
	lastErr  error
}

// Model holds the TUI application state
type Model struct {
	ctx  context.Context
	app  *app.App
	keys KeyMap
	help help.Model
	spin spinner.Model
	tick time.Duration

	progress *progress

	width    int
	showHelp bool
	quitting bool
	info     string
	err      error
}

// NewModel creates a Model driving a. The App must already be open.
func NewModel(ctx context.Context, a *app.App) Model {
	m := Model{
		ctx:      ctx,
		app:      a,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		spin:     spinner.New(spinner.WithSpinner(spinner.Dot)),
		tick:     a.Config().TUI.Tick(),
		progress: &progress{},
		showHelp: a.Config().TUI.ShowHelp,
	}
	if m.tick <= 0 {
		m.tick = DefaultTick
	}
	m.help.ShowAll = m.showHelp
	m.spin.Style = Value.Foreground(StateSampling)

	p := m.progress
	a.Bus.Subscribe(event.TypeCaptureProgress, func(e event.Event) {
		pe, ok := e.(event.CaptureProgressEvent)
		if !ok {
			return
		}
		if pe.RunID != p.runID {
			p.runID = pe.RunID
			p.runs++
		}
		p.fraction = pe.Fraction()
	})
	a.Bus.Subscribe(event.TypeCaptureError, func(e event.Event) {
		if ce, ok := e.(event.CaptureErrorEvent); ok {
			p.lastErr = ce.Err
		}
	})
	return m
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(m.tick), m.spin.Tick)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeypress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.app.Pump()
		if p := m.progress; p.lastErr != nil {
			m.err = p.lastErr
			p.lastErr = nil
		}
		return m, tick(m.tick)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case configMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("config reload: %w", msg.err)
			return m, nil
		}
		m.err = m.app.Reconfigure(msg.cfg)
		if t := msg.cfg.TUI.Tick(); t > 0 {
			m.tick = t
		}
		m.info = "Configuration reloaded"
		return m, nil
	}

	return m, nil
}

func (m Model) handleKeypress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctrl := m.app.Controller
	controls := ctrl.Controls()
	m.err = nil
	m.info = ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp

	case key.Matches(msg, m.keys.RunStop):
		if controls.RunStop {
			m.err = ctrl.RunStop(m.ctx)
		}

	case key.Matches(msg, m.keys.Instant):
		if controls.Instant && controls.InstantVisible {
			m.err = ctrl.InstantStop(m.ctx)
		}

	case key.Matches(msg, m.keys.RateNext):
		if controls.Rate {
			m.err = stepRate(ctrl, 1)
		}

	case key.Matches(msg, m.keys.RatePrev):
		if controls.Rate {
			m.err = stepRate(ctrl, -1)
		}

	case key.Matches(msg, m.keys.Longer):
		if controls.Duration {
			m.err = stepDuration(ctrl, 1)
		}

	case key.Matches(msg, m.keys.Shorter):
		if controls.Duration {
			m.err = stepDuration(ctrl, -1)
		}

	case key.Matches(msg, m.keys.WorkMode):
		if controls.Mode && controls.ModeVisible {
			mode, err := m.app.NextWorkMode()
			m.err = err
			if err == nil {
				m.info = "Work mode: " + mode.String()
			}
		}

	case key.Matches(msg, m.keys.RunMode):
		mode, err := m.app.ToggleRunMode()
		m.err = err
		if err == nil {
			m.info = "Run mode: " + mode.String()
		}

	case key.Matches(msg, m.keys.NextDevice):
		if controls.DeviceSelector {
			m.err = m.app.NextDevice()
		}

	case key.Matches(msg, m.keys.Rescan):
		if controls.DeviceSelector {
			m.err = m.app.Rescan()
		}
	}

	return m, nil
}

func stepRate(ctrl *capture.Controller, dir int) error {
	rates := ctrl.Rates()
	next := rates.Index() + dir
	if next < 0 || next >= rates.Len() {
		return nil
	}
	return ctrl.SelectRate(next)
}

// stepDuration moves towards longer (dir > 0) or shorter durations. The
// oscilloscope time base goes through the horizontal knob so it is
// committed immediately.
func stepDuration(ctrl *capture.Controller, dir int) error {
	if ctrl.Agent().WorkMode() == device.Dso {
		_, err := ctrl.HoriKnob(dir)
		return err
	}
	durations := ctrl.Durations()
	next := durations.Index() - dir
	if next < 0 || next >= durations.Len() {
		return nil
	}
	return ctrl.SelectDuration(next)
}

// selectedLabels returns the rate and duration labels, or "-" when a
// selector is empty.
func selectedLabels(ctrl *capture.Controller) (rate, duration string) {
	rate, duration = "-", "-"
	if e, ok := ctrl.Rates().Selected(); ok {
		rate = e.Label
	}
	if e, ok := ctrl.Durations().Selected(); ok {
		duration = e.Label
	}
	return rate, duration
}
