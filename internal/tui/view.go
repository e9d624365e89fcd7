package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/Iron-Ham/capctl/internal/capture"
	"github.com/Iron-Ham/capctl/internal/errors"
)

const progressWidth = 24

// View renders the sampling bar
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	ctrl := m.app.Controller
	controls := ctrl.Controls()

	var b strings.Builder
	b.WriteString(m.fit(m.renderHeader()))
	b.WriteString("\n\n")

	rate, duration := selectedLabels(ctrl)
	rows := []string{
		row("Rate", rate, controls.Rate),
		row("Duration", duration, controls.Duration),
		row("Run", m.runModeLabel(controls), controls.RunStop),
	}
	if controls.InstantVisible {
		rows = append(rows, row(controls.InstantLabel, m.instantLabel(controls), controls.Instant))
	}
	rows = append(rows, row("Progress", m.renderProgress(), true))

	bar := Bar
	if m.width > 4 {
		bar = bar.Width(m.width - 4)
	}
	b.WriteString(bar.Render(strings.Join(rows, "\n")))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(m.fit(renderError(m.err)))
		b.WriteString("\n")
	case m.info != "":
		b.WriteString(m.fit(InfoText.Render(m.info)))
		b.WriteString("\n")
	}

	b.WriteString(HelpBar.Render(m.help.View(m.keys)))
	return b.String()
}

// renderError shows actions refused in the current state as a notice and
// everything else as an error.
func renderError(err error) string {
	if errors.IsUserFacing(err) && errors.GetSeverity(err) <= errors.SeverityInfo {
		return Warning.Render("! " + err.Error())
	}
	return ErrorText.Render("Error: " + err.Error())
}

func (m Model) renderHeader() string {
	agent := m.app.Controller.Agent()

	name := "no device"
	mode := ""
	if agent.HaveInstance() {
		name = agent.Name()
		mode = agent.WorkMode().String()
		if agent.IsVirtualSession() {
			mode += " (virtual)"
		}
	}

	left := lipgloss.JoinHorizontal(lipgloss.Top,
		Title.Render("capctl"),
		"  ",
		Value.Render(name),
		" ",
		Subtitle.Render(mode),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", m.renderState())
}

func (m Model) renderState() string {
	state := m.app.Controller.State()

	color := StateIdle
	switch state {
	case capture.Sampling:
		color = StateSampling
	case capture.AwaitingUpload:
		color = StateUploading
	}

	badge := StatusBadge.Background(color).Render(strings.ToUpper(state.String()))
	if state == capture.Idle {
		return badge
	}
	return badge + " " + m.spin.View()
}

func (m Model) runModeLabel(controls capture.Controls) string {
	label := controls.RunMode.String()
	if controls.RunMode == capture.Repetitive {
		label += fmt.Sprintf(" every %s", m.app.Session.RepeatInterval())
	}
	if controls.Sampling && !controls.InstantRun {
		label += "  [stop]"
	}
	return label
}

func (m Model) instantLabel(controls capture.Controls) string {
	if controls.Sampling && controls.InstantRun {
		return "[stop]"
	}
	return "ready"
}

func (m Model) renderProgress() string {
	p := m.progress
	if p.runs == 0 {
		return Subtitle.Render("no capture yet")
	}

	filled := int(p.fraction * progressWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", progressWidth-filled)
	return fmt.Sprintf("%s %3.0f%%  run %d", bar, p.fraction*100, p.runs)
}

// fit truncates a styled line to the terminal width. Escape codes are
// preserved.
func (m Model) fit(s string) string {
	if m.width <= 3 || lipgloss.Width(s) <= m.width {
		return s
	}
	return ansi.Truncate(s, m.width, "...")
}

func row(label, value string, enabled bool) string {
	v := Value.Render(value)
	if !enabled {
		v = Disabled.Render(value)
	}
	return Label.Render(label) + v
}
