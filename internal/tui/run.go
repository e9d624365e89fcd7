package tui

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/Iron-Ham/capctl/internal/app"
	"github.com/Iron-Ham/capctl/internal/config"
	"github.com/Iron-Ham/capctl/internal/errors"
)

// ErrNotTerminal is returned by Run when stdout is not a terminal.
var ErrNotTerminal = errors.New("the sampling bar needs an interactive terminal")

// Run shows the sampling bar until the user quits or ctx ends. When
// watchConfig is set, edits to the config file are applied live.
func Run(ctx context.Context, a *app.App, watchConfig bool) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return ErrNotTerminal
	}

	program := tea.NewProgram(
		NewModel(ctx, a),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	if watchConfig {
		config.Watch(func(cfg *config.Config, err error) {
			program.Send(configMsg{cfg: cfg, err: err})
		})
	}

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
