package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors meet WCAG AA contrast on black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray

	// Capture state colors
	StateIdle      = lipgloss.Color("#9CA3AF")
	StateSampling  = lipgloss.Color("#10B981")
	StateUploading = lipgloss.Color("#60A5FA")

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor)

	Subtitle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	Label = lipgloss.NewStyle().
		Foreground(MutedColor).
		Width(10)

	Value = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextColor)

	Disabled = lipgloss.NewStyle().
			Foreground(BorderColor).
			Strikethrough(true)

	StatusBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#111827")).
			Padding(0, 1)

	Bar = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 1)

	ErrorText = lipgloss.NewStyle().Foreground(ErrorColor)
	InfoText  = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)

	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)
)
