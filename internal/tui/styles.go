package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	Candle   = lipgloss.Color("#c9a227")
	Bone     = lipgloss.Color("#f3efe0")
	Ash      = lipgloss.Color("#5c5c5c")
	Blood    = lipgloss.Color("#a4161a")
	Midnight = lipgloss.Color("#1b1b2f")

	// Styles
	StatusBarStyle = lipgloss.NewStyle().
			Background(Midnight).
			Foreground(Candle).
			Bold(true).
			Padding(0, 1)

	ChatPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Candle).
			Padding(1)

	ProfilePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(Candle).
				Padding(1)

	EventsPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(Ash).
				Padding(1)

	InputBarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Candle).
			Padding(0, 1)

	UserMessageStyle = lipgloss.NewStyle().
				Foreground(Bone).
				Bold(true)

	SpiritMessageStyle = lipgloss.NewStyle().
				Foreground(Candle)

	BoardMessageStyle = lipgloss.NewStyle().
				Foreground(Ash).
				Italic(true)

	ProfileLabelStyle = lipgloss.NewStyle().
				Foreground(Ash)

	EventStyle = lipgloss.NewStyle().
			Foreground(Bone)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Blood)
)
