package status

import "github.com/charmbracelet/lipgloss"

var (
	ColorAccent = lipgloss.Color("#FE2C55")
	ColorMuted  = lipgloss.Color("#888888")
	ColorOn     = lipgloss.Color("#44FF44")
	ColorOff    = lipgloss.Color("#FF6666")
	ColorWarn   = lipgloss.Color("#FFAA00")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	onStyle    = lipgloss.NewStyle().Foreground(ColorOn).Bold(true)
	offStyle   = lipgloss.NewStyle().Foreground(ColorOff)
	warnStyle  = lipgloss.NewStyle().Foreground(ColorWarn)

	countdownStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1)
)
