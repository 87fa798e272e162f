package report

import "github.com/charmbracelet/lipgloss"

var (
	colorIris  = lipgloss.Color("#5D3FD3")
	colorSlate = lipgloss.Color("#667085")
	colorWhite = lipgloss.Color("#FFFFFF")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Background(colorIris).
			Foreground(colorWhite)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorIris).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Foreground(colorSlate)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")) // Green

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // Red

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorSlate).
			Faint(true)
)

// statusStyle colours a status cell by its value.
func statusStyle(value string) lipgloss.Style {
	switch value {
	case "built", "passed", "fresh":
		return okStyle
	case "failed", "stale":
		return failStyle
	case "cached", "skipped", "none", "":
		return mutedStyle
	default:
		return lipgloss.NewStyle()
	}
}
