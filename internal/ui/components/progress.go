package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/ui/theme"
)

// ProgressBar renders a completion percentage.
type ProgressBar struct {
	Label   string
	Percent int
	Width   int
}

func NewProgressBar(label string, percent, width int) ProgressBar {
	return ProgressBar{Label: label, Percent: percent, Width: width}
}

func (p ProgressBar) View() string {
	var result string
	if p.Label != "" {
		result = lipgloss.NewStyle().Foreground(theme.Text).Render(p.Label) + "  "
	}

	const percentWidth = 6 // "  100%"
	barWidth := max(p.Width-lipgloss.Width(result)-percentWidth, 4)

	pct := min(max(p.Percent, 0), 100)
	filled := barWidth * pct / 100

	result += theme.ProgressFilled.Render(strings.Repeat(" ", filled)) +
		theme.ProgressEmpty.Render(strings.Repeat(" ", barWidth-filled)) +
		lipgloss.NewStyle().Foreground(theme.TextDim).Render(fmt.Sprintf("  %d%%", pct))
	return result
}
