// Package viz renders terminal plots of model output: static ascii
// charts for archived runs and a live view that steps a core forward
// while drawing.
package viz

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	graphStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// Plot renders one variable over time as an ascii chart with a styled
// title and axis note.
func Plot(title string, years, values []float64, height int) string {
	if len(values) == 0 {
		return errStyle.Render("no data to plot")
	}
	if height <= 0 {
		height = 12
	}
	graph := asciigraph.Plot(values,
		asciigraph.Height(height),
		asciigraph.Width(72),
	)
	axis := fmt.Sprintf("%.0f .. %.0f", years[0], years[len(years)-1])
	return titleStyle.Render(title) + "\n" +
		graphStyle.Render(graph) + "\n" +
		labelStyle.Render(axis)
}
