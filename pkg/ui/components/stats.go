// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds statistics for display.
type Stats struct {
	BlocksProcessed int64
	Refreshes       int64
	WithLiquidity   int64
	Errors          int64
}

// StatsComponent renders statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	liquidRate := float64(0)
	if s.stats.Refreshes > 0 {
		liquidRate = float64(s.stats.WithLiquidity) / float64(s.stats.Refreshes) * 100
	}

	errorsDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	if s.stats.Errors > 0 {
		errorsDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Blocks: %s  │  Refreshes: %s  │  With liquidity: %s (%.1f%%)  │  Errors: %s",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.BlocksProcessed)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Refreshes)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.WithLiquidity)),
			liquidRate,
			errorsDisplay,
		)
}
