// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// UpdateRow represents one liquidity refresh in the history list.
type UpdateRow struct {
	Timestamp    string
	BlockNumber  uint64
	Pair         string
	Tokens       string
	QuoteValue   string
	HasLiquidity bool
}

// UpdatesComponent renders the recent refresh history.
type UpdatesComponent struct {
	rows    []UpdateRow
	maxRows int
	offset  int
	visible int
}

// NewUpdatesComponent creates a new updates component.
func NewUpdatesComponent(maxRows int) *UpdatesComponent {
	return &UpdatesComponent{
		rows:    make([]UpdateRow, 0),
		maxRows: maxRows,
		visible: 8,
	}
}

// Add prepends a new refresh to the history.
func (u *UpdatesComponent) Add(row UpdateRow) {
	u.rows = append([]UpdateRow{row}, u.rows...)
	if len(u.rows) > u.maxRows {
		u.rows = u.rows[:u.maxRows]
	}
}

// Clear empties the history.
func (u *UpdatesComponent) Clear() {
	u.rows = make([]UpdateRow, 0)
	u.offset = 0
}

// ScrollUp moves the view toward older entries.
func (u *UpdatesComponent) ScrollUp() {
	if u.offset < len(u.rows)-u.visible {
		u.offset++
	}
}

// ScrollDown moves the view toward newer entries.
func (u *UpdatesComponent) ScrollDown() {
	if u.offset > 0 {
		u.offset--
	}
}

// View renders the updates component.
func (u *UpdatesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	liquidStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	result := headerStyle.Render("RECENT REFRESHES") + "\n"

	if len(u.rows) == 0 {
		result += dimStyle.Render("No refreshes yet...")
		return result
	}

	result += "┌──────────┬─────────┬──────────┬────────────────┬────────────────┐\n"
	result += "│   Time   │  Block  │   Pair   │     Tokens     │  Quote Value   │\n"
	result += "├──────────┼─────────┼──────────┼────────────────┼────────────────┤\n"

	end := min(u.offset+u.visible, len(u.rows))
	for _, row := range u.rows[u.offset:end] {
		tokensStyle := liquidStyle
		if !row.HasLiquidity {
			tokensStyle = emptyStyle
		}

		result += fmt.Sprintf("│ %8s │%8d │ %-8s │%s │%15s │\n",
			row.Timestamp,
			row.BlockNumber,
			row.Pair,
			tokensStyle.Render(fmt.Sprintf("%15s", row.Tokens)),
			row.QuoteValue,
		)
	}

	result += "└──────────┴─────────┴──────────┴────────────────┴────────────────┘"

	if u.offset > 0 {
		result += dimStyle.Render(fmt.Sprintf("\n  ↓ %d newer", u.offset))
	}

	return result
}
