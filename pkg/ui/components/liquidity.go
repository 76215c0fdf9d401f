// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// LiquidityRow represents a row in the liquidity table, one per pair.
type LiquidityRow struct {
	Pair         string
	Tokens       string
	QuoteValue   string
	UnitPrice    string
	BlockNumber  uint64
	HasLiquidity bool
	Updated      time.Time
}

// LiquidityComponent renders the per-pair liquidity table.
type LiquidityComponent struct {
	rows  map[string]LiquidityRow
	quote string
}

// NewLiquidityComponent creates a new liquidity component.
func NewLiquidityComponent() *LiquidityComponent {
	return &LiquidityComponent{
		rows:  make(map[string]LiquidityRow),
		quote: "WETH",
	}
}

// SetQuote sets the quote asset symbol shown in the header.
func (l *LiquidityComponent) SetQuote(symbol string) {
	l.quote = symbol
}

// Update replaces the row for the given pair.
func (l *LiquidityComponent) Update(row LiquidityRow) {
	l.rows[row.Pair] = row
}

// View renders the liquidity component.
func (l *LiquidityComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	positiveStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	negativeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var result string
	result = headerStyle.Render(fmt.Sprintf("BUYABLE LIQUIDITY (quoted in %s)", l.quote))
	result += "\n\n"

	if len(l.rows) == 0 {
		result += dimStyle.Render("  Waiting for orderbook data...")
		return result
	}

	result += fmt.Sprintf("  %-10s  %16s  %16s  %14s  %9s\n",
		"Pair", "Tokens", "Quote Value", "Avg Price", "Block")
	result += dimStyle.Render("  "+strings.Repeat("─", 72)) + "\n"

	pairs := make([]string, 0, len(l.rows))
	for pair := range l.rows {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	for _, pair := range pairs {
		row := l.rows[pair]

		tokensStyle := positiveStyle
		if !row.HasLiquidity {
			tokensStyle = negativeStyle
		}

		result += fmt.Sprintf("  %-10s  %s  %16s  %14s  %9s\n",
			row.Pair,
			tokensStyle.Render(fmt.Sprintf("%16s", row.Tokens)),
			row.QuoteValue,
			row.UnitPrice,
			fmt.Sprintf("#%d", row.BlockNumber),
		)
	}

	return result
}
