// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// BboRow is the latest best bid/offer for one instrument.
type BboRow struct {
	Instrument string
	BestBid    float64
	BestAsk    float64
	Sequence   uint64
	UpdatedAt  time.Time
}

// Spread returns ask - bid, or zero when a side is empty.
func (r BboRow) Spread() float64 {
	if r.BestBid == 0 || r.BestAsk == 0 {
		return 0
	}
	return r.BestAsk - r.BestBid
}

// BooksComponent renders the live BBO table.
type BooksComponent struct {
	rows map[string]BboRow
}

// NewBooksComponent creates a new books component.
func NewBooksComponent() *BooksComponent {
	return &BooksComponent{
		rows: make(map[string]BboRow),
	}
}

// Update stores the latest BBO for an instrument.
func (b *BooksComponent) Update(row BboRow) {
	b.rows[row.Instrument] = row
}

// Count returns the number of instruments with a BBO.
func (b *BooksComponent) Count() int {
	return len(b.rows)
}

// View renders the BBO table.
func (b *BooksComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	bidStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	askStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	staleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	var result string
	result = headerStyle.Render("ORDER BOOKS")
	result += "\n\n"

	if len(b.rows) == 0 {
		result += dimStyle.Render("  Waiting for book data...")
		return result
	}

	result += fmt.Sprintf("  %-16s  %14s  %14s  %10s  %6s\n",
		"Instrument", "Bid", "Ask", "Spread", "Age")
	result += dimStyle.Render("  "+strings.Repeat("─", 66)) + "\n"

	// Stable ordering by instrument name.
	names := make([]string, 0, len(b.rows))
	for name := range b.rows {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		row := b.rows[name]

		bid := "-"
		if row.BestBid != 0 {
			bid = decimal.NewFromFloat(row.BestBid).StringFixed(4)
		}
		ask := "-"
		if row.BestAsk != 0 {
			ask = decimal.NewFromFloat(row.BestAsk).StringFixed(4)
		}
		spread := "-"
		if s := row.Spread(); s != 0 {
			spread = decimal.NewFromFloat(s).StringFixed(4)
		}

		age := time.Since(row.UpdatedAt).Round(100 * time.Millisecond)
		ageStr := age.String()
		ageStyle := dimStyle
		if age > 5*time.Second {
			ageStyle = staleStyle
		}

		result += fmt.Sprintf("  %-16s  %s  %s  %10s  %s\n",
			row.Instrument,
			bidStyle.Render(fmt.Sprintf("%14s", bid)),
			askStyle.Render(fmt.Sprintf("%14s", ask)),
			spread,
			ageStyle.Render(fmt.Sprintf("%6s", ageStr)),
		)
	}

	return result
}
