// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds engine counters for display.
type Stats struct {
	Snapshots    uint64
	Deltas       uint64
	Trades       uint64
	Unknown      uint64
	ParseErrors  uint64
	SequenceGaps uint64
	BboEmitted   uint64
}

// Total returns the number of processed frames.
func (s Stats) Total() uint64 {
	return s.Snapshots + s.Deltas + s.Trades + s.Unknown
}

// StatsComponent renders message-rate statistics.
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

	gapsDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.SequenceGaps))
	if s.stats.SequenceGaps > 0 {
		gapsDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.SequenceGaps))
	}
	parseDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.ParseErrors))
	if s.stats.ParseErrors > 0 {
		parseDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.ParseErrors))
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Frames: %s  │  Snapshots: %s  │  Deltas: %s  │  Trades: %s\n",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Total())),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Snapshots)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Deltas)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Trades)),
		) +
		fmt.Sprintf("BBO emitted: %s  │  Unknown: %s  │  Parse errors: %s  │  Gaps: %s",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.BboEmitted)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Unknown)),
			parseDisplay,
			gapsDisplay,
		)
}
