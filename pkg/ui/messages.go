// Package ui provides the Bubble Tea TUI for the feed pipeline.
package ui

import (
	"time"

	"github.com/fd1az/feedpipe/business/feed/domain"
)

// Message types for TUI updates

// BboUpdateMsg is sent when an instrument's best bid/offer changes.
type BboUpdateMsg struct {
	Update domain.BboUpdate
}

// StatsMsg carries the engine's message counters.
type StatsMsg struct {
	Snapshots    uint64
	Deltas       uint64
	Trades       uint64
	Unknown      uint64
	ParseErrors  uint64
	SequenceGaps uint64
	BboEmitted   uint64
}

// ConnectionStatusMsg is sent when connection status changes.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	Latency   time.Duration
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// WelcomeCompleteMsg signals the welcome screen is done (timeout or keypress).
type WelcomeCompleteMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // Current step name
	Status  string // "connecting", "connected", "done", "failed"
	Message string // Optional message
}
