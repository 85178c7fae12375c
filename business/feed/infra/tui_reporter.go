package infra

import (
	"context"
	"time"

	feedApp "github.com/fd1az/feedpipe/business/feed/app"
	"github.com/fd1az/feedpipe/business/feed/domain"
	"github.com/fd1az/feedpipe/pkg/ui"
)

// Ensure TUIReporter implements BboSink.
var _ feedApp.BboSink = (*TUIReporter)(nil)

// TUIReporter forwards BBO changes and engine stats to the Bubble Tea
// dashboard. The TUI program itself is started in main; this reporter only
// sends messages to the running program.
type TUIReporter struct {
	started bool
}

// NewTUIReporter creates a new TUIReporter.
func NewTUIReporter() *TUIReporter {
	return &TUIReporter{}
}

// Start marks the reporter active.
func (r *TUIReporter) Start(ctx context.Context) error {
	r.started = true
	ui.Send(ui.StartupMsg{Step: "config", Status: "done"})
	return nil
}

// Publish sends a BBO change to the dashboard.
func (r *TUIReporter) Publish(_ context.Context, update domain.BboUpdate) error {
	if !r.started {
		return nil
	}
	ui.Send(ui.BboUpdateMsg{Update: update})
	return nil
}

// UpdateStartup sends startup progress to the TUI.
func (r *TUIReporter) UpdateStartup(step, status, message string) {
	if !r.started {
		return
	}
	ui.Send(ui.StartupMsg{
		Step:    step,
		Status:  status,
		Message: message,
	})
}

// UpdateStats pushes the engine's counters to the dashboard.
func (r *TUIReporter) UpdateStats(counters feedApp.Counters) {
	if !r.started {
		return
	}
	ui.Send(ui.StatsMsg{
		Snapshots:    counters.Snapshots,
		Deltas:       counters.Deltas,
		Trades:       counters.Trades,
		Unknown:      counters.Unknown,
		ParseErrors:  counters.ParseErrors,
		SequenceGaps: counters.SequenceGaps,
		BboEmitted:   counters.BboEmitted,
	})
}

// UpdateConnectionStatus sends connection status to the TUI.
func (r *TUIReporter) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	if !r.started {
		return
	}
	ui.Send(ui.ConnectionStatusMsg{
		Name:      name,
		Connected: connected,
		Latency:   latency,
	})
}

// Stop deactivates the reporter.
func (r *TUIReporter) Stop() error {
	r.started = false
	return nil
}
