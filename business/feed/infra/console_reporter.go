// Package infra contains infrastructure adapters for the feed context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/feedpipe/business/feed/app"
	"github.com/fd1az/feedpipe/business/feed/domain"
)

// Ensure ConsoleReporter implements BboSink.
var _ app.BboSink = (*ConsoleReporter)(nil)

// ConsoleReporter prints BBO changes to stdout for CLI mode.
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a new ConsoleReporter.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{
		out: os.Stdout,
	}
}

// Publish prints one BBO change line.
func (r *ConsoleReporter) Publish(_ context.Context, update domain.BboUpdate) error {
	ts := time.UnixMicro(int64(update.TimestampMicros)).UTC().Format("15:04:05.000000")

	bid := "-"
	if update.BestBid != 0 {
		bid = decimal.NewFromFloat(update.BestBid).StringFixed(4)
	}
	ask := "-"
	if update.BestAsk != 0 {
		ask = decimal.NewFromFloat(update.BestAsk).StringFixed(4)
	}

	_, err := fmt.Fprintf(r.out, "%s  %-16s  bid=%-14s ask=%-14s u=%d\n",
		ts, update.Instrument, bid, ask, update.SequenceNumber)
	return err
}
