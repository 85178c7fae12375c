package app

import (
	"context"
	"errors"

	"github.com/fd1az/feedpipe/business/feed/domain"
)

// FanoutSink publishes every update to all wrapped sinks. Errors are
// collected so one failing sink never starves the others.
type FanoutSink struct {
	sinks []BboSink
}

// NewFanoutSink creates a FanoutSink. Nil entries are skipped.
func NewFanoutSink(sinks ...BboSink) *FanoutSink {
	out := make([]BboSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &FanoutSink{sinks: out}
}

// Publish forwards the update to every sink.
func (f *FanoutSink) Publish(ctx context.Context, update domain.BboUpdate) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, update); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
