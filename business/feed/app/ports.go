// Package app contains the feed engine and its port definitions.
package app

import (
	"context"

	"github.com/fd1az/feedpipe/business/feed/domain"
)

// FrameSource delivers raw payload frames from the ingress transport.
type FrameSource interface {
	// Recv blocks until one complete frame arrives. io.EOF signals a peer
	// disconnect and ends the engine's run loop cleanly.
	Recv(ctx context.Context) ([]byte, error)
}

// Normalizer parses one raw payload into a typed message. An error means
// the payload was not valid JSON; structurally deficient documents come
// back as the Unknown variant instead.
type Normalizer interface {
	Parse(ctx context.Context, payload []byte) (domain.Message, error)
}

// BboSink receives best-bid-offer change records. Publish failures are
// reported to the engine, which logs and keeps processing.
type BboSink interface {
	Publish(ctx context.Context, update domain.BboUpdate) error
}
