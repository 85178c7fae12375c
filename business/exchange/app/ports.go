// Package app contains application services and port definitions for the
// exchange context.
package app

import "context"

// FrameSink receives raw exchange payloads, one per websocket message.
// The production implementation frames them onto the engine's ingress
// socket.
type FrameSink interface {
	Deliver(ctx context.Context, payload []byte) error
}
