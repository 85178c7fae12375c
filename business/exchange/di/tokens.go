// Package di contains dependency injection tokens for the exchange context.
package di

import (
	exchangeApp "github.com/fd1az/feedpipe/business/exchange/app"
	"github.com/fd1az/feedpipe/business/exchange/infra"
	"github.com/fd1az/feedpipe/internal/di"
)

// DI tokens for the exchange module.
const (
	FrameSink = "exchange.FrameSink"
	Streamer  = "exchange.Streamer"
)

// GetStreamer resolves the exchange streamer.
func GetStreamer(sr di.ServiceRegistry) *exchangeApp.Streamer {
	return di.GetToken[*exchangeApp.Streamer](sr, Streamer)
}

// GetFrameSink resolves the ingress frame sink.
func GetFrameSink(sr di.ServiceRegistry) *infra.IPCForwarder {
	return di.GetToken[*infra.IPCForwarder](sr, FrameSink)
}
