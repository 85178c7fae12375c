// Package di contains dependency injection tokens for the feed context.
package di

import (
	feedApp "github.com/fd1az/feedpipe/business/feed/app"
	"github.com/fd1az/feedpipe/business/feed/infra/ipctransport"
	"github.com/fd1az/feedpipe/internal/di"
)

// DI tokens for the feed module.
const (
	Normalizer = "feed.Normalizer"
	Ingress    = "feed.Ingress"
	Egress     = "feed.Egress"
	Reporter   = "feed.Reporter"
	Engine     = "feed.Engine"
)

// GetEngine resolves the feed engine.
func GetEngine(sr di.ServiceRegistry) *feedApp.Engine {
	return di.GetToken[*feedApp.Engine](sr, Engine)
}

// GetIngress resolves the ingress transport.
func GetIngress(sr di.ServiceRegistry) *ipctransport.Ingress {
	return di.GetToken[*ipctransport.Ingress](sr, Ingress)
}

// GetReporter resolves the active reporter sink.
func GetReporter(sr di.ServiceRegistry) feedApp.BboSink {
	return di.GetToken[feedApp.BboSink](sr, Reporter)
}
