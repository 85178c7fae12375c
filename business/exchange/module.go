// Package exchange implements the exchange-connectivity bounded context:
// websocket streaming, subscriptions and frame forwarding.
package exchange

import (
	"context"

	exchangeApp "github.com/fd1az/feedpipe/business/exchange/app"
	exchangeDI "github.com/fd1az/feedpipe/business/exchange/di"
	"github.com/fd1az/feedpipe/business/exchange/infra"
	"github.com/fd1az/feedpipe/internal/config"
	"github.com/fd1az/feedpipe/internal/di"
	"github.com/fd1az/feedpipe/internal/instrument"
	"github.com/fd1az/feedpipe/internal/logger"
	"github.com/fd1az/feedpipe/internal/monolith"
)

// Module implements the exchange bounded context.
type Module struct{}

// RegisterServices registers all exchange services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// FrameSink - connects to the feed module's ingress socket
	di.RegisterToken(c, exchangeDI.FrameSink, func(sr di.ServiceRegistry) *infra.IPCForwarder {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		forwarder, err := infra.NewIPCForwarder(cfg.Ingress.Path(), log)
		if err != nil {
			panic("failed to create ingress forwarder: " + err.Error())
		}
		return forwarder
	})

	// Streamer (public - lifecycle driven from Startup and main)
	di.RegisterToken(c, exchangeDI.Streamer, func(sr di.ServiceRegistry) *exchangeApp.Streamer {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("instrumentRegistry").(*instrument.Registry)

		streamer, err := exchangeApp.NewStreamer(
			exchangeApp.StreamerConfig{
				WebSocketURL:        cfg.Exchange.WebSocketURL,
				SubscriptionType:    cfg.Exchange.SubscriptionType,
				BookUpdateFrequency: cfg.Exchange.BookUpdateFrequency,
				InitialBackoff:      cfg.Exchange.InitialBackoff,
				MaxBackoff:          cfg.Exchange.MaxBackoff,
				MaxReconnects:       cfg.Exchange.MaxReconnects,
				SubscribesPerMinute: cfg.Exchange.SubscribesPerMinute,
			},
			registry,
			exchangeDI.GetFrameSink(sr),
			log,
		)
		if err != nil {
			panic("failed to create exchange streamer: " + err.Error())
		}
		return streamer
	})

	return nil
}

// Startup connects the forwarder to the ingress socket and starts the
// websocket stream. Both failures are fatal initialization errors.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	forwarder := exchangeDI.GetFrameSink(mono.Services())
	if err := forwarder.Connect(ctx); err != nil {
		return err
	}

	streamer := exchangeDI.GetStreamer(mono.Services())
	if err := streamer.Start(ctx); err != nil {
		return err
	}

	log.Info(ctx, "exchange module started")
	return nil
}
