// Package feed implements the feed-processing bounded context: ingress,
// normalization, per-instrument books and BBO egress.
package feed

import (
	"context"
	"time"

	feedApp "github.com/fd1az/feedpipe/business/feed/app"
	feedDI "github.com/fd1az/feedpipe/business/feed/di"
	"github.com/fd1az/feedpipe/business/feed/infra"
	"github.com/fd1az/feedpipe/business/feed/infra/cryptocom"
	"github.com/fd1az/feedpipe/business/feed/infra/ipctransport"
	"github.com/fd1az/feedpipe/internal/config"
	"github.com/fd1az/feedpipe/internal/di"
	"github.com/fd1az/feedpipe/internal/logger"
	"github.com/fd1az/feedpipe/internal/monolith"
)

// statsInterval is how often engine counters are pushed to the TUI.
const statsInterval = 500 * time.Millisecond

// Module implements the feed bounded context.
type Module struct{}

// RegisterServices registers all feed services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Normalizer - private dependency
	di.RegisterToken(c, feedDI.Normalizer, func(sr di.ServiceRegistry) feedApp.Normalizer {
		log := sr.Get("logger").(logger.LoggerInterface)

		normalizer, err := cryptocom.NewNormalizer(log)
		if err != nil {
			panic("failed to create normalizer: " + err.Error())
		}
		return normalizer
	})

	// Ingress - owns the unix socket the websocket forwarder dials
	di.RegisterToken(c, feedDI.Ingress, func(sr di.ServiceRegistry) *ipctransport.Ingress {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		ingress, err := ipctransport.NewIngress(cfg.Ingress.Path(), log)
		if err != nil {
			panic("failed to bind ingress socket: " + err.Error())
		}
		return ingress
	})

	// Egress - downstream BBO publisher
	di.RegisterToken(c, feedDI.Egress, func(sr di.ServiceRegistry) *ipctransport.Egress {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		egress, err := ipctransport.NewEgress(cfg.Egress.SocketPath, log)
		if err != nil {
			panic("failed to create egress: " + err.Error())
		}
		return egress
	})

	// Reporter - TUI or console depending on run mode
	di.RegisterToken(c, feedDI.Reporter, func(sr di.ServiceRegistry) feedApp.BboSink {
		cfg := sr.Get("config").(*config.Config)

		if cfg.Engine.TUIMode {
			return infra.NewTUIReporter()
		}
		return infra.NewConsoleReporter()
	})

	// Engine (public - its run loop is driven from main)
	di.RegisterToken(c, feedDI.Engine, func(sr di.ServiceRegistry) *feedApp.Engine {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		sinks := []feedApp.BboSink{feedDI.GetReporter(sr)}
		if cfg.Egress.Enabled {
			sinks = append(sinks, sr.Get(feedDI.Egress).(*ipctransport.Egress))
		}

		engine, err := feedApp.NewEngine(
			feedDI.GetIngress(sr),
			sr.Get(feedDI.Normalizer).(feedApp.Normalizer),
			feedApp.NewFanoutSink(sinks...),
			feedApp.EngineConfig{
				MaxMessages: cfg.Engine.MaxMessages,
				BookDepth:   cfg.Exchange.BookDepth,
			},
			log,
		)
		if err != nil {
			panic("failed to create feed engine: " + err.Error())
		}
		return engine
	})

	return nil
}

// Startup initializes the feed module. The ingress socket is bound here so
// the exchange module can connect to it during its own startup.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	ingress := feedDI.GetIngress(mono.Services())

	if reporter, ok := feedDI.GetReporter(mono.Services()).(*infra.TUIReporter); ok {
		if err := reporter.Start(ctx); err != nil {
			return err
		}

		// Push engine counters to the dashboard until shutdown.
		engine := feedDI.GetEngine(mono.Services())
		go func() {
			ticker := time.NewTicker(statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					reporter.UpdateStats(engine.Counters())
				}
			}
		}()
	}

	log.Info(ctx, "feed module started",
		"ingress", ingress.Path(),
		"egress", cfg.Egress.SocketPath,
		"egress_enabled", cfg.Egress.Enabled,
	)
	return nil
}
