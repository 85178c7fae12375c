package app

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/feedpipe/business/exchange/domain"
	"github.com/fd1az/feedpipe/internal/apperror"
	"github.com/fd1az/feedpipe/internal/instrument"
	"github.com/fd1az/feedpipe/internal/logger"
	"github.com/fd1az/feedpipe/internal/ratelimit"
	"github.com/fd1az/feedpipe/internal/wsconn"
)

const (
	tracerName = "github.com/fd1az/feedpipe/business/exchange/app"
	meterName  = "github.com/fd1az/feedpipe/business/exchange/app"
)

// StreamerConfig holds configuration for the exchange streamer.
type StreamerConfig struct {
	WebSocketURL        string
	SubscriptionType    string // "SNAPSHOT" or "SNAPSHOT_AND_UPDATE"
	BookUpdateFrequency int    // ms between delta pushes
	InitialBackoff      time.Duration
	MaxBackoff          time.Duration
	MaxReconnects       int
	SubscribesPerMinute int
}

// streamerMetrics holds OTEL metric instruments.
type streamerMetrics struct {
	framesForwarded metric.Int64Counter
	forwardErrors   metric.Int64Counter
	subscriptions   metric.Int64Counter
}

// Streamer connects to the exchange websocket, subscribes to the book and
// trade channels of every registered instrument and forwards each raw
// frame verbatim into the ingress sink. Reconnects resubscribe; the feed
// engine surfaces the resulting sequence break itself.
type Streamer struct {
	config   StreamerConfig
	client   *wsconn.Client
	registry *instrument.Registry
	sink     FrameSink
	limiter  *ratelimit.Limiter
	logger   logger.LoggerInterface

	nextID  atomic.Int64
	stopped atomic.Bool
	done    chan struct{}

	tracer  trace.Tracer
	metrics *streamerMetrics
}

// NewStreamer creates a Streamer for the registered instruments.
func NewStreamer(
	cfg StreamerConfig,
	registry *instrument.Registry,
	sink FrameSink,
	log logger.LoggerInterface,
) (*Streamer, error) {
	wsCfg := wsconn.DefaultConfig(cfg.WebSocketURL, "exchange")
	if cfg.InitialBackoff > 0 {
		wsCfg.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		wsCfg.MaxBackoff = cfg.MaxBackoff
	}
	wsCfg.MaxReconnects = cfg.MaxReconnects

	client, err := wsconn.New(wsCfg)
	if err != nil {
		return nil, err
	}

	perMinute := cfg.SubscribesPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}

	s := &Streamer{
		config:   cfg,
		client:   client,
		registry: registry,
		sink:     sink,
		limiter:  ratelimit.New(perMinute),
		logger:   log,
		done:     make(chan struct{}),
		tracer:   otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, err
	}

	// Every (re)connect resubscribes; the engine reports the sequence
	// break caused by the stream restart.
	client.OnStateChange(func(state wsconn.State, stateErr error) {
		if s.stopped.Load() {
			return
		}
		switch state {
		case wsconn.StateConnected:
			go s.subscribe(context.Background())
		case wsconn.StateReconnecting, wsconn.StateDisconnected:
			s.logger.Warn(context.Background(), "exchange connection lost",
				"state", string(state), "error", stateErr)
		}
	})

	return s, nil
}

func (s *Streamer) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &streamerMetrics{}

	s.metrics.framesForwarded, err = meter.Int64Counter(
		"exchange_frames_forwarded_total",
		metric.WithDescription("Total raw frames forwarded to the ingress sink"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return err
	}

	s.metrics.forwardErrors, err = meter.Int64Counter(
		"exchange_forward_errors_total",
		metric.WithDescription("Total frames dropped due to sink failures"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return err
	}

	s.metrics.subscriptions, err = meter.Int64Counter(
		"exchange_subscriptions_total",
		metric.WithDescription("Total subscription requests sent"),
		metric.WithUnit("{request}"),
	)
	return err
}

// Start connects to the exchange and begins forwarding frames. The initial
// connection failure is a fatal initialization error.
func (s *Streamer) Start(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "exchange.start",
		trace.WithAttributes(attribute.String("ws.url", s.config.WebSocketURL)),
	)
	defer span.End()

	if err := s.client.Connect(ctx); err != nil {
		span.RecordError(err)
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext(s.config.WebSocketURL))
	}

	go s.forwardLoop(ctx)

	s.logger.Info(ctx, "exchange streamer started",
		"url", s.config.WebSocketURL,
		"instruments", len(s.registry.All()),
	)
	return nil
}

// subscribe sends one subscribe request covering every registered channel.
func (s *Streamer) subscribe(ctx context.Context) {
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}

	channels := s.registry.Channels()
	req := domain.NewSubscriptionRequest(
		s.nextID.Add(1),
		channels,
		s.config.SubscriptionType,
		s.config.BookUpdateFrequency,
	)

	if err := s.client.SendJSON(ctx, req); err != nil {
		s.logger.Error(ctx, "subscription send failed",
			"channels", len(channels), "error", err)
		return
	}

	s.metrics.subscriptions.Add(ctx, 1)
	s.logger.Info(ctx, "subscription sent", "channels", channels)
}

// forwardLoop drains the websocket message channel into the frame sink.
func (s *Streamer) forwardLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case payload, ok := <-s.client.Messages():
			if !ok {
				return
			}
			if err := s.sink.Deliver(ctx, payload); err != nil {
				s.metrics.forwardErrors.Add(ctx, 1)
				s.logger.Error(ctx, "failed to forward frame",
					"payload_len", len(payload), "error", err)
				continue
			}
			s.metrics.framesForwarded.Add(ctx, 1)
		}
	}
}

// IsConnected reports the websocket state for health checks.
func (s *Streamer) IsConnected() bool {
	return s.client.IsConnected()
}

// Stop closes the websocket and halts forwarding.
func (s *Streamer) Stop() error {
	if s.stopped.Swap(true) {
		return nil
	}
	close(s.done)
	return s.client.Close()
}
