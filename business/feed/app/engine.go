package app

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/feedpipe/business/feed/domain"
	"github.com/fd1az/feedpipe/internal/logger"
)

const (
	tracerName = "github.com/fd1az/feedpipe/business/feed/app"
	meterName  = "github.com/fd1az/feedpipe/business/feed/app"
)

// EngineConfig holds configuration for the feed engine.
type EngineConfig struct {
	MaxMessages uint64 // 0 = unbounded
	BookDepth   int    // levels retained per side
}

// Counters is a snapshot of the engine's monotonic message counters.
// Readers may observe values mid-update but never torn ones.
type Counters struct {
	Snapshots    uint64
	Deltas       uint64
	Trades       uint64
	Unknown      uint64
	ParseErrors  uint64
	SequenceGaps uint64
	BboEmitted   uint64
}

// instrumentState holds everything the engine tracks per instrument.
// Created on first snapshot, mutated only by the engine loop, never
// destroyed.
type instrumentState struct {
	book    *domain.OrderBook
	lastSeq uint64
	broken  bool

	lastBid float64
	lastAsk float64
	hasBBO  bool

	crossedReported bool
}

// engineMetrics holds OTEL metric instruments.
type engineMetrics struct {
	messagesProcessed metric.Int64Counter
	sequenceGaps      metric.Int64Counter
	bboEmitted        metric.Int64Counter
	egressErrors      metric.Int64Counter
	processLatency    metric.Float64Histogram
}

// Engine routes normalized messages to per-instrument order books,
// enforces the snapshot/delta sequence contract and publishes BBO changes.
// It is single-threaded by design: Run is the sole mutator of all book and
// instrument state.
type Engine struct {
	source     FrameSource
	normalizer Normalizer
	sink       BboSink
	config     EngineConfig
	logger     logger.LoggerInterface

	states map[string]*instrumentState

	snapshotCount   atomic.Uint64
	deltaCount      atomic.Uint64
	tradeCount      atomic.Uint64
	unknownCount    atomic.Uint64
	parseErrorCount atomic.Uint64
	gapCount        atomic.Uint64
	bboCount        atomic.Uint64

	// now is swappable for tests.
	now func() time.Time

	tracer  trace.Tracer
	metrics *engineMetrics
}

// NewEngine creates a feed engine reading from source and publishing BBO
// changes to sink. sink may be nil when no downstream consumer exists.
func NewEngine(
	source FrameSource,
	normalizer Normalizer,
	sink BboSink,
	config EngineConfig,
	log logger.LoggerInterface,
) (*Engine, error) {
	if config.BookDepth <= 0 {
		config.BookDepth = 10
	}

	e := &Engine{
		source:     source,
		normalizer: normalizer,
		sink:       sink,
		config:     config,
		logger:     log,
		states:     make(map[string]*instrumentState),
		now:        time.Now,
		tracer:     otel.Tracer(tracerName),
	}

	if err := e.initMetrics(); err != nil {
		return nil, err
	}

	return e, nil
}

func (e *Engine) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	e.metrics = &engineMetrics{}

	e.metrics.messagesProcessed, err = meter.Int64Counter(
		"feed_messages_processed_total",
		metric.WithDescription("Total normalized messages processed by type"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return err
	}

	e.metrics.sequenceGaps, err = meter.Int64Counter(
		"feed_sequence_gaps_total",
		metric.WithDescription("Total book delta sequence gaps detected"),
		metric.WithUnit("{gap}"),
	)
	if err != nil {
		return err
	}

	e.metrics.bboEmitted, err = meter.Int64Counter(
		"feed_bbo_emitted_total",
		metric.WithDescription("Total BBO change records emitted"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return err
	}

	e.metrics.egressErrors, err = meter.Int64Counter(
		"feed_egress_errors_total",
		metric.WithDescription("Total BBO publish failures"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	e.metrics.processLatency, err = meter.Float64Histogram(
		"feed_process_latency_ms",
		metric.WithDescription("Time to process one frame in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50),
	)
	return err
}

// Run reads frames until the source reports EOF, the context is cancelled
// or the configured message cap is reached. Each frame completes fully
// before the next is read, so book updates are never left partial.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info(ctx, "feed engine started",
		"max_messages", e.config.MaxMessages,
		"book_depth", e.config.BookDepth,
	)

	var processed uint64
	for {
		select {
		case <-ctx.Done():
			e.logger.Info(ctx, "feed engine stopping", "reason", "context cancelled")
			return ctx.Err()
		default:
		}

		payload, err := e.source.Recv(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				e.logger.Info(ctx, "feed engine stopping", "reason", "ingress closed")
				return nil
			}
			return err
		}

		e.processFrame(ctx, payload)

		processed++
		if e.config.MaxMessages > 0 && processed >= e.config.MaxMessages {
			e.logger.Info(ctx, "feed engine stopping", "reason", "message cap reached",
				"processed", processed)
			return nil
		}
	}
}

// processFrame normalizes and dispatches one raw payload.
func (e *Engine) processFrame(ctx context.Context, payload []byte) {
	start := e.now()

	msg, err := e.normalizer.Parse(ctx, payload)
	if err != nil {
		// Malformed frame: drop and continue. The normalizer already
		// logged the offending payload.
		e.parseErrorCount.Add(1)
		return
	}

	attrs := metric.WithAttributes(attribute.String("message.type", msg.Type.String()))
	e.metrics.messagesProcessed.Add(ctx, 1, attrs)

	switch msg.Type {
	case domain.TypeBookSnapshot:
		e.snapshotCount.Add(1)
		e.applySnapshot(ctx, msg.Snapshot)
	case domain.TypeBookDelta:
		e.deltaCount.Add(1)
		e.applyDelta(ctx, msg.Delta)
	case domain.TypeTrade:
		// Trades never touch the book; they are counted for downstream
		// rate monitoring only.
		e.tradeCount.Add(1)
	default:
		e.unknownCount.Add(1)
		e.logger.Debug(ctx, "dropping unknown message", "payload_len", len(payload))
	}

	latency := float64(e.now().Sub(start).Microseconds()) / 1000.0
	e.metrics.processLatency.Record(ctx, latency, attrs)
}

// applySnapshot replaces the instrument's book state and re-arms BBO
// emission. A snapshot always recovers a Broken instrument.
func (e *Engine) applySnapshot(ctx context.Context, snap *domain.BookSnapshot) {
	st, ok := e.states[snap.Instrument]
	if !ok {
		st = &instrumentState{book: domain.NewOrderBook(e.config.BookDepth)}
		e.states[snap.Instrument] = st
	}

	st.book.Reset()
	st.crossedReported = false
	e.applyLevels(ctx, st, snap.Instrument, snap.Bids, snap.Asks)

	st.lastSeq = snap.U
	st.broken = false
	st.hasBBO = false

	if st.book.BidDepth() == 0 && st.book.AskDepth() == 0 {
		return
	}

	e.emitBBO(ctx, st, snap.Instrument, snap.U)
	e.reportCrossed(ctx, st, snap.Instrument)
}

// applyDelta validates the sequence contract and applies the update.
func (e *Engine) applyDelta(ctx context.Context, delta *domain.BookDelta) {
	st, ok := e.states[delta.Instrument]
	if !ok {
		e.logger.Warn(ctx, "no orderbook exists for instrument, dropping delta",
			"instrument", delta.Instrument,
			"u", delta.U,
			"pu", delta.PU,
		)
		return
	}

	if st.broken {
		// Already reported; stay silent until the next snapshot recovers.
		return
	}

	if delta.PU != st.lastSeq {
		st.broken = true
		e.gapCount.Add(1)
		e.metrics.sequenceGaps.Add(ctx, 1,
			metric.WithAttributes(attribute.String("instrument", delta.Instrument)))
		e.logger.Error(ctx, "sequence mismatch, book marked broken until next snapshot",
			"instrument", delta.Instrument,
			"expected", st.lastSeq,
			"got", delta.PU,
		)
		return
	}

	e.applyLevels(ctx, st, delta.Instrument, delta.Bids, delta.Asks)
	st.lastSeq = delta.U

	e.emitBBO(ctx, st, delta.Instrument, delta.U)
	e.reportCrossed(ctx, st, delta.Instrument)
}

// applyLevels mutates the book with one batch of bid and ask levels.
// Order within the batch is irrelevant: each price is uniquely keyed.
func (e *Engine) applyLevels(ctx context.Context, st *instrumentState, instrument string, bids, asks []domain.Level) {
	for _, lvl := range bids {
		price, size, err := levelFloats(lvl)
		if err != nil {
			e.logger.Warn(ctx, "skipping unparseable bid level",
				"instrument", instrument, "price", lvl.Price, "size", lvl.Size, "error", err)
			continue
		}
		st.book.UpdateBid(price, size)
	}
	for _, lvl := range asks {
		price, size, err := levelFloats(lvl)
		if err != nil {
			e.logger.Warn(ctx, "skipping unparseable ask level",
				"instrument", instrument, "price", lvl.Price, "size", lvl.Size, "error", err)
			continue
		}
		st.book.UpdateAsk(price, size)
	}
}

func levelFloats(lvl domain.Level) (price, size float64, err error) {
	if price, err = lvl.PriceFloat(); err != nil {
		return 0, 0, err
	}
	if size, err = lvl.SizeFloat(); err != nil {
		return 0, 0, err
	}
	return price, size, nil
}

// emitBBO publishes the current BBO if it changed since the last emission
// for this instrument. The recorded BBO advances even when the sink fails,
// so a failed publish is retried on the next change, not on the same one.
func (e *Engine) emitBBO(ctx context.Context, st *instrumentState, instrument string, seq uint64) {
	bid, ask := st.book.BBO()
	if st.hasBBO && bid == st.lastBid && ask == st.lastAsk {
		return
	}

	st.hasBBO = true
	st.lastBid = bid
	st.lastAsk = ask

	update := domain.BboUpdate{
		Instrument:      instrument,
		BestBid:         bid,
		BestAsk:         ask,
		SequenceNumber:  seq,
		TimestampMicros: uint64(e.now().UnixMicro()),
	}

	e.bboCount.Add(1)
	e.metrics.bboEmitted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("instrument", instrument)))

	if e.sink == nil {
		return
	}
	if err := e.sink.Publish(ctx, update); err != nil {
		e.metrics.egressErrors.Add(ctx, 1)
		e.logger.Error(ctx, "failed to publish BBO update",
			"instrument", instrument,
			"sequence", seq,
			"error", err,
		)
	}
}

// reportCrossed logs a crossed book once per corruption episode.
func (e *Engine) reportCrossed(ctx context.Context, st *instrumentState, instrument string) {
	if !st.book.Crossed() || st.crossedReported {
		return
	}
	st.crossedReported = true

	bid, ask := st.book.BBO()
	e.logger.Error(ctx, "crossed book detected",
		"instrument", instrument,
		"best_bid", bid,
		"best_ask", ask,
	)
}

// Counters returns a snapshot of the engine's message counters. Safe to
// call from any goroutine.
func (e *Engine) Counters() Counters {
	return Counters{
		Snapshots:    e.snapshotCount.Load(),
		Deltas:       e.deltaCount.Load(),
		Trades:       e.tradeCount.Load(),
		Unknown:      e.unknownCount.Load(),
		ParseErrors:  e.parseErrorCount.Load(),
		SequenceGaps: e.gapCount.Load(),
		BboEmitted:   e.bboCount.Load(),
	}
}
