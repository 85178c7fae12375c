package app

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/fd1az/feedpipe/business/feed/domain"
	"github.com/fd1az/feedpipe/internal/logger"
)

// stubNormalizer maps payload strings to pre-built messages.
type stubNormalizer struct {
	msgs map[string]domain.Message
}

func (s *stubNormalizer) Parse(_ context.Context, payload []byte) (domain.Message, error) {
	msg, ok := s.msgs[string(payload)]
	if !ok {
		return domain.Message{}, errors.New("malformed json")
	}
	return msg, nil
}

// chanSource delivers frames from a channel; a closed channel is EOF.
type chanSource struct {
	frames chan []byte
}

func (c *chanSource) Recv(_ context.Context) ([]byte, error) {
	frame, ok := <-c.frames
	if !ok {
		return nil, io.EOF
	}
	return frame, nil
}

// captureSink records published updates and optionally fails.
type captureSink struct {
	updates []domain.BboUpdate
	err     error
}

func (c *captureSink) Publish(_ context.Context, update domain.BboUpdate) error {
	if c.err != nil {
		return c.err
	}
	c.updates = append(c.updates, update)
	return nil
}

type engineFixture struct {
	engine *Engine
	sink   *captureSink
	norm   *stubNormalizer
	frames chan []byte
}

func newEngineFixture(t *testing.T, maxMessages uint64) *engineFixture {
	t.Helper()

	norm := &stubNormalizer{msgs: make(map[string]domain.Message)}
	sink := &captureSink{}
	frames := make(chan []byte, 64)

	engine, err := NewEngine(
		&chanSource{frames: frames},
		norm,
		sink,
		EngineConfig{MaxMessages: maxMessages, BookDepth: 10},
		logger.New(io.Discard, logger.LevelError, "test", nil),
	)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	engine.now = func() time.Time { return time.UnixMicro(1654780033786000) }

	return &engineFixture{engine: engine, sink: sink, norm: norm, frames: frames}
}

// feed registers a message under a synthetic payload and processes it.
func (f *engineFixture) feed(msg domain.Message) {
	key := string(rune('a' + len(f.norm.msgs)))
	f.norm.msgs[key] = msg
	f.engine.processFrame(context.Background(), []byte(key))
}

func level(price, size string) domain.Level {
	return domain.Level{Price: price, Size: size, NumOrders: "1"}
}

func snapshotMsg(instrument string, u uint64, bids, asks []domain.Level) domain.Message {
	return domain.Message{
		Type: domain.TypeBookSnapshot,
		Snapshot: &domain.BookSnapshot{
			Instrument: instrument,
			Depth:      10,
			Bids:       bids,
			Asks:       asks,
			U:          u,
		},
	}
}

func deltaMsg(instrument string, u, pu uint64, bids, asks []domain.Level) domain.Message {
	return domain.Message{
		Type: domain.TypeBookDelta,
		Delta: &domain.BookDelta{
			Instrument: instrument,
			Depth:      10,
			Bids:       bids,
			Asks:       asks,
			U:          u,
			PU:         pu,
		},
	}
}

func TestEngine_SnapshotThenValidDelta(t *testing.T) {
	f := newEngineFixture(t, 0)

	f.feed(snapshotMsg("X", 100,
		[]domain.Level{level("50113.5", "0.4")},
		[]domain.Level{level("50126", "0.4")},
	))

	if len(f.sink.updates) != 1 {
		t.Fatalf("updates after snapshot = %d, want 1", len(f.sink.updates))
	}
	got := f.sink.updates[0]
	if got.BestBid != 50113.5 || got.BestAsk != 50126 || got.SequenceNumber != 100 {
		t.Errorf("snapshot BBO = %+v, want (50113.5, 50126, u=100)", got)
	}
	if got.Instrument != "X" {
		t.Errorf("instrument = %q, want X", got.Instrument)
	}

	// Delta empties the bid side.
	f.feed(deltaMsg("X", 101, 100,
		[]domain.Level{level("50113.5", "0")},
		nil,
	))

	if len(f.sink.updates) != 2 {
		t.Fatalf("updates after delta = %d, want 2", len(f.sink.updates))
	}
	got = f.sink.updates[1]
	if got.BestBid != 0 || got.BestAsk != 50126 || got.SequenceNumber != 101 {
		t.Errorf("delta BBO = %+v, want (0, 50126, u=101)", got)
	}
}

func TestEngine_SequenceGap(t *testing.T) {
	f := newEngineFixture(t, 0)

	f.feed(snapshotMsg("X", 10,
		[]domain.Level{level("100", "1")},
		[]domain.Level{level("101", "1")},
	))
	emitted := len(f.sink.updates)

	// pu=9 does not match last applied u=10.
	f.feed(deltaMsg("X", 11, 9,
		[]domain.Level{level("100", "0")},
		nil,
	))

	if len(f.sink.updates) != emitted {
		t.Error("sequence gap must not emit a BBO update")
	}
	if got := f.engine.Counters().SequenceGaps; got != 1 {
		t.Errorf("sequence gaps = %d, want 1", got)
	}

	// Book state is preserved: subsequent deltas are dropped silently.
	f.feed(deltaMsg("X", 12, 11, []domain.Level{level("100", "0")}, nil))
	if got := f.engine.Counters().SequenceGaps; got != 1 {
		t.Errorf("broken instrument reported again: gaps = %d, want 1", got)
	}
	if len(f.sink.updates) != emitted {
		t.Error("broken instrument must not emit")
	}

	// Next snapshot recovers.
	f.feed(snapshotMsg("X", 20,
		[]domain.Level{level("99", "1")},
		[]domain.Level{level("102", "1")},
	))
	if len(f.sink.updates) != emitted+1 {
		t.Fatalf("recovery snapshot must emit, got %d updates", len(f.sink.updates))
	}
	recovered := f.sink.updates[len(f.sink.updates)-1]
	if recovered.BestBid != 99 || recovered.BestAsk != 102 || recovered.SequenceNumber != 20 {
		t.Errorf("recovered BBO = %+v", recovered)
	}

	// And deltas chain from the new sequence.
	f.feed(deltaMsg("X", 21, 20, []domain.Level{level("99.5", "1")}, nil))
	last := f.sink.updates[len(f.sink.updates)-1]
	if last.BestBid != 99.5 || last.SequenceNumber != 21 {
		t.Errorf("post-recovery delta BBO = %+v", last)
	}
}

func TestEngine_DeltaBeforeSnapshot(t *testing.T) {
	f := newEngineFixture(t, 0)

	f.feed(deltaMsg("Y", 1, 0, []domain.Level{level("100", "1")}, nil))

	counters := f.engine.Counters()
	if counters.Deltas != 1 {
		t.Errorf("delta count = %d, want 1", counters.Deltas)
	}
	if len(f.sink.updates) != 0 {
		t.Error("delta before snapshot must not emit")
	}

	// Engine continues: a snapshot for the instrument works normally.
	f.feed(snapshotMsg("Y", 5,
		[]domain.Level{level("100", "1")},
		[]domain.Level{level("101", "1")},
	))
	if len(f.sink.updates) != 1 {
		t.Error("engine should process snapshot after rejected delta")
	}
}

func TestEngine_IdempotentBBO(t *testing.T) {
	f := newEngineFixture(t, 0)

	f.feed(snapshotMsg("X", 100,
		[]domain.Level{level("100", "1")},
		[]domain.Level{level("101", "1")},
	))

	// New bid below the best leaves the BBO untouched.
	f.feed(deltaMsg("X", 101, 100, []domain.Level{level("99", "5")}, nil))

	if len(f.sink.updates) != 1 {
		t.Errorf("updates = %d, want 1 (no emission for unchanged BBO)", len(f.sink.updates))
	}
}

func TestEngine_SameSizeTwiceEmitsOnce(t *testing.T) {
	f := newEngineFixture(t, 0)

	f.feed(snapshotMsg("X", 100,
		[]domain.Level{level("100", "1")},
		[]domain.Level{level("105", "1")},
	))
	base := len(f.sink.updates)

	// New best bid at 101: one emission.
	f.feed(deltaMsg("X", 101, 100, []domain.Level{level("101", "5")}, nil))
	// Same price, same size again: nothing changed.
	f.feed(deltaMsg("X", 102, 101, []domain.Level{level("101", "5")}, nil))

	if got := len(f.sink.updates) - base; got != 1 {
		t.Errorf("delta emissions = %d, want 1", got)
	}
}

func TestEngine_RemoveAbsentPriceIsNoOp(t *testing.T) {
	f := newEngineFixture(t, 0)

	f.feed(snapshotMsg("X", 100,
		[]domain.Level{level("100", "1")},
		[]domain.Level{level("101", "1")},
	))
	base := len(f.sink.updates)

	f.feed(deltaMsg("X", 101, 100, []domain.Level{level("95", "0")}, nil))

	if got := len(f.sink.updates) - base; got != 0 {
		t.Errorf("emissions = %d, want 0", got)
	}
}

func TestEngine_EmptyDeltaNoMutation(t *testing.T) {
	f := newEngineFixture(t, 0)

	f.feed(snapshotMsg("X", 100,
		[]domain.Level{level("100", "1")},
		[]domain.Level{level("101", "1")},
	))
	base := len(f.sink.updates)

	f.feed(deltaMsg("X", 101, 100, nil, nil))

	if got := len(f.sink.updates) - base; got != 0 {
		t.Errorf("emissions = %d, want 0", got)
	}
	// Sequence still advances: the next delta chains from u=101.
	f.feed(deltaMsg("X", 102, 101, []domain.Level{level("100.5", "1")}, nil))
	if f.engine.Counters().SequenceGaps != 0 {
		t.Error("empty delta must still advance the sequence")
	}
}

func TestEngine_EmptyBidSideSnapshot(t *testing.T) {
	f := newEngineFixture(t, 0)

	f.feed(snapshotMsg("X", 100, nil, []domain.Level{level("101", "1")}))

	if len(f.sink.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(f.sink.updates))
	}
	got := f.sink.updates[0]
	if got.BestBid != 0 || got.BestAsk != 101 {
		t.Errorf("BBO = (%v, %v), want (0, 101)", got.BestBid, got.BestAsk)
	}
}

func TestEngine_BookEmptiesToZeroZero(t *testing.T) {
	f := newEngineFixture(t, 0)

	f.feed(snapshotMsg("X", 100,
		[]domain.Level{level("100", "1")},
		[]domain.Level{level("101", "1")},
	))

	f.feed(deltaMsg("X", 101, 100,
		[]domain.Level{level("100", "0")},
		[]domain.Level{level("101", "0")},
	))

	got := f.sink.updates[len(f.sink.updates)-1]
	if got.BestBid != 0 || got.BestAsk != 0 {
		t.Errorf("BBO = (%v, %v), want (0, 0)", got.BestBid, got.BestAsk)
	}
}

func TestEngine_TradePassthrough(t *testing.T) {
	f := newEngineFixture(t, 0)

	f.feed(snapshotMsg("X", 100,
		[]domain.Level{level("100", "1")},
		[]domain.Level{level("101", "1")},
	))
	base := len(f.sink.updates)

	f.feed(domain.Message{
		Type:   domain.TypeTrade,
		Trades: []domain.Trade{{Instrument: "X", ID: "t1", Side: domain.SideBuy}},
	})

	counters := f.engine.Counters()
	if counters.Trades != 1 {
		t.Errorf("trade count = %d, want 1", counters.Trades)
	}
	if got := len(f.sink.updates) - base; got != 0 {
		t.Error("trades must not emit BBO updates")
	}
}

func TestEngine_MalformedFrame(t *testing.T) {
	f := newEngineFixture(t, 0)

	before := f.engine.Counters()
	f.engine.processFrame(context.Background(), []byte("invalid json"))
	after := f.engine.Counters()

	if after.ParseErrors != before.ParseErrors+1 {
		t.Errorf("parse errors = %d, want %d", after.ParseErrors, before.ParseErrors+1)
	}
	if after.Snapshots != before.Snapshots || after.Deltas != before.Deltas ||
		after.Trades != before.Trades || after.Unknown != before.Unknown {
		t.Error("message counters must not move on a parse error")
	}

	// Engine stays ready for the next frame.
	f.feed(snapshotMsg("X", 1,
		[]domain.Level{level("100", "1")},
		[]domain.Level{level("101", "1")},
	))
	if f.engine.Counters().Snapshots != 1 {
		t.Error("engine should accept frames after a parse error")
	}
}

func TestEngine_UnknownMessageCounted(t *testing.T) {
	f := newEngineFixture(t, 0)

	f.feed(domain.UnknownMessage())

	if got := f.engine.Counters().Unknown; got != 1 {
		t.Errorf("unknown count = %d, want 1", got)
	}
	if len(f.sink.updates) != 0 {
		t.Error("unknown messages must be a no-op")
	}
}

func TestEngine_CounterSumMatchesFrames(t *testing.T) {
	f := newEngineFixture(t, 0)

	f.feed(snapshotMsg("X", 1, []domain.Level{level("100", "1")}, nil))
	f.feed(deltaMsg("X", 2, 1, []domain.Level{level("99", "1")}, nil))
	f.feed(domain.Message{Type: domain.TypeTrade, Trades: []domain.Trade{{Instrument: "X"}}})
	f.feed(domain.UnknownMessage())
	f.feed(deltaMsg("X", 3, 2, nil, nil))

	c := f.engine.Counters()
	if sum := c.Snapshots + c.Deltas + c.Trades + c.Unknown; sum != 5 {
		t.Errorf("counter sum = %d, want 5 frames", sum)
	}
}

func TestEngine_SnapshotReplacesRegardlessOfHistory(t *testing.T) {
	f := newEngineFixture(t, 0)

	// Build up one history.
	f.feed(snapshotMsg("X", 1,
		[]domain.Level{level("100", "1"), level("99", "2")},
		[]domain.Level{level("101", "1")},
	))
	f.feed(deltaMsg("X", 2, 1, []domain.Level{level("98", "3")}, nil))

	// Replacement snapshot fully determines the state.
	replacement := snapshotMsg("X", 50,
		[]domain.Level{level("200", "1")},
		[]domain.Level{level("201", "1")},
	)
	f.feed(replacement)

	got := f.sink.updates[len(f.sink.updates)-1]
	if got.BestBid != 200 || got.BestAsk != 201 || got.SequenceNumber != 50 {
		t.Errorf("BBO after replacement = %+v", got)
	}

	// A delta against the pre-replacement sequence is a gap.
	f.feed(deltaMsg("X", 51, 2, []domain.Level{level("200", "0")}, nil))
	if f.engine.Counters().SequenceGaps != 1 {
		t.Error("delta chaining from replaced history must be a gap")
	}
}

func TestEngine_SnapshotTwiceIsIdempotentInBookState(t *testing.T) {
	f := newEngineFixture(t, 0)

	snap := func() domain.Message {
		return snapshotMsg("X", 7,
			[]domain.Level{level("100", "1")},
			[]domain.Level{level("101", "1")},
		)
	}
	f.feed(snap())
	f.feed(snap())

	// Book state is identical: a delta from u=7 applies cleanly.
	f.feed(deltaMsg("X", 8, 7, []domain.Level{level("100.5", "1")}, nil))
	if f.engine.Counters().SequenceGaps != 0 {
		t.Error("second identical snapshot must leave a consistent sequence")
	}
	last := f.sink.updates[len(f.sink.updates)-1]
	if last.BestBid != 100.5 {
		t.Errorf("best bid = %v, want 100.5", last.BestBid)
	}
}

func TestEngine_EgressFailureDoesNotStopEngine(t *testing.T) {
	f := newEngineFixture(t, 0)
	f.sink.err = errors.New("broken pipe")

	f.feed(snapshotMsg("X", 1,
		[]domain.Level{level("100", "1")},
		[]domain.Level{level("101", "1")},
	))

	// The failed emission is not retried for the same BBO...
	f.sink.err = nil
	f.feed(deltaMsg("X", 2, 1, []domain.Level{level("99", "1")}, nil))
	if len(f.sink.updates) != 0 {
		t.Error("unchanged BBO after failed publish must not re-emit")
	}

	// ...but the next change goes out.
	f.feed(deltaMsg("X", 3, 2, []domain.Level{level("100.5", "1")}, nil))
	if len(f.sink.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(f.sink.updates))
	}
	if f.sink.updates[0].BestBid != 100.5 {
		t.Errorf("best bid = %v, want 100.5", f.sink.updates[0].BestBid)
	}
}

func TestEngine_InstrumentsAreIsolated(t *testing.T) {
	f := newEngineFixture(t, 0)

	f.feed(snapshotMsg("A", 10, []domain.Level{level("1", "1")}, []domain.Level{level("2", "1")}))
	f.feed(snapshotMsg("B", 20, []domain.Level{level("3", "1")}, []domain.Level{level("4", "1")}))

	// Break instrument A.
	f.feed(deltaMsg("A", 12, 11, nil, nil))
	if f.engine.Counters().SequenceGaps != 1 {
		t.Fatal("expected gap on A")
	}

	// B still processes deltas.
	f.feed(deltaMsg("B", 21, 20, []domain.Level{level("3.5", "1")}, nil))
	last := f.sink.updates[len(f.sink.updates)-1]
	if last.Instrument != "B" || last.BestBid != 3.5 {
		t.Errorf("B update = %+v", last)
	}
}

func TestEngine_RunStopsAtMessageCap(t *testing.T) {
	f := newEngineFixture(t, 3)

	msg := snapshotMsg("X", 1, []domain.Level{level("100", "1")}, []domain.Level{level("101", "1")})
	for i := 0; i < 3; i++ {
		key := string(rune('a' + i))
		f.norm.msgs[key] = msg
		f.frames <- []byte(key)
	}

	done := make(chan error, 1)
	go func() { done <- f.engine.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop at the message cap")
	}

	if got := f.engine.Counters().Snapshots; got != 3 {
		t.Errorf("snapshots = %d, want 3", got)
	}
}

func TestEngine_RunStopsOnEOF(t *testing.T) {
	f := newEngineFixture(t, 0)
	close(f.frames)

	if err := f.engine.Run(context.Background()); err != nil {
		t.Fatalf("Run on closed source returned error: %v", err)
	}
}
