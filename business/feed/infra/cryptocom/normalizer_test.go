package cryptocom

import (
	"context"
	"io"
	"testing"

	"github.com/fd1az/feedpipe/business/feed/domain"
	"github.com/fd1az/feedpipe/internal/logger"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := NewNormalizer(logger.New(io.Discard, logger.LevelError, "test", nil))
	if err != nil {
		t.Fatalf("NewNormalizer failed: %v", err)
	}
	return n
}

const snapshotPayload = `{
	"id": -1,
	"method": "subscribe",
	"code": 0,
	"result": {
		"instrument_name": "BTCUSD-PERP",
		"subscription": "book.BTCUSD-PERP.10",
		"channel": "book",
		"depth": 10,
		"data": [{
			"asks": [
				["30082.5", "0.1689", "1"],
				["30083.0", "0.1288", "1"],
				["30084.5", "0.0171", "1"]
			],
			"bids": [
				["30079.0", "0.0505", "1"],
				["30077.5", "1.0527", "2"],
				["30076.0", "0.1689", "1"]
			],
			"t": 1654780033786,
			"tt": 1654780033755,
			"u": 542048017824
		}]
	}
}`

const deltaPayload = `{
	"id": -1,
	"method": "subscribe",
	"code": 0,
	"result": {
		"instrument_name": "BTCUSD-PERP",
		"subscription": "book.BTCUSD-PERP.10",
		"channel": "book.update",
		"depth": 10,
		"data": [{
			"update": {
				"asks": [
					["50126.000000", "0", "0"],
					["50180.000000", "3.279000", "10"]
				],
				"bids": [
					["50097.000000", "0.252000", "1"]
				]
			},
			"tt": 1647917463003,
			"t": 1647917463003,
			"u": 7845460002,
			"pu": 7845460001
		}]
	}
}`

const tradePayload = `{
	"id": -1,
	"method": "subscribe",
	"code": 0,
	"result": {
		"instrument_name": "ETHUSD-PERP",
		"subscription": "trade.ETHUSD-PERP",
		"channel": "trade",
		"data": [{
			"d": "4611686018455979070",
			"t": 1758447954211,
			"p": "4457.07",
			"q": "0.05",
			"s": "BUY",
			"i": "ETHUSD-PERP"
		}]
	}
}`

func TestNormalizer_ParseSnapshot(t *testing.T) {
	n := newTestNormalizer(t)

	msg, err := n.Parse(context.Background(), []byte(snapshotPayload))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if msg.Type != domain.TypeBookSnapshot {
		t.Fatalf("type = %v, want book_snapshot", msg.Type)
	}

	snap := msg.Snapshot
	if snap.Instrument != "BTCUSD-PERP" {
		t.Errorf("instrument = %q, want BTCUSD-PERP", snap.Instrument)
	}
	if snap.Depth != 10 {
		t.Errorf("depth = %d, want 10", snap.Depth)
	}
	if snap.T != 1654780033786 || snap.TT != 1654780033755 {
		t.Errorf("timestamps = (%d, %d)", snap.T, snap.TT)
	}
	if snap.U != 542048017824 {
		t.Errorf("u = %d, want 542048017824", snap.U)
	}

	if len(snap.Asks) != 3 {
		t.Fatalf("asks = %d, want 3", len(snap.Asks))
	}
	if snap.Asks[0] != (domain.Level{Price: "30082.5", Size: "0.1689", NumOrders: "1"}) {
		t.Errorf("asks[0] = %+v", snap.Asks[0])
	}
	if len(snap.Bids) != 3 {
		t.Fatalf("bids = %d, want 3", len(snap.Bids))
	}
	if snap.Bids[0] != (domain.Level{Price: "30079.0", Size: "0.0505", NumOrders: "1"}) {
		t.Errorf("bids[0] = %+v", snap.Bids[0])
	}
}

func TestNormalizer_ParseDelta(t *testing.T) {
	n := newTestNormalizer(t)

	msg, err := n.Parse(context.Background(), []byte(deltaPayload))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if msg.Type != domain.TypeBookDelta {
		t.Fatalf("type = %v, want book_delta", msg.Type)
	}

	delta := msg.Delta
	if delta.Instrument != "BTCUSD-PERP" {
		t.Errorf("instrument = %q", delta.Instrument)
	}
	if delta.U != 7845460002 || delta.PU != 7845460001 {
		t.Errorf("sequence = (u=%d, pu=%d)", delta.U, delta.PU)
	}
	if len(delta.Asks) != 2 {
		t.Fatalf("asks = %d, want 2", len(delta.Asks))
	}
	if delta.Asks[0].Size != "0" {
		t.Errorf("asks[0].Size = %q, want removal marker \"0\"", delta.Asks[0].Size)
	}
	if len(delta.Bids) != 1 {
		t.Fatalf("bids = %d, want 1", len(delta.Bids))
	}
	if delta.Bids[0].Price != "50097.000000" {
		t.Errorf("bids[0].Price = %q", delta.Bids[0].Price)
	}
}

func TestNormalizer_ParseTrade(t *testing.T) {
	n := newTestNormalizer(t)

	msg, err := n.Parse(context.Background(), []byte(tradePayload))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if msg.Type != domain.TypeTrade {
		t.Fatalf("type = %v, want trade", msg.Type)
	}
	if len(msg.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(msg.Trades))
	}

	trade := msg.Trades[0]
	if trade.Instrument != "ETHUSD-PERP" {
		t.Errorf("instrument = %q", trade.Instrument)
	}
	if trade.ID != "4611686018455979070" {
		t.Errorf("id = %q", trade.ID)
	}
	if trade.Price.String() != "4457.07" {
		t.Errorf("price = %s, want 4457.07", trade.Price)
	}
	if trade.Quantity.String() != "0.05" {
		t.Errorf("quantity = %s, want 0.05", trade.Quantity)
	}
	if trade.Side != domain.SideBuy {
		t.Errorf("side = %q, want BUY", trade.Side)
	}
}

func TestNormalizer_MalformedJSONIsParseError(t *testing.T) {
	n := newTestNormalizer(t)

	for _, payload := range []string{"invalid json", "", "{"} {
		if _, err := n.Parse(context.Background(), []byte(payload)); err == nil {
			t.Errorf("payload %q: expected parse error", payload)
		}
	}
}

func TestNormalizer_UnrecognizedStructureIsUnknown(t *testing.T) {
	n := newTestNormalizer(t)

	cases := []struct {
		name    string
		payload string
	}{
		{"no result", `{"invalid": "json", "structure": true}`},
		{"unknown channel", `{"result":{"channel":"ticker","instrument_name":"X","data":[{}]}}`},
		{"heartbeat", `{"id":1,"method":"public/heartbeat"}`},
		{"non-object root", `"just a string"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := n.Parse(context.Background(), []byte(tc.payload))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if msg.Type != domain.TypeUnknown {
				t.Errorf("type = %v, want unknown", msg.Type)
			}
		})
	}
}

func TestNormalizer_MissingRequiredFieldsDowngrade(t *testing.T) {
	n := newTestNormalizer(t)

	cases := []struct {
		name    string
		payload string
	}{
		{
			"snapshot without instrument",
			`{"result":{"channel":"book","depth":10,"data":[{"asks":[],"bids":[],"u":5}]}}`,
		},
		{
			"snapshot without sequence",
			`{"result":{"channel":"book","instrument_name":"BTCUSD-PERP","data":[{"asks":[],"bids":[]}]}}`,
		},
		{
			"delta without pu",
			`{"result":{"channel":"book.update","instrument_name":"BTCUSD-PERP","data":[{"update":{"asks":[],"bids":[]},"u":5}]}}`,
		},
		{
			"snapshot with empty data array",
			`{"result":{"channel":"book","instrument_name":"BTCUSD-PERP","data":[]}}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := n.Parse(context.Background(), []byte(tc.payload))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if msg.Type != domain.TypeUnknown {
				t.Errorf("type = %v, want unknown", msg.Type)
			}
		})
	}
}

func TestNormalizer_DeltaWithZeroPU(t *testing.T) {
	n := newTestNormalizer(t)

	// pu=0 is a legal value, not a missing field.
	payload := `{"result":{"channel":"book.update","instrument_name":"Y","data":[{"update":{"asks":[],"bids":[]},"u":1,"pu":0}]}}`
	msg, err := n.Parse(context.Background(), []byte(payload))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if msg.Type != domain.TypeBookDelta {
		t.Fatalf("type = %v, want book_delta", msg.Type)
	}
	if msg.Delta.PU != 0 || msg.Delta.U != 1 {
		t.Errorf("sequence = (u=%d, pu=%d), want (1, 0)", msg.Delta.U, msg.Delta.PU)
	}
}

func TestNormalizer_ShortLevelsAreSkipped(t *testing.T) {
	n := newTestNormalizer(t)

	payload := `{"result":{"channel":"book","instrument_name":"BTCUSD-PERP","data":[{
		"asks":[["30082.5","0.1689","1"],["30083.0","0.5"]],
		"bids":[["30079.0"]],
		"u":7
	}]}}`

	msg, err := n.Parse(context.Background(), []byte(payload))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(msg.Snapshot.Asks) != 1 {
		t.Errorf("asks = %d, want 1 (short entry skipped)", len(msg.Snapshot.Asks))
	}
	if len(msg.Snapshot.Bids) != 0 {
		t.Errorf("bids = %d, want 0", len(msg.Snapshot.Bids))
	}
}
