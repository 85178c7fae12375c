package instrument

import "testing"

func TestInstrument_Channels(t *testing.T) {
	inst := New("BTCUSD-PERP", 10)

	if got := inst.BookChannel(); got != "book.BTCUSD-PERP.10" {
		t.Errorf("book channel = %q", got)
	}
	if got := inst.TradeChannel(); got != "trade.BTCUSD-PERP" {
		t.Errorf("trade channel = %q", got)
	}
}

func TestInstrument_BaseQuoteDerivation(t *testing.T) {
	tests := []struct {
		symbol string
		base   string
		quote  string
	}{
		{"BTCUSD-PERP", "BTC", "USD"},
		{"ETHUSD-PERP", "ETH", "USD"},
		{"WEIRD", "", ""}, // no dash, nothing derivable
	}

	for _, tt := range tests {
		inst := New(tt.symbol, 10)
		if inst.Base() != tt.base || inst.Quote() != tt.quote {
			t.Errorf("%s: base/quote = (%q, %q), want (%q, %q)",
				tt.symbol, inst.Base(), inst.Quote(), tt.base, tt.quote)
		}
	}
}

func TestRegistry_ChannelsOrder(t *testing.T) {
	r := FromSymbols([]string{"BTCUSD-PERP", "ETHUSD-PERP"}, 10)

	want := []string{
		"book.BTCUSD-PERP.10",
		"book.ETHUSD-PERP.10",
		"trade.BTCUSD-PERP",
		"trade.ETHUSD-PERP",
	}
	got := r.Channels()
	if len(got) != len(want) {
		t.Fatalf("channels = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("channels[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()

	r := NewRegistry()
	r.Register(New("BTCUSD-PERP", 10))
	r.Register(New("BTCUSD-PERP", 10))
}
