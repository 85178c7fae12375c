package domain

import "testing"

func TestOrderBook_BBO(t *testing.T) {
	ob := NewOrderBook(10)
	ob.UpdateBid(100.0, 1.5)
	ob.UpdateAsk(101.0, 2.0)

	bid, ask := ob.BBO()
	if bid != 100.0 {
		t.Errorf("best bid = %v, want 100.0", bid)
	}
	if ask != 101.0 {
		t.Errorf("best ask = %v, want 101.0", ask)
	}
}

func TestOrderBook_BestBidIsHighest(t *testing.T) {
	ob := NewOrderBook(10)
	ob.UpdateBid(100.0, 1.0)
	ob.UpdateBid(99.0, 2.0)
	ob.UpdateBid(100.5, 0.5)
	ob.UpdateAsk(102.0, 1.0)

	bid, _ := ob.BBO()
	if bid != 100.5 {
		t.Errorf("best bid = %v, want 100.5", bid)
	}
}

func TestOrderBook_BestAskIsLowest(t *testing.T) {
	ob := NewOrderBook(10)
	ob.UpdateAsk(101.0, 1.0)
	ob.UpdateAsk(100.25, 2.0)
	ob.UpdateAsk(103.0, 0.5)

	_, ask := ob.BBO()
	if ask != 100.25 {
		t.Errorf("best ask = %v, want 100.25", ask)
	}
}

func TestOrderBook_OverwriteExistingLevel(t *testing.T) {
	ob := NewOrderBook(10)
	ob.UpdateBid(100.0, 1.0)
	ob.UpdateBid(100.0, 3.0)

	if got := ob.BidDepth(); got != 1 {
		t.Fatalf("bid depth = %d, want 1 (no duplicate price levels)", got)
	}
	bid, _ := ob.BBO()
	if bid != 100.0 {
		t.Errorf("best bid = %v, want 100.0", bid)
	}
}

func TestOrderBook_ZeroSizeRemovesLevel(t *testing.T) {
	ob := NewOrderBook(10)
	ob.UpdateBid(100.0, 1.0)
	ob.UpdateBid(99.0, 2.0)
	ob.UpdateBid(100.0, 0)

	if got := ob.BidDepth(); got != 1 {
		t.Fatalf("bid depth = %d, want 1", got)
	}
	bid, _ := ob.BBO()
	if bid != 99.0 {
		t.Errorf("best bid after removal = %v, want 99.0", bid)
	}
}

func TestOrderBook_RemoveAbsentPriceIsNoOp(t *testing.T) {
	ob := NewOrderBook(10)
	ob.UpdateBid(100.0, 1.0)
	ob.UpdateAsk(101.0, 1.0)

	ob.UpdateBid(98.0, 0)
	ob.UpdateAsk(105.0, 0)

	if ob.BidDepth() != 1 || ob.AskDepth() != 1 {
		t.Errorf("depths = (%d, %d), want (1, 1)", ob.BidDepth(), ob.AskDepth())
	}
}

func TestOrderBook_EmptySidesReportZero(t *testing.T) {
	ob := NewOrderBook(10)

	bid, ask := ob.BBO()
	if bid != 0 || ask != 0 {
		t.Errorf("empty book BBO = (%v, %v), want (0, 0)", bid, ask)
	}

	ob.UpdateAsk(101.0, 1.0)
	bid, ask = ob.BBO()
	if bid != 0 {
		t.Errorf("best bid with empty bid side = %v, want 0", bid)
	}
	if ask != 101.0 {
		t.Errorf("best ask = %v, want 101.0", ask)
	}
}

func TestOrderBook_SingleLevelRemovalEmptiesBook(t *testing.T) {
	ob := NewOrderBook(10)
	ob.UpdateBid(100.0, 1.0)
	ob.UpdateBid(100.0, 0)

	bid, ask := ob.BBO()
	if bid != 0 || ask != 0 {
		t.Errorf("BBO after emptying = (%v, %v), want (0, 0)", bid, ask)
	}
}

func TestOrderBook_OrderingMaintainedUnderChurn(t *testing.T) {
	ob := NewOrderBook(10)

	bids := []float64{50113.5, 50110.0, 50112.0, 50111.5, 50114.0}
	for _, p := range bids {
		ob.UpdateBid(p, 1.0)
	}
	asks := []float64{50126.0, 50130.0, 50124.5, 50128.0}
	for _, p := range asks {
		ob.UpdateAsk(p, 1.0)
	}

	bid, ask := ob.BBO()
	if bid != 50114.0 {
		t.Errorf("best bid = %v, want 50114.0", bid)
	}
	if ask != 50124.5 {
		t.Errorf("best ask = %v, want 50124.5", ask)
	}

	// Remove the best levels; next-best must surface.
	ob.UpdateBid(50114.0, 0)
	ob.UpdateAsk(50124.5, 0)

	bid, ask = ob.BBO()
	if bid != 50113.5 {
		t.Errorf("best bid after removal = %v, want 50113.5", bid)
	}
	if ask != 50126.0 {
		t.Errorf("best ask after removal = %v, want 50126.0", ask)
	}
}

func TestOrderBook_CrossedBookIsReportedNotRepaired(t *testing.T) {
	ob := NewOrderBook(10)
	ob.UpdateBid(100.0, 1.0)
	ob.UpdateAsk(101.0, 1.0)
	if ob.Crossed() {
		t.Fatal("book should not be crossed yet")
	}

	ob.UpdateBid(101.5, 1.0)
	if !ob.Crossed() {
		t.Fatal("expected crossed flag after bid above ask")
	}

	// Levels are left in place.
	bid, ask := ob.BBO()
	if bid != 101.5 || ask != 101.0 {
		t.Errorf("BBO = (%v, %v), want (101.5, 101.0)", bid, ask)
	}
}

func TestOrderBook_Reset(t *testing.T) {
	ob := NewOrderBook(10)
	ob.UpdateBid(100.0, 1.0)
	ob.UpdateAsk(99.0, 1.0) // crossed
	ob.Reset()

	if ob.BidDepth() != 0 || ob.AskDepth() != 0 {
		t.Error("expected empty book after reset")
	}
	if ob.Crossed() {
		t.Error("crossed flag must clear on reset")
	}
}

func TestOrderBook_BitExactPriceLookup(t *testing.T) {
	ob := NewOrderBook(10)
	ob.UpdateBid(0.1, 1.0)
	ob.UpdateBid(0.1+1e-13, 2.0)

	// Nearly equal doubles are distinct levels; no epsilon comparison.
	if got := ob.BidDepth(); got != 2 {
		t.Errorf("bid depth = %d, want 2 distinct levels", got)
	}
}
