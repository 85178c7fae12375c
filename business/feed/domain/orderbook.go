package domain

import "sort"

// bookLevel is one resting price level.
type bookLevel struct {
	price float64
	size  float64
}

// OrderBook is the L2 view of one instrument. Bids are kept sorted by
// price descending, asks ascending, so the best of each side is the first
// element and the BBO read is O(1). Levels are keyed by bit-exact float64
// price; a size of zero removes the level.
type OrderBook struct {
	bids []bookLevel
	asks []bookLevel

	crossed bool
}

// NewOrderBook creates an empty book with capacity for depth levels per side.
func NewOrderBook(depth int) *OrderBook {
	if depth <= 0 {
		depth = 10
	}
	return &OrderBook{
		bids: make([]bookLevel, 0, depth),
		asks: make([]bookLevel, 0, depth),
	}
}

// UpdateBid sets the bid size at price, inserting, overwriting or (size 0)
// removing the level.
func (b *OrderBook) UpdateBid(price, size float64) {
	if size == 0 {
		b.bids = removeLevel(b.bids, price, bidBefore)
	} else {
		b.bids = upsertLevel(b.bids, price, size, bidBefore)
	}
	b.checkCrossed()
}

// UpdateAsk sets the ask size at price, inserting, overwriting or (size 0)
// removing the level.
func (b *OrderBook) UpdateAsk(price, size float64) {
	if size == 0 {
		b.asks = removeLevel(b.asks, price, askBefore)
	} else {
		b.asks = upsertLevel(b.asks, price, size, askBefore)
	}
	b.checkCrossed()
}

// BBO returns the best bid and best ask. An empty side reports 0.0;
// callers needing to distinguish a legitimate zero price check emptiness
// via BidDepth/AskDepth.
func (b *OrderBook) BBO() (bestBid, bestAsk float64) {
	if len(b.bids) > 0 {
		bestBid = b.bids[0].price
	}
	if len(b.asks) > 0 {
		bestAsk = b.asks[0].price
	}
	return bestBid, bestAsk
}

// BidDepth returns the number of resting bid levels.
func (b *OrderBook) BidDepth() int {
	return len(b.bids)
}

// AskDepth returns the number of resting ask levels.
func (b *OrderBook) AskDepth() int {
	return len(b.asks)
}

// Crossed reports whether a mutation has ever left best bid >= best ask
// with both sides populated. The condition is reported, never repaired.
func (b *OrderBook) Crossed() bool {
	return b.crossed
}

// Reset drops all levels and the crossed flag.
func (b *OrderBook) Reset() {
	b.bids = b.bids[:0]
	b.asks = b.asks[:0]
	b.crossed = false
}

func (b *OrderBook) checkCrossed() {
	if len(b.bids) > 0 && len(b.asks) > 0 && b.bids[0].price >= b.asks[0].price {
		b.crossed = true
	}
}

// bidBefore orders bids descending by price.
func bidBefore(a, b float64) bool { return a > b }

// askBefore orders asks ascending by price.
func askBefore(a, b float64) bool { return a < b }

// upsertLevel overwrites the level at price or inserts it preserving the
// ordering invariant. Price lookup is bit-exact; the exchange emits
// canonical decimal strings so equal levels parse to equal doubles.
func upsertLevel(levels []bookLevel, price, size float64, before func(a, b float64) bool) []bookLevel {
	i := sort.Search(len(levels), func(i int) bool {
		return !before(levels[i].price, price)
	})

	if i < len(levels) && levels[i].price == price {
		levels[i].size = size
		return levels
	}

	levels = append(levels, bookLevel{})
	copy(levels[i+1:], levels[i:])
	levels[i] = bookLevel{price: price, size: size}
	return levels
}

// removeLevel deletes the level at price if present; absent prices are a
// no-op.
func removeLevel(levels []bookLevel, price float64, before func(a, b float64) bool) []bookLevel {
	i := sort.Search(len(levels), func(i int) bool {
		return !before(levels[i].price, price)
	})

	if i >= len(levels) || levels[i].price != price {
		return levels
	}

	copy(levels[i:], levels[i+1:])
	return levels[:len(levels)-1]
}
