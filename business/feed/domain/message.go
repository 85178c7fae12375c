// Package domain contains the core domain types for the feed context.
package domain

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// MessageType discriminates the normalized exchange message variants.
type MessageType int

// Message variants. Unknown covers valid JSON on an unrecognized channel.
const (
	TypeUnknown MessageType = iota
	TypeBookSnapshot
	TypeBookDelta
	TypeTrade
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case TypeBookSnapshot:
		return "book_snapshot"
	case TypeBookDelta:
		return "book_delta"
	case TypeTrade:
		return "trade"
	default:
		return "unknown"
	}
}

// Level is a single book level as published by the exchange:
// [price, size, num_orders]. Strings are preserved verbatim so no decimal
// precision is lost in transport; conversion happens at book mutation.
type Level struct {
	Price     string
	Size      string
	NumOrders string
}

// PriceFloat parses the level price as float64.
func (l Level) PriceFloat() (float64, error) {
	return strconv.ParseFloat(l.Price, 64)
}

// SizeFloat parses the level size as float64.
func (l Level) SizeFloat() (float64, error) {
	if l.Size == "" {
		return 0, nil
	}
	return strconv.ParseFloat(l.Size, 64)
}

// BookSnapshot establishes the full book state for an instrument at
// sequence U.
type BookSnapshot struct {
	Instrument string
	Depth      int
	Asks       []Level
	Bids       []Level
	TT         uint64 // Epoch millis of last book update
	T          uint64 // Epoch millis of message publish
	U          uint64 // Update sequence
}

// BookDelta is an incremental book change. It is only valid when PU equals
// the last applied sequence for the instrument.
type BookDelta struct {
	Instrument string
	Depth      int
	Asks       []Level
	Bids       []Level
	TT         uint64
	T          uint64
	U          uint64 // Update sequence
	PU         uint64 // Previous update sequence this delta follows
}

// Side is the aggressor side of a trade.
type Side string

// Trade sides as published by the exchange.
const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade is an executed match notification. Trades do not modify the
// resting book.
type Trade struct {
	Instrument string
	ID         string
	T          uint64 // Trade timestamp in milliseconds
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	Side       Side
}

// Message is the tagged sum produced by the normalizer and consumed by the
// engine. Exactly the field matching Type is populated.
type Message struct {
	Type     MessageType
	Snapshot *BookSnapshot
	Delta    *BookDelta
	Trades   []Trade
}

// UnknownMessage returns the Unknown variant.
func UnknownMessage() Message {
	return Message{Type: TypeUnknown}
}
