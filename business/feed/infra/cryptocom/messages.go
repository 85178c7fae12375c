// Package cryptocom normalizes the derivatives exchange wire format into
// typed feed messages.
package cryptocom

import (
	"encoding/json"

	"github.com/fd1az/feedpipe/business/feed/domain"
)

// Channel values carried in result.channel; they drive message dispatch.
const (
	ChannelBook       = "book"
	ChannelBookUpdate = "book.update"
	ChannelTrade      = "trade"
)

// wsEnvelope is the outer shape of every subscription push.
type wsEnvelope struct {
	ID     int64     `json:"id"`
	Method string    `json:"method"`
	Code   int       `json:"code"`
	Result *wsResult `json:"result"`
}

// wsResult is the subscription result wrapper.
type wsResult struct {
	InstrumentName string            `json:"instrument_name"`
	Subscription   string            `json:"subscription"`
	Channel        string            `json:"channel"`
	Depth          int               `json:"depth"`
	Data           []json.RawMessage `json:"data"`
}

// bookSnapshotData is one result.data entry on the "book" channel.
// Sequence fields are pointers so absence is detectable; a present zero is
// a legal value.
type bookSnapshotData struct {
	Asks [][]string `json:"asks"`
	Bids [][]string `json:"bids"`
	TT   uint64     `json:"tt"`
	T    uint64     `json:"t"`
	U    *uint64    `json:"u"`
}

// bookDeltaData is one result.data entry on the "book.update" channel.
type bookDeltaData struct {
	Update struct {
		Asks [][]string `json:"asks"`
		Bids [][]string `json:"bids"`
	} `json:"update"`
	TT uint64  `json:"tt"`
	T  uint64  `json:"t"`
	U  *uint64 `json:"u"`
	PU *uint64 `json:"pu"`
}

// tradeData is one result.data entry on the "trade" channel.
type tradeData struct {
	D string `json:"d"` // Trade ID
	T uint64 `json:"t"` // Trade timestamp (ms)
	P string `json:"p"` // Price
	Q string `json:"q"` // Quantity
	S string `json:"s"` // Side: BUY or SELL
	I string `json:"i"` // Instrument name
}

// parseLevels converts raw [price, size, num_orders] triples, preserving
// the source strings. Entries with fewer than three elements are skipped.
func parseLevels(raw [][]string) []domain.Level {
	levels := make([]domain.Level, 0, len(raw))
	for _, r := range raw {
		if len(r) < 3 {
			continue
		}
		levels = append(levels, domain.Level{
			Price:     r[0],
			Size:      r[1],
			NumOrders: r[2],
		})
	}
	return levels
}
