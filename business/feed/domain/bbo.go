package domain

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Egress record layout. The record crosses the IPC boundary as raw bytes,
// so the layout is part of the downstream contract and must not change.
const (
	// InstrumentNameSize is the fixed, NUL-padded instrument field width.
	InstrumentNameSize = 32

	// BboRecordSize is the total encoded record size in bytes.
	BboRecordSize = InstrumentNameSize + 8 + 8 + 8 + 8
)

// BboUpdate is the best-bid-offer change record published downstream.
// Empty sides carry the 0.0 sentinel.
type BboUpdate struct {
	Instrument      string
	BestBid         float64
	BestAsk         float64
	SequenceNumber  uint64 // the u of the causing message
	TimestampMicros uint64 // emission wall clock, micros since epoch
}

// MarshalBinary encodes the record into its fixed 64-byte layout:
// 32-byte NUL-padded instrument name, then best_bid, best_ask (f64) and
// sequence_number, timestamp_micros (u64), all little-endian.
func (u BboUpdate) MarshalBinary() ([]byte, error) {
	if len(u.Instrument) > InstrumentNameSize {
		return nil, fmt.Errorf("instrument name %q exceeds %d bytes", u.Instrument, InstrumentNameSize)
	}

	buf := make([]byte, BboRecordSize)
	copy(buf[:InstrumentNameSize], u.Instrument)

	off := InstrumentNameSize
	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(u.BestBid))
	binary.LittleEndian.PutUint64(buf[off+8:], math.Float64bits(u.BestAsk))
	binary.LittleEndian.PutUint64(buf[off+16:], u.SequenceNumber)
	binary.LittleEndian.PutUint64(buf[off+24:], u.TimestampMicros)

	return buf, nil
}

// UnmarshalBinary decodes a record previously written by MarshalBinary.
func (u *BboUpdate) UnmarshalBinary(data []byte) error {
	if len(data) != BboRecordSize {
		return fmt.Errorf("bbo record must be %d bytes, got %d", BboRecordSize, len(data))
	}

	name := data[:InstrumentNameSize]
	end := 0
	for end < len(name) && name[end] != 0 {
		end++
	}
	u.Instrument = string(name[:end])

	off := InstrumentNameSize
	u.BestBid = math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
	u.BestAsk = math.Float64frombits(binary.LittleEndian.Uint64(data[off+8:]))
	u.SequenceNumber = binary.LittleEndian.Uint64(data[off+16:])
	u.TimestampMicros = binary.LittleEndian.Uint64(data[off+24:])

	return nil
}
