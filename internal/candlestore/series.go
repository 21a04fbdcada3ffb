// Package candlestore implements C2: a fixed-capacity, single-writer,
// multi-reader candle ring per (market, interval).
//
// Per the design notes in spec §9, the ring is a circular buffer with a
// moving head index (O(1) per close) rather than the source's shift-left
// array roll (O(R)). Index -1 always denotes the in-progress candle; readers
// translate it to the physical slot `head`.
package candlestore

import (
	"sync"

	"marketcore/internal/model"
)

// DefaultCapacity is the default ring length R from spec §3.
const DefaultCapacity = 200

// Series is the fixed-capacity OHLCV ring for one (market, interval) pair.
// Exactly one writer (the trade interpreter) mutates it; any number of
// readers may call the Get* accessors concurrently. A single RWMutex
// serializes writes against readers so snapshots are always whole-candle
// consistent (stricter than the spec's minimum bar, which only requires
// per-cell atomicity).
type Series struct {
	mu       sync.RWMutex
	rows     []model.Candle
	head     int  // physical index of the in-progress (logical -1) candle
	filled   bool // true once the ring has been populated at least once
	isHealthy bool
}

// New creates a Series with the given capacity; a capacity below 1 falls
// back to DefaultCapacity.
func New(capacity int) *Series {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Series{rows: make([]model.Candle, capacity)}
}

// Capacity returns R. It never changes for the life of the series.
func (s *Series) Capacity() int { return len(s.rows) }

// CreateCandle advances the ring one slot: the oldest row is discarded and a
// new zero-initialised slot becomes the in-progress candle.
func (s *Series) CreateCandle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head = (s.head + 1) % len(s.rows)
	s.rows[s.head] = model.Candle{}
	s.filled = true
}

// GetTime returns the open_time_ms of the in-progress candle (index -1).
func (s *Series) GetTime() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows[s.head].OpenTimeMs
}

// SetTime sets open_time_ms on the in-progress candle.
func (s *Series) SetTime(openTimeMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[s.head].OpenTimeMs = openTimeMs
}

// SetOpen sets the open price on the in-progress candle.
func (s *Series) SetOpen(price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[s.head].Open = price
}

// SetClose sets the close price on the in-progress candle.
func (s *Series) SetClose(price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[s.head].Close = price
}

// RaiseHigh sets high = max(high, price) on the in-progress candle.
func (s *Series) RaiseHigh(price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if price > s.rows[s.head].High {
		s.rows[s.head].High = price
	}
}

// LowerLow sets low = min(low, price) on the in-progress candle.
func (s *Series) LowerLow(price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if price < s.rows[s.head].Low || s.rows[s.head].Low == 0 {
		s.rows[s.head].Low = price
	}
}

// AddVolume adds size to the in-progress candle's total volume.
func (s *Series) AddVolume(size float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[s.head].Volume += size
}

// AddBuyerVolume adds size to the in-progress candle's buyer-side volume.
func (s *Series) AddBuyerVolume(size float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[s.head].BuyerVolume += size
}

// AddSellerVolume adds size to the in-progress candle's seller-side volume.
func (s *Series) AddSellerVolume(size float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[s.head].SellerVolume += size
}

// SetUniqueTraders sets the unique-trader count on the in-progress candle.
func (s *Series) SetUniqueTraders(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[s.head].UniqueTraders = n
}

// InitOpen sets open=high=low=close=price on a freshly-created in-progress
// candle — used when opening a new candle on the first trade of the bucket.
func (s *Series) InitOpen(price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &s.rows[s.head]
	c.Open, c.High, c.Low, c.Close = price, price, price, price
}

// ResetCurrent zeroes the in-progress candle without advancing the ring —
// used by bootstrap, which rewrites history around the head slot and must
// not leave pre-gap OHLCV behind in it.
func (s *Series) ResetCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[s.head] = model.Candle{}
}

// PutHistorical overwrites row at logical index -offset (offset=0 is the
// in-progress candle, offset=1 is the previous closed candle, etc.) with
// exchange-reported OHLCV from a bootstrap snapshot. Per spec §4.4.1,
// buyer/seller volume and unique-trader counts are not synthesised for
// historical rows.
func (s *Series) PutHistorical(offset int, c model.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := ((s.head-offset)%len(s.rows) + len(s.rows)) % len(s.rows)
	s.rows[idx] = c
	s.filled = true
}

// snapshot returns a copy of all R rows in chronological (oldest-first)
// order, with the in-progress candle last.
func (s *Series) snapshot() []model.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Candle, len(s.rows))
	n := len(s.rows)
	for i := 0; i < n; i++ {
		// oldest is one past head (wrapping); head itself is last (newest).
		idx := (s.head + 1 + i) % n
		out[i] = s.rows[idx]
	}
	return out
}

// GetOpens returns a length-R view of open prices, oldest-first.
func (s *Series) GetOpens() []float64 { return column(s.snapshot(), func(c model.Candle) float64 { return c.Open }) }

// GetHighs returns a length-R view of high prices, oldest-first.
func (s *Series) GetHighs() []float64 { return column(s.snapshot(), func(c model.Candle) float64 { return c.High }) }

// GetLows returns a length-R view of low prices, oldest-first.
func (s *Series) GetLows() []float64 { return column(s.snapshot(), func(c model.Candle) float64 { return c.Low }) }

// GetCloses returns a length-R view of close prices, oldest-first.
func (s *Series) GetCloses() []float64 { return column(s.snapshot(), func(c model.Candle) float64 { return c.Close }) }

// GetVolumes returns a length-R view of total volume, oldest-first.
func (s *Series) GetVolumes() []float64 { return column(s.snapshot(), func(c model.Candle) float64 { return c.Volume }) }

// GetBuyerVolumes returns a length-R view of buyer-side volume, oldest-first.
func (s *Series) GetBuyerVolumes() []float64 {
	return column(s.snapshot(), func(c model.Candle) float64 { return c.BuyerVolume })
}

// GetSellerVolumes returns a length-R view of seller-side volume, oldest-first.
func (s *Series) GetSellerVolumes() []float64 {
	return column(s.snapshot(), func(c model.Candle) float64 { return c.SellerVolume })
}

// GetUniqueTraders returns a length-R view of unique-trader counts, oldest-first.
func (s *Series) GetUniqueTraders() []int64 {
	rows := s.snapshot()
	out := make([]int64, len(rows))
	for i, c := range rows {
		out[i] = c.UniqueTraders
	}
	return out
}

// Rows returns a full copy of all R candles, oldest-first.
func (s *Series) Rows() []model.Candle { return s.snapshot() }

// Filled reports whether the series has ever been populated (i.e. whether
// GetTime()/GetOpens() etc. reflect real data rather than zero values).
func (s *Series) Filled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filled
}

// SetHealthy sets the is_updated health flag.
func (s *Series) SetHealthy(healthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isHealthy = healthy
}

// Healthy returns the is_updated health flag.
func (s *Series) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isHealthy
}

func column(rows []model.Candle, f func(model.Candle) float64) []float64 {
	out := make([]float64, len(rows))
	for i, c := range rows {
		out[i] = f(c)
	}
	return out
}
