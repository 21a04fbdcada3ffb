// Package sink provides the two concrete model.PublishSink bindings named in
// spec §4.5: an in-process shared-memory stat table and a Redis pub/sub bus.
package sink

import (
	"context"
	"sync"

	"marketcore/internal/model"
)

// MemTable is the shared-memory stat table sink: an in-process map keyed by
// (market, stat-tag), updated in place. Any number of readers may call
// Indicator/Candle concurrently with writes.
type MemTable struct {
	mu         sync.RWMutex
	indicators map[string]model.IndicatorSample
	candles    map[string]model.Candle
}

// NewMemTable creates an empty stat table.
func NewMemTable() *MemTable {
	return &MemTable{
		indicators: make(map[string]model.IndicatorSample),
		candles:    make(map[string]model.Candle),
	}
}

func candleKey(exchange model.Exchange, market model.Market, interval model.Interval) string {
	return exchange.Lower() + "|" + market.Lower() + "|" + string(interval)
}

// PublishIndicator implements model.PublishSink: update-or-insert by the
// sample's deterministic channel key.
func (m *MemTable) PublishIndicator(_ context.Context, sample model.IndicatorSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indicators[sample.Channel()] = sample
	return nil
}

// PublishCandle implements model.PublishSink: update-or-insert by
// (exchange, market, interval).
func (m *MemTable) PublishCandle(_ context.Context, exchange model.Exchange, market model.Market, interval model.Interval, candle model.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles[candleKey(exchange, market, interval)] = candle
	return nil
}

// Indicator returns the last published sample for a channel key, if any.
func (m *MemTable) Indicator(channel string) (model.IndicatorSample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.indicators[channel]
	return s, ok
}

// Candle returns the last published candle for (exchange, market, interval),
// if any.
func (m *MemTable) Candle(exchange model.Exchange, market model.Market, interval model.Interval) (model.Candle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.candles[candleKey(exchange, market, interval)]
	return c, ok
}
