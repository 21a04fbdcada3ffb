package sink

import (
	"context"
	"testing"

	"marketcore/internal/model"
)

func TestMemTable_IndicatorUpdateOrInsert(t *testing.T) {
	m := NewMemTable()
	sample := model.IndicatorSample{
		Name: "rsi", Exchange: model.ExchangeHyperliquid, Market: model.Market("BTC"),
		Interval: model.Interval1m, Period: 14, Value: 55.5, ComputedAt: 1000,
	}
	if err := m.PublishIndicator(context.Background(), sample); err != nil {
		t.Fatalf("PublishIndicator: %v", err)
	}

	got, ok := m.Indicator(sample.Channel())
	if !ok || got.Value != 55.5 {
		t.Fatalf("Indicator(%q) = %+v, %v", sample.Channel(), got, ok)
	}

	sample.Value = 60.0
	sample.ComputedAt = 2000
	m.PublishIndicator(context.Background(), sample)

	got, ok = m.Indicator(sample.Channel())
	if !ok || got.Value != 60.0 {
		t.Fatalf("update-in-place failed: %+v", got)
	}
}

func TestMemTable_CandleUpdateOrInsert(t *testing.T) {
	m := NewMemTable()
	c1 := model.Candle{OpenTimeMs: 60_000, Open: 1, High: 2, Low: 1, Close: 1.5, Volume: 10}
	m.PublishCandle(context.Background(), model.ExchangeBinance, model.Market("ETH"), model.Interval1m, c1)

	got, ok := m.Candle(model.ExchangeBinance, model.Market("ETH"), model.Interval1m)
	if !ok || got.Close != 1.5 {
		t.Fatalf("Candle() = %+v, %v", got, ok)
	}

	c2 := c1
	c2.Close = 2.5
	m.PublishCandle(context.Background(), model.ExchangeBinance, model.Market("ETH"), model.Interval1m, c2)

	got, _ = m.Candle(model.ExchangeBinance, model.Market("ETH"), model.Interval1m)
	if got.Close != 2.5 {
		t.Fatalf("update-in-place failed: %+v", got)
	}
}

func TestMemTable_MissingKeys(t *testing.T) {
	m := NewMemTable()
	if _, ok := m.Indicator("nonexistent"); ok {
		t.Fatal("expected ok=false for a never-published indicator channel")
	}
	if _, ok := m.Candle(model.ExchangeHyperliquid, model.Market("XYZ"), model.Interval1h); ok {
		t.Fatal("expected ok=false for a never-published candle key")
	}
}
