package indengine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"marketcore/internal/candlestore"
	"marketcore/internal/indicator"
	"marketcore/internal/model"
)

type recordingSink struct {
	mu      sync.Mutex
	samples []model.IndicatorSample
}

func (s *recordingSink) PublishIndicator(_ context.Context, sample model.IndicatorSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return nil
}

func (s *recordingSink) PublishCandle(context.Context, model.Exchange, model.Market, model.Interval, model.Candle) error {
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

func seedSeries(store *candlestore.Store, market model.Market, tf model.Interval, closes []float64) {
	series := store.GetOrCreate(market, tf, candlestore.DefaultCapacity)
	for _, c := range closes {
		series.CreateCandle()
		series.SetOpen(c)
		series.SetClose(c)
		series.RaiseHigh(c)
		series.LowerLow(c)
	}
	series.SetHealthy(true)
}

func TestEngine_Tick_PublishesWhenHealthy(t *testing.T) {
	store := candlestore.NewStore()
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	seedSeries(store, model.Market("BTC"), model.Interval1m, closes)

	sink := &recordingSink{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(model.ExchangeHyperliquid, model.Market("BTC"), model.DataTypeSMA, store, sink, nil, log)
	e.Subscribe(14, model.Interval1m)

	e.tick(context.Background())

	if sink.count() != 1 {
		t.Fatalf("published samples = %d, want 1", sink.count())
	}
}

func TestEngine_Tick_SkipsUnhealthySeries(t *testing.T) {
	store := candlestore.NewStore()
	store.GetOrCreate(model.Market("BTC"), model.Interval1m, candlestore.DefaultCapacity)

	sink := &recordingSink{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(model.ExchangeHyperliquid, model.Market("BTC"), model.DataTypeSMA, store, sink, nil, log)
	e.Subscribe(14, model.Interval1m)

	e.tick(context.Background())

	if sink.count() != 0 {
		t.Fatalf("published samples = %d, want 0 for an unhealthy/unpopulated series", sink.count())
	}
}

func TestEngine_Tick_SkipsInsufficientData(t *testing.T) {
	store := candlestore.NewStore()
	seedSeries(store, model.Market("BTC"), model.Interval1m, []float64{100, 101})

	sink := &recordingSink{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(model.ExchangeHyperliquid, model.Market("BTC"), model.DataTypeRSI, store, sink, nil, log)
	e.Subscribe(14, model.Interval1m)

	e.tick(context.Background())

	if sink.count() != 0 {
		t.Fatalf("published samples = %d, want 0 when history is shorter than the period", sink.count())
	}
}

func TestEngine_RSISampleMatchesKernel(t *testing.T) {
	store := candlestore.NewStore()
	closes := make([]float64, 200)
	for i := range closes {
		closes[i] = 100 + 3*float64(i%7) - float64(i%3)
	}
	seedSeries(store, model.Market("BTCUSD_PERP"), model.Interval1m, closes)

	rec := &recordingSink{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(model.ExchangeHyperliquid, model.Market("BTCUSD_PERP"), model.DataTypeRSI, store, rec, nil, log)
	e.Subscribe(14, model.Interval1m)

	e.tick(context.Background())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.samples) != 1 {
		t.Fatalf("published samples = %d, want 1", len(rec.samples))
	}
	sample := rec.samples[0]
	if sample.Channel() != "hyperliquid_btcusd_perp_1m_14" {
		t.Fatalf("channel = %q, want hyperliquid_btcusd_perp_1m_14", sample.Channel())
	}

	series, _ := store.Get(model.Market("BTCUSD_PERP"), model.Interval1m)
	want, err := indicator.RSI(series.GetCloses(), 14)
	if err != nil {
		t.Fatalf("kernel failed: %v", err)
	}
	if diff := sample.Value - want; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("sample value = %v, kernel = %v", sample.Value, want)
	}
}

func TestEvaluate_UnsupportedFamily(t *testing.T) {
	store := candlestore.NewStore()
	seedSeries(store, model.Market("BTC"), model.Interval1m, []float64{100, 101, 102})
	series, _ := store.Get(model.Market("BTC"), model.Interval1m)

	if _, err := evaluate(model.DataTypeTrades, series, 14); err == nil {
		t.Fatal("expected error for a non-indicator family")
	}
}
