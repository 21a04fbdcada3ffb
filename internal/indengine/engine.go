// Package indengine implements C5: a periodic indicator evaluator over the
// shared candle store, publishing samples through a pluggable sink.
//
// Grounded on the teacher's internal/indicator.Engine (per-TF state maps, a
// Run(ctx) consumer loop) but restructured around the spec's own contract: a
// periodic tick evaluating pure kernels against a shared candlestore.Series
// snapshot, rather than the teacher's stateful per-candle Update() indicator
// instances. Per the scope note on cross-process engines, this single
// process collapses the source's separate-process indicator engine into a
// goroutine sharing memory with the interpreter (C4): Subscribe ensures the
// backing series exists in the shared candlestore.Store (which C4 populates
// and bootstraps) rather than maintaining a private buffer copy.
package indengine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"marketcore/internal/candlestore"
	"marketcore/internal/indicator"
	"marketcore/internal/metrics"
	"marketcore/internal/model"
)

// tickInterval is the default evaluation cadence from spec §4.5 step 4.
const tickInterval = 100 * time.Millisecond

// subKey is one (period, timeframe) pair an engine evaluates every tick.
type subKey struct {
	Period int
	TF     model.Interval
}

// Engine is the concrete C5 implementation for one (exchange, market,
// indicator family) triple.
type Engine struct {
	exchange model.Exchange
	market   model.Market
	family   model.DataType

	store   *candlestore.Store
	sink    model.PublishSink
	metrics *metrics.Metrics
	log     *slog.Logger

	mu   sync.Mutex
	subs map[subKey]struct{}
}

// New constructs an Engine. sink must not be nil.
func New(
	exchange model.Exchange,
	market model.Market,
	family model.DataType,
	store *candlestore.Store,
	sink model.PublishSink,
	m *metrics.Metrics,
	log *slog.Logger,
) *Engine {
	return &Engine{
		exchange: exchange,
		market:   market,
		family:   family,
		store:    store,
		sink:     sink,
		metrics:  m,
		log: log.With(
			slog.String("exchange", string(exchange)),
			slog.String("market", string(market)),
			slog.String("family", string(family)),
		),
		subs: make(map[subKey]struct{}),
	}
}

// Subscribe registers a (period, timeframe) pair for periodic evaluation.
// Non-blocking and idempotent. Ensures the backing candle series exists so
// the interpreter (C4) has somewhere to bootstrap and populate it.
func (e *Engine) Subscribe(period int, tf model.Interval) {
	e.store.GetOrCreate(e.market, tf, candlestore.DefaultCapacity)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs[subKey{Period: period, TF: tf}] = struct{}{}
}

// Run evaluates every subscribed (period, timeframe) pair on tickInterval
// until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	e.mu.Lock()
	subs := make([]subKey, 0, len(e.subs))
	for k := range e.subs {
		subs = append(subs, k)
	}
	e.mu.Unlock()

	for _, k := range subs {
		series, ok := e.store.Get(e.market, k.TF)
		if !ok || !series.Healthy() {
			continue // step 1: wait until the target series is healthy
		}

		started := model.Now()
		value, err := evaluate(e.family, series, k.Period)
		if e.metrics != nil {
			e.metrics.IndicatorComputeDur.WithLabelValues(string(e.family)).Observe(model.Now().Sub(started).Seconds())
		}
		if err != nil {
			continue // not enough history yet; retry next tick
		}

		sample := model.IndicatorSample{
			Name:       string(e.family),
			Exchange:   e.exchange,
			Market:     e.market,
			Interval:   k.TF,
			Period:     k.Period,
			Value:      value,
			ComputedAt: model.NowMillis(),
		}
		if err := e.sink.PublishIndicator(ctx, sample); err != nil {
			e.log.Warn("publish indicator failed", "error", err, "timeframe", k.TF, "period", k.Period)
		}
	}
}

// evaluate dispatches to the appropriate C1 kernel for family, reading a
// fresh snapshot of series on every call. MACD's fast/slow periods are held
// at their conventional 12/26 defaults; period selects the signal period
// (the only knob the subscribe contract exposes for MACD).
func evaluate(family model.DataType, series *candlestore.Series, period int) (float64, error) {
	closes, highs, lows := series.GetCloses(), series.GetHighs(), series.GetLows()
	// Ring slots that have never held a candle read as zero; drop them so the
	// kernels only see real history and report insufficient data otherwise.
	start := 0
	for start < len(closes) && closes[start] == 0 {
		start++
	}
	closes, highs, lows = closes[start:], highs[start:], lows[start:]

	switch family {
	case model.DataTypeRSI:
		return indicator.RSI(closes, period)
	case model.DataTypeATR:
		return indicator.ATR(highs, lows, closes, period)
	case model.DataTypeHMA:
		return indicator.HMA(closes, period)
	case model.DataTypeSMA:
		values, err := indicator.SMA(closes, period)
		if err != nil {
			return 0, err
		}
		return values[len(values)-1], nil
	case model.DataTypeMACD:
		result, err := indicator.MACD(closes, 12, 26, period)
		if err != nil {
			return 0, err
		}
		return result.MACD, nil
	default:
		return 0, fmt.Errorf("indengine: %w: %s", model.ErrUnsupportedIndicator, family)
	}
}
