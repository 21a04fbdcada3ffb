// Package interpreter implements C4: it consumes a connector's TradeQueue
// and advances a candle series for every configured interval concurrently,
// bootstrapping from a historical snapshot client whenever it detects a gap
// of at least one full candle.
//
// The consumer loop is grounded on the teacher's marketdata/agg.Aggregator
// and marketdata/tfbuilder.Builder Run() loops (select on ctx.Done() plus a
// periodic check), adapted from a channel-based consumer to the SPSC
// TradeQueue (§4.3) which the connector owns and writes into without
// blocking.
package interpreter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"marketcore/internal/candlestore"
	"marketcore/internal/metrics"
	"marketcore/internal/model"
	"marketcore/internal/ringbuf"
)

// pollInterval bounds how long the consumer sleeps when the queue is empty.
// This is the "queue pop with timeout" suspension point named in spec §5.
const pollInterval = 2 * time.Millisecond

// Interpreter is the concrete C4 implementation for one (exchange, market).
type Interpreter struct {
	exchange   model.Exchange
	market     model.Market
	capacity   int
	queue      *ringbuf.TradeQueue
	store      *candlestore.Store
	historical model.HistoricalClient
	sink       model.PublishSink
	metrics    *metrics.Metrics
	log        *slog.Logger

	// mu guards intervals and unique: the consumer loop reads them on every
	// trade while EnsureInterval (called from the manager goroutine on a
	// candle subscribe) may grow them.
	mu        sync.RWMutex
	intervals []model.Interval
	unique    map[model.Interval]map[string]struct{}

	ready     chan struct{}
	readyOnce bool

	// seenOverflow is the queue's drop counter as of the last export to the
	// Prometheus counter; only the delta is added each time.
	seenOverflow uint64
}

// New constructs an Interpreter bound to queue, tracking store for every
// interval in intervals. historical may be nil only if no interval ever
// needs a bootstrap (tests); production callers always supply one per C8.
// sink, when non-nil, receives every closed candle on the market's channel.
func New(
	exchange model.Exchange,
	market model.Market,
	intervals []model.Interval,
	capacity int,
	queue *ringbuf.TradeQueue,
	store *candlestore.Store,
	historical model.HistoricalClient,
	sink model.PublishSink,
	m *metrics.Metrics,
	log *slog.Logger,
) *Interpreter {
	if capacity <= 0 {
		capacity = candlestore.DefaultCapacity
	}
	ip := &Interpreter{
		exchange:   exchange,
		market:     market,
		intervals:  intervals,
		capacity:   capacity,
		queue:      queue,
		store:      store,
		historical: historical,
		sink:       sink,
		metrics:    m,
		log:        log.With(slog.String("exchange", string(exchange)), slog.String("market", string(market))),
		unique:     make(map[model.Interval]map[string]struct{}, len(intervals)),
		ready:      make(chan struct{}),
	}
	for _, iv := range intervals {
		store.GetOrCreate(market, iv, capacity)
		ip.unique[iv] = make(map[string]struct{})
	}
	return ip
}

// EnsureInterval adds a timeframe to the set the interpreter advances,
// creating its backing series if needed. Idempotent; safe to call while the
// consumer loop is running (used by candle subscribes arriving after start).
func (ip *Interpreter) EnsureInterval(iv model.Interval) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	if _, ok := ip.unique[iv]; ok {
		return
	}
	ip.store.GetOrCreate(ip.market, iv, ip.capacity)
	ip.intervals = append(ip.intervals, iv)
	ip.unique[iv] = make(map[string]struct{})
}

// Ready closes once the interpreter has processed its first trade (either by
// opening the first candle directly or by completing an initial bootstrap),
// matching §4.6's "C4 blocks until it observes the first live trade or
// completes bootstrap" startup contract.
func (ip *Interpreter) Ready() <-chan struct{} { return ip.ready }

// Run consumes trades from the queue until ctx is cancelled. It never
// returns a non-nil error in the current implementation; the signature
// matches the cancellable-loop convention used by Connector.Start.
func (ip *Interpreter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		tr, ok := ip.queue.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pollInterval):
			}
			continue
		}

		ip.applyTrade(ctx, tr)

		if ip.metrics != nil {
			ip.metrics.TradesIngested.WithLabelValues(string(ip.exchange), string(ip.market)).Inc()
			if of := ip.queue.Overflow(); of > ip.seenOverflow {
				ip.metrics.QueueOverflow.WithLabelValues(string(ip.exchange), string(ip.market)).Add(float64(of - ip.seenOverflow))
				ip.seenOverflow = of
			}
		}
		if !ip.readyOnce {
			ip.readyOnce = true
			close(ip.ready)
		}
	}
}

// applyTrade advances every configured interval's series per spec §4.4
// steps 1-5.
func (ip *Interpreter) applyTrade(ctx context.Context, tr model.Trade) {
	ip.mu.RLock()
	intervals := make([]model.Interval, len(ip.intervals))
	copy(intervals, ip.intervals)
	ip.mu.RUnlock()

	for _, iv := range intervals {
		ip.applyInterval(ctx, iv, tr)
	}
}

func (ip *Interpreter) applyInterval(ctx context.Context, iv model.Interval, tr model.Trade) {
	series, ok := ip.store.Get(ip.market, iv)
	if !ok {
		return
	}

	// A series that has never been populated has no "last observed state" to
	// diff against — there is nothing to bootstrap yet, so the very first
	// trade directly opens the first candle. Bootstrap (§4.4.1) only ever
	// fires for a gap relative to an already-initialized series (resolved
	// ambiguity; see DESIGN.md).
	if !series.Filled() {
		ip.openFresh(series, iv, tr)
		return
	}

	intervalMs := iv.Millis()
	lastCt := series.GetTime()
	nextCt := lastCt + intervalMs

	if tr.TimestampMs < lastCt {
		return // late trade, dropped (§4.4 step 2)
	}

	if tr.TimestampMs-intervalMs > lastCt {
		// The gap's history comes from the snapshot; the triggering trade
		// itself opens the fresh in-progress candle.
		if ip.bootstrap(ctx, series, iv, iv.AlignMillis(tr.TimestampMs)) {
			series.SetOpen(tr.Price)
			ip.applyOHLCV(series, iv, tr)
		}
		return
	}

	if tr.TimestampMs >= nextCt {
		ip.publishClosed(ctx, iv, series)
		series.CreateCandle()
		ip.resetUnique(iv)
		series.SetTime(nextCt)
		series.SetOpen(tr.Price)
		if ip.metrics != nil {
			ip.metrics.CandlesClosed.WithLabelValues(string(ip.market), string(iv)).Inc()
		}
	}

	ip.applyOHLCV(series, iv, tr)
}

// openFresh initializes the very first candle of a never-populated series
// directly from the opening trade.
func (ip *Interpreter) openFresh(series *candlestore.Series, iv model.Interval, tr model.Trade) {
	series.CreateCandle()
	ip.resetUnique(iv)
	series.SetTime(iv.AlignMillis(tr.TimestampMs))
	series.SetOpen(tr.Price)
	ip.applyOHLCV(series, iv, tr)
	series.SetHealthy(true)
	ip.setHealthGauge(iv, 1)
}

// applyOHLCV is §4.4 step 5: update the in-progress candle's close/high/low/
// volume/side volumes and unique-trader set for one trade.
func (ip *Interpreter) applyOHLCV(series *candlestore.Series, iv model.Interval, tr model.Trade) {
	series.SetClose(tr.Price)
	series.AddVolume(tr.Size)
	series.RaiseHigh(tr.Price)
	series.LowerLow(tr.Price)

	switch tr.Side {
	case model.SideBuy:
		series.AddBuyerVolume(tr.Size)
	case model.SideSell:
		series.AddSellerVolume(tr.Size)
	}

	if !tr.HasTraders() {
		return
	}
	ip.mu.RLock()
	set := ip.unique[iv]
	ip.mu.RUnlock()
	grew := false
	for trader := range tr.Traders {
		if _, seen := set[trader]; !seen {
			set[trader] = struct{}{}
			grew = true
		}
	}
	if grew {
		series.SetUniqueTraders(int64(len(set)))
	}
}

// publishClosed pushes the candle that is about to close out to the sink on
// the market's channel, so candle(timeframe) subscribers see every completed
// bucket.
func (ip *Interpreter) publishClosed(ctx context.Context, iv model.Interval, series *candlestore.Series) {
	if ip.sink == nil {
		return
	}
	rows := series.Rows()
	closed := rows[len(rows)-1]
	if err := ip.sink.PublishCandle(ctx, ip.exchange, ip.market, iv, closed); err != nil {
		ip.log.Warn("publish candle failed", "interval", iv, "error", err)
	}
}

func (ip *Interpreter) resetUnique(iv model.Interval) {
	ip.mu.Lock()
	ip.unique[iv] = make(map[string]struct{})
	ip.mu.Unlock()
}

func (ip *Interpreter) currentIntervals() []model.Interval {
	ip.mu.RLock()
	defer ip.mu.RUnlock()
	out := make([]model.Interval, len(ip.intervals))
	copy(out, ip.intervals)
	return out
}

// bootstrap is §4.4.1: back-fill the ring from the historical snapshot
// client, ending at endMs (aligned to the interval). Rows reporting the
// in-progress bucket itself (t == endMs) are skipped. The head slot is
// zeroed so no pre-gap OHLCV leaks into the fresh in-progress candle; the
// caller applies the triggering trade to it on success. Returns false when
// the snapshot could not be fetched and the series was left untouched.
func (ip *Interpreter) bootstrap(ctx context.Context, series *candlestore.Series, iv model.Interval, endMs int64) bool {
	if ip.metrics != nil {
		ip.metrics.BootstrapCalls.WithLabelValues(string(ip.market), string(iv)).Inc()
	}
	if ip.historical == nil {
		ip.log.Warn("bootstrap requested but no historical client configured", "interval", iv)
		return false
	}

	capN := series.Capacity()
	startMs := endMs - int64(capN)*iv.Millis()

	candles, err := ip.historical.Snapshot(ctx, ip.market, iv, startMs, endMs)
	if err != nil {
		ip.log.Warn("bootstrap snapshot failed", "interval", iv, "error", err)
		return false
	}

	var rows []model.Candle
	for _, c := range candles {
		if c.OpenTimeMs == endMs {
			continue
		}
		rows = append(rows, c)
	}

	series.ResetCurrent()
	n := len(rows)
	for i, c := range rows {
		offset := n - i // most recent closed row -> offset 1
		if offset < 1 || offset > capN-1 {
			continue
		}
		series.PutHistorical(offset, c)
	}

	ip.resetUnique(iv)
	series.SetTime(endMs)
	series.SetHealthy(true)
	ip.setHealthGauge(iv, 1)
	return true
}

// RaiseUnhealthy flips every configured interval's series to unhealthy.
// Called by the supervisor (C6) on a reset event (§4.4.2).
func (ip *Interpreter) RaiseUnhealthy() {
	for _, iv := range ip.currentIntervals() {
		if s, ok := ip.store.Get(ip.market, iv); ok {
			s.SetHealthy(false)
			ip.setHealthGauge(iv, 0)
		}
	}
}

// BackToHealthy flips every configured interval's series back to healthy.
func (ip *Interpreter) BackToHealthy() {
	for _, iv := range ip.currentIntervals() {
		if s, ok := ip.store.Get(ip.market, iv); ok {
			s.SetHealthy(true)
			ip.setHealthGauge(iv, 1)
		}
	}
}

func (ip *Interpreter) setHealthGauge(iv model.Interval, v float64) {
	if ip.metrics != nil {
		ip.metrics.SeriesHealthy.WithLabelValues(string(ip.market), string(iv)).Set(v)
	}
}
