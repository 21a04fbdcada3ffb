// Package supervisor implements C6: the per-(exchange, market) unit owning
// one connector (C3), one trade interpreter (C4) and the inner two-tier
// watchdog (soft reset at 20s of silence, hard reset at 30s, escalation
// after two hard resets that fail to restore liveness).
//
// The watchdog loop is grounded on the teacher's tfbuilder staleness ticker
// (periodic check against a last-seen timestamp); the tear-down-and-rebuild
// hard reset mirrors how the teacher's wssim ingest client is discarded and
// re-dialed rather than patched in place.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"marketcore/internal/candlestore"
	"marketcore/internal/connector"
	"marketcore/internal/interpreter"
	"marketcore/internal/metrics"
	"marketcore/internal/model"
	"marketcore/internal/ringbuf"
)

// DefaultQueueCapacity is the bounded TradeQueue size Q from spec §4.3.
const DefaultQueueCapacity = 4096

// defaultWatchdogTick is the inner watchdog cadence from spec §4.6.
const defaultWatchdogTick = 10 * time.Second

// Config carries everything a Supervisor needs beyond its collaborators.
type Config struct {
	Exchange model.Exchange
	Market   model.Market

	// Intervals the interpreter advances from startup. Candle subscribes for
	// further timeframes arrive later via Subscribe.
	Intervals []model.Interval

	CandleCapacity int
	QueueCapacity  int

	SoftResetThreshold time.Duration
	HardResetThreshold time.Duration
	WatchdogTick       time.Duration
}

func (c *Config) fillDefaults() {
	if c.CandleCapacity <= 0 {
		c.CandleCapacity = candlestore.DefaultCapacity
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.SoftResetThreshold <= 0 {
		c.SoftResetThreshold = 20 * time.Second
	}
	if c.HardResetThreshold <= 0 {
		c.HardResetThreshold = 30 * time.Second
	}
	if c.WatchdogTick <= 0 {
		c.WatchdogTick = defaultWatchdogTick
	}
}

// Supervisor is the concrete C6 implementation.
type Supervisor struct {
	cfg     Config
	queue   *ringbuf.TradeQueue
	interp  *interpreter.Interpreter
	metrics *metrics.Metrics
	log     *slog.Logger

	// newConnector builds a fresh C3 bound to the shared queue. Defaults to
	// the real connector.New over the supplied Protocol; tests swap it for a
	// fake.
	newConnector func(*ringbuf.TradeQueue) model.Connector

	mu               sync.Mutex
	conn             model.Connector
	connCancel       context.CancelFunc
	healthy          bool
	hardResetsInARow int
	startedMs        int64

	failed   atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New constructs a Supervisor for (exchange, market), building its own
// TradeQueue and interpreter per the §4.6 startup contract. proto selects
// the exchange wire binding; historical backs the interpreter's bootstrap;
// sink (may be nil) receives closed candles.
func New(
	cfg Config,
	proto connector.Protocol,
	store *candlestore.Store,
	historical model.HistoricalClient,
	sink model.PublishSink,
	m *metrics.Metrics,
	log *slog.Logger,
) *Supervisor {
	cfg.fillDefaults()
	queue := ringbuf.New(cfg.QueueCapacity)

	s := &Supervisor{
		cfg:     cfg,
		queue:   queue,
		metrics: m,
		log: log.With(
			slog.String("exchange", string(cfg.Exchange)),
			slog.String("market", string(cfg.Market)),
		),
	}
	s.newConnector = func(q *ringbuf.TradeQueue) model.Connector {
		return connector.New(cfg.Exchange, cfg.Market, proto, q, m, log)
	}
	s.interp = interpreter.New(
		cfg.Exchange, cfg.Market, cfg.Intervals, cfg.CandleCapacity,
		queue, store, historical, sink, m, log,
	)
	return s
}

// Start launches the connector, the interpreter and the inner watchdog. It
// does not block; Ready() reports when the interpreter has seen its first
// trade or finished its initial bootstrap.
func (s *Supervisor) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.mu.Lock()
	s.startedMs = model.NowMillis()
	s.healthy = true
	s.startConnectorLocked(ctx)
	s.mu.Unlock()
	s.setHealthGauge(1)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.interp.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.watchdog(ctx)
	}()
	return nil
}

// Ready closes once the interpreter has processed its first trade.
func (s *Supervisor) Ready() <-chan struct{} { return s.interp.Ready() }

// Subscribe registers a raw-market data type with the running worker. For
// candle subscriptions the requested timeframe is added to the interpreter's
// interval set; trades and orderbook ride the already-open stream.
func (s *Supervisor) Subscribe(dataType model.DataType, extras model.Extras) error {
	switch dataType {
	case model.DataTypeCandle:
		s.interp.EnsureInterval(extras.Timeframe())
		return nil
	case model.DataTypeTrades, model.DataTypeOrderbook:
		return nil
	default:
		return model.ErrUnsupportedDataType
	}
}

// LastUpdateMillis mirrors the current connector's last-inbound-frame
// timestamp; before the first frame it reports the supervisor's start time
// so watchdog math has a meaningful baseline.
func (s *Supervisor) LastUpdateMillis() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		if last := s.conn.LastUpdateMillis(); last > 0 {
			return last
		}
	}
	return s.startedMs
}

// Healthy reports the inner watchdog's current verdict.
func (s *Supervisor) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthy
}

// Failed reports whether the supervisor has escalated and shut itself down
// (§7 Escalation). A failed supervisor must be replaced by the manager's
// outer watcher; it never recovers on its own.
func (s *Supervisor) Failed() bool { return s.failed.Load() }

// Stop tears the worker down: connector closed, loops joined. Idempotent.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		if s.connCancel != nil {
			s.connCancel()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
}

// startConnectorLocked builds a connector on the shared queue and runs it.
// Caller holds s.mu.
func (s *Supervisor) startConnectorLocked(ctx context.Context) {
	connCtx, cancel := context.WithCancel(ctx)
	conn := s.newConnector(s.queue)
	s.conn = conn
	s.connCancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := conn.Start(connCtx); err != nil {
			s.log.Error("connector exited with error", "error", err)
		}
	}()
}

func (s *Supervisor) watchdog(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.WatchdogTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.check(ctx) {
				return
			}
		}
	}
}

// check runs one watchdog pass. Returns true when the supervisor has
// escalated and the watchdog should exit.
func (s *Supervisor) check(ctx context.Context) bool {
	gap := time.Duration(model.NowMillis()-s.LastUpdateMillis()) * time.Millisecond

	switch {
	case gap > s.cfg.HardResetThreshold:
		s.markUnhealthy()
		if s.hardResetCount() >= 2 {
			s.escalate()
			return true
		}
		s.hardReset(ctx)

	case gap > s.cfg.SoftResetThreshold:
		s.markUnhealthy()
		s.log.Warn("soft reset: connector stale", "gap", gap)
		if s.metrics != nil {
			s.metrics.SoftResets.WithLabelValues(string(s.cfg.Exchange), string(s.cfg.Market)).Inc()
		}
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		conn.Reset()

	default:
		s.mu.Lock()
		s.hardResetsInARow = 0
		wasUnhealthy := !s.healthy
		s.healthy = true
		s.mu.Unlock()
		if wasUnhealthy {
			s.log.Info("connector recovered, back to healthy")
			s.interp.BackToHealthy()
			s.setHealthGauge(1)
		}
	}
	return false
}

// hardReset tears the connector down and constructs a fresh one bound to the
// same TradeQueue, per §4.6.
func (s *Supervisor) hardReset(ctx context.Context) {
	s.log.Warn("hard reset: tearing down connector")
	if s.metrics != nil {
		s.metrics.HardResets.WithLabelValues(string(s.cfg.Exchange), string(s.cfg.Market)).Inc()
	}

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	if s.connCancel != nil {
		s.connCancel()
	}
	s.startConnectorLocked(ctx)
	s.hardResetsInARow++
	s.mu.Unlock()
}

// escalate fails the supervisor after two consecutive hard resets that did
// not restore liveness. The manager's outer watcher takes over from here.
func (s *Supervisor) escalate() {
	s.log.Error("escalation: two hard resets failed to restore liveness, failing supervisor")
	if s.metrics != nil {
		s.metrics.Escalations.WithLabelValues(string(s.cfg.Exchange), string(s.cfg.Market)).Inc()
	}
	s.failed.Store(true)
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
}

func (s *Supervisor) markUnhealthy() {
	s.mu.Lock()
	was := s.healthy
	s.healthy = false
	s.mu.Unlock()
	if was {
		s.interp.RaiseUnhealthy()
		s.setHealthGauge(0)
	}
}

func (s *Supervisor) hardResetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hardResetsInARow
}

func (s *Supervisor) setHealthGauge(v float64) {
	if s.metrics != nil {
		s.metrics.ConnectorHealth.WithLabelValues(string(s.cfg.Exchange), string(s.cfg.Market)).Set(v)
	}
}
