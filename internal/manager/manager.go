// Package manager implements C7: the process-wide singleton owning every
// exchange worker supervisor and indicator engine, deduplicating
// subscriptions, running the outer watcher and replaying subscription state
// across worker restarts.
//
// Modeled as an explicit handle created at startup and passed by dependency
// injection (spec §9 Singletons) — the same shape as the teacher's indengine
// Service, which owns its consumer/snapshot collaborators behind a single
// mutex rather than module-level state.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"marketcore/config"
	"marketcore/internal/candlestore"
	"marketcore/internal/connector"
	"marketcore/internal/historical"
	"marketcore/internal/indengine"
	"marketcore/internal/metrics"
	"marketcore/internal/model"
	"marketcore/internal/supervisor"
)

// worker is the slice of supervisor.Supervisor the manager drives. Narrowed
// to an interface so watcher/restart tests can substitute fakes.
type worker interface {
	Start(ctx context.Context) error
	Stop()
	Subscribe(dataType model.DataType, extras model.Extras) error
	LastUpdateMillis() int64
	Healthy() bool
	Failed() bool
}

// engine is the slice of indengine.Engine the manager drives.
type engine interface {
	Subscribe(period int, tf model.Interval)
	Run(ctx context.Context) error
}

// Manager is the concrete C7 implementation.
type Manager struct {
	cfg     *config.Config
	store   *candlestore.Store
	sink    model.PublishSink
	metrics *metrics.Metrics
	log     *slog.Logger

	newWorker func(model.Exchange, model.Market) (worker, error)
	newEngine func(model.Exchange, model.Market, model.DataType) (engine, error)

	mu          sync.Mutex
	workers     map[string]worker
	engines     map[string]engine
	subs        []model.Subscription // ordered, append-only: replay order
	channels    map[string]string    // subscription key -> channel
	dead        map[string]struct{}
	restartedAt map[string]int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
}

// New constructs the Manager. It owns no goroutines until the first
// subscribe (workers) or StartWatcher (outer watcher).
func New(cfg *config.Config, store *candlestore.Store, sink model.PublishSink, m *metrics.Metrics, log *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	mgr := &Manager{
		cfg:         cfg,
		store:       store,
		sink:        sink,
		metrics:     m,
		log:         log.With(slog.String("component", "manager")),
		workers:     make(map[string]worker),
		engines:     make(map[string]engine),
		channels:    make(map[string]string),
		dead:        make(map[string]struct{}),
		restartedAt: make(map[string]int64),
		ctx:         ctx,
		cancel:      cancel,
	}
	mgr.newWorker = mgr.createExchangeWorker
	mgr.newEngine = mgr.createIndicatorEngine
	return mgr
}

func workerKey(exchange model.Exchange, market model.Market) string {
	return model.MarketChannel(exchange, market)
}

// Subscribe is the §4.7 subscribe operation: ensure the worker (and, for
// indicator families, the engine) exists, register the data type and return
// the deterministic channel string. Identical tuples are idempotent.
func (m *Manager) Subscribe(sub model.Subscription) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return "", fmt.Errorf("manager: stopped")
	}

	wkey := workerKey(sub.Exchange, sub.Market)
	if _, isDead := m.dead[wkey]; isDead {
		return "", fmt.Errorf("manager: %s: %w", wkey, model.ErrDead)
	}

	if ch, ok := m.channels[sub.Key()]; ok {
		return ch, nil
	}

	w, err := m.ensureWorkerLocked(sub.Exchange, sub.Market)
	if err != nil {
		return "", err
	}

	var channel string
	if sub.DataType.IsRawMarket() {
		if err := w.Subscribe(sub.DataType, sub.Extras); err != nil {
			return "", fmt.Errorf("manager: subscribe %s: %w", sub.Key(), err)
		}
		channel = model.MarketChannel(sub.Exchange, sub.Market)
	} else {
		// An indicator rides the market's candle stream for its timeframe.
		if err := w.Subscribe(model.DataTypeCandle, sub.Extras); err != nil {
			return "", fmt.Errorf("manager: subscribe %s: %w", sub.Key(), err)
		}
		e, err := m.ensureEngineLocked(sub.Exchange, sub.Market, sub.DataType)
		if err != nil {
			return "", err
		}
		e.Subscribe(sub.Extras.Period(), sub.Extras.Timeframe())
		channel = model.IndicatorChannel(sub.Exchange, sub.Market, sub.Extras.Timeframe(), sub.Extras.Period())
	}

	m.subs = append(m.subs, sub)
	m.channels[sub.Key()] = channel
	return channel, nil
}

// Snapshot serves the synchronous /candle endpoint: the most recent ring's
// worth of candles for (exchange, market, interval) straight from C8.
func (m *Manager) Snapshot(ctx context.Context, exchange model.Exchange, market model.Market, interval model.Interval) ([]model.Candle, error) {
	client, err := m.historicalFor(exchange)
	if err != nil {
		return nil, err
	}
	endMs := interval.AlignMillis(model.NowMillis()) + interval.Millis()
	startMs := endMs - int64(m.cfg.CandleCapacity)*interval.Millis()
	return client.Snapshot(ctx, market, interval, startMs, endMs)
}

// StartWatcher spawns the outer watcher at the RESTART_THRESHOLD cadence.
func (m *Manager) StartWatcher() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.RestartThreshold)
		defer ticker.Stop()
		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.watchOnce()
			}
		}
	}()
}

// watchOnce is one outer-watcher pass: restart every supervisor that has
// gone stale past RESTART_THRESHOLD without the inner watchdog recovering
// it, replaying its subscriptions in original order. A worker whose
// replacement also goes stale within one threshold window is marked dead
// and refuses further subscribes until operator intervention (§7).
func (m *Manager) watchOnce() {
	m.mu.Lock()
	defer m.mu.Unlock()
	nowMs := model.NowMillis()
	thresholdMs := m.cfg.RestartThreshold.Milliseconds()

	for wkey, w := range m.workers {
		stale := nowMs-w.LastUpdateMillis() > thresholdMs
		if !w.Failed() && (!stale || w.Healthy()) {
			continue
		}

		if last, ok := m.restartedAt[wkey]; ok && nowMs-last <= 2*thresholdMs {
			m.log.Error("worker failed again right after restart, marking dead", "worker", wkey)
			m.dead[wkey] = struct{}{}
			w.Stop()
			delete(m.workers, wkey)
			continue
		}

		m.log.Warn("outer watcher restarting stale worker", "worker", wkey)
		if err := m.restartWorkerLocked(wkey, w); err != nil {
			m.log.Error("worker restart failed", "worker", wkey, "error", err)
		}
		m.restartedAt[wkey] = nowMs
	}
}

// restartWorkerLocked stops a worker, builds a replacement on the same
// (exchange, market) and replays all retained subscriptions in the order
// they were originally received. Caller holds m.mu.
func (m *Manager) restartWorkerLocked(wkey string, old worker) error {
	old.Stop()
	delete(m.workers, wkey)

	var exchange model.Exchange
	var market model.Market
	for _, sub := range m.subs {
		if workerKey(sub.Exchange, sub.Market) == wkey {
			exchange, market = sub.Exchange, sub.Market
			break
		}
	}
	if exchange == "" {
		return fmt.Errorf("manager: no retained subscriptions for %s", wkey)
	}

	w, err := m.ensureWorkerLocked(exchange, market)
	if err != nil {
		return err
	}

	for _, sub := range m.subs {
		if workerKey(sub.Exchange, sub.Market) != wkey {
			continue
		}
		dt := sub.DataType
		if !dt.IsRawMarket() {
			dt = model.DataTypeCandle
		}
		if err := w.Subscribe(dt, sub.Extras); err != nil {
			m.log.Warn("replay subscribe failed", "key", sub.Key(), "error", err)
		}
	}
	return nil
}

// Stop shuts everything down: engines, then supervisors, then the watcher.
// Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	workers := make([]worker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.mu.Unlock()

	// cancel stops every engine Run loop and the watcher
	m.cancel()
	for _, w := range workers {
		w.Stop()
	}
	m.wg.Wait()
	m.log.Info("manager stopped")
}

func (m *Manager) ensureWorkerLocked(exchange model.Exchange, market model.Market) (worker, error) {
	wkey := workerKey(exchange, market)
	if w, ok := m.workers[wkey]; ok {
		return w, nil
	}
	w, err := m.newWorker(exchange, market)
	if err != nil {
		return nil, err
	}
	if err := w.Start(m.ctx); err != nil {
		return nil, fmt.Errorf("manager: start worker %s: %w", wkey, err)
	}
	m.workers[wkey] = w
	return w, nil
}

func (m *Manager) ensureEngineLocked(exchange model.Exchange, market model.Market, family model.DataType) (engine, error) {
	ekey := workerKey(exchange, market) + "|" + string(family)
	if e, ok := m.engines[ekey]; ok {
		return e, nil
	}
	e, err := m.newEngine(exchange, market, family)
	if err != nil {
		return nil, err
	}
	m.engines[ekey] = e
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		e.Run(m.ctx)
	}()
	return e, nil
}

// createExchangeWorker is the §4.7 worker factory: picks the concrete
// connector protocol and historical client by exchange tag.
func (m *Manager) createExchangeWorker(exchange model.Exchange, market model.Market) (worker, error) {
	proto, err := m.protocolFor(exchange)
	if err != nil {
		return nil, err
	}
	hist, err := m.historicalFor(exchange)
	if err != nil {
		return nil, err
	}
	return supervisor.New(supervisor.Config{
		Exchange:           exchange,
		Market:             market,
		Intervals:          m.cfg.Intervals,
		CandleCapacity:     m.cfg.CandleCapacity,
		SoftResetThreshold: m.cfg.SoftResetThreshold,
		HardResetThreshold: m.cfg.HardResetThreshold,
	}, proto, m.store, hist, m.sink, m.metrics, m.log), nil
}

// createIndicatorEngine is the §4.7 engine factory.
func (m *Manager) createIndicatorEngine(exchange model.Exchange, market model.Market, family model.DataType) (engine, error) {
	switch family {
	case model.DataTypeRSI, model.DataTypeATR, model.DataTypeHMA, model.DataTypeMACD, model.DataTypeSMA:
		return indengine.New(exchange, market, family, m.store, m.sink, m.metrics, m.log), nil
	default:
		return nil, fmt.Errorf("manager: %w: %s", model.ErrUnsupportedIndicator, family)
	}
}

func (m *Manager) protocolFor(exchange model.Exchange) (connector.Protocol, error) {
	testnet := m.cfg.Network == "test"
	switch exchange {
	case model.ExchangeHyperliquid:
		network := connector.HyperliquidMainnet
		if testnet {
			network = connector.HyperliquidTestnet
		}
		return connector.Hyperliquid{Network: network}, nil
	case model.ExchangeBinance:
		return connector.Binance{Testnet: testnet}, nil
	default:
		return nil, fmt.Errorf("manager: %w: %s", model.ErrUnsupportedExchange, exchange)
	}
}

func (m *Manager) historicalFor(exchange model.Exchange) (model.HistoricalClient, error) {
	switch exchange {
	case model.ExchangeHyperliquid:
		network := connector.HyperliquidMainnet
		if m.cfg.Network == "test" {
			network = connector.HyperliquidTestnet
		}
		return historical.NewHyperliquidClient(network), nil
	case model.ExchangeBinance:
		return historical.NewBinanceClient(m.cfg.Network), nil
	default:
		return nil, fmt.Errorf("manager: %w: %s", model.ErrUnsupportedExchange, exchange)
	}
}
