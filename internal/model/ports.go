package model

import "context"

// ── Storage/transport port interfaces ──
// These decouple the core from the external collaborators named out of
// scope in spec §1: the exchange WS/REST SDK, the shared-memory transport,
// and the pub/sub bus. Each concrete package (internal/connector,
// internal/historical, internal/sink) satisfies one or more of these.

// HistoricalClient is the §4.4.1 / C8 REST snapshot contract: N most recent
// candles for (market, interval) ending at end_ms.
type HistoricalClient interface {
	// Snapshot returns candles for [start_ms, end_ms], ordered oldest-first.
	// t on each returned candle is millisecond open-time aligned to interval_ms.
	Snapshot(ctx context.Context, market Market, interval Interval, startMs, endMs int64) ([]Candle, error)
}

// PublishSink is the §4.5 pluggable publication sink. Both concrete sinks
// (shared-memory stat table, pub/sub bus) support update-or-insert
// semantics keyed by the sample's deterministic channel.
type PublishSink interface {
	PublishIndicator(ctx context.Context, sample IndicatorSample) error
	PublishCandle(ctx context.Context, exchange Exchange, market Market, interval Interval, candle Candle) error
}

// Connector is the C3 contract: a per-(exchange, market) WebSocket client
// producing trades into a bounded queue.
type Connector interface {
	// Start connects and streams trades into the queue until ctx is
	// cancelled or the connector is stopped. Returns only on terminal
	// shutdown.
	Start(ctx context.Context) error

	// Reset forces a reconnect cycle without fully stopping (soft reset).
	Reset()

	// Close stops the connector permanently (terminal state).
	Close() error

	// LastUpdateMillis returns the wall-clock time (Unix millis) of the
	// most recent inbound frame, including pings.
	LastUpdateMillis() int64
}
