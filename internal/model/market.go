// Package model holds the wire- and domain-level types shared by every
// component of the candle/indicator core: markets, exchanges, intervals,
// trades, candles, subscriptions and the error taxonomy.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Exchange is the enumerated venue tag.
type Exchange string

const (
	ExchangeHyperliquid Exchange = "HYPERLIQUID"
	ExchangeBinance     Exchange = "BINANCE"
)

// ParseExchange validates a string against the known exchange set.
func ParseExchange(s string) (Exchange, error) {
	switch ex := Exchange(strings.ToUpper(strings.TrimSpace(s))); ex {
	case ExchangeHyperliquid, ExchangeBinance:
		return ex, nil
	default:
		return "", fmt.Errorf("model: %w: %q", ErrUnsupportedExchange, s)
	}
}

// Lower returns the channel-naming form ("hyperliquid", "binance").
func (e Exchange) Lower() string { return strings.ToLower(string(e)) }

// Market is the canonical symbol tag. Exchange-specific names are translated
// at the connector boundary (see internal/connector).
type Market string

// Lower returns the channel-naming form ("btcusd_perp").
func (m Market) Lower() string { return strings.ToLower(string(m)) }

// Interval is one of the fixed candle timeframes, totally ordered by
// duration.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
)

// AllIntervals lists every supported interval in ascending duration order.
var AllIntervals = []Interval{Interval1m, Interval5m, Interval30m, Interval1h, Interval1d, Interval1w}

// intervalMillis maps each interval to its fixed millisecond span.
var intervalMillis = map[Interval]int64{
	Interval1m:  60_000,
	Interval5m:  5 * 60_000,
	Interval30m: 30 * 60_000,
	Interval1h:  60 * 60_000,
	Interval1d:  24 * 60 * 60_000,
	Interval1w:  7 * 24 * 60 * 60_000,
}

// Millis returns the interval's fixed duration in milliseconds. Returns 0 for
// an unrecognized interval.
func (i Interval) Millis() int64 { return intervalMillis[i] }

// ParseInterval validates a string against the closed interval set.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(strings.TrimSpace(strings.ToLower(s)))
	if _, ok := intervalMillis[iv]; !ok {
		return "", fmt.Errorf("model: %w: %q", ErrUnsupportedInterval, s)
	}
	return iv, nil
}

// AlignMillis rounds down a millisecond timestamp to the interval boundary.
func (i Interval) AlignMillis(ts int64) int64 {
	span := i.Millis()
	if span == 0 {
		return ts
	}
	return ts - (ts % span)
}

// MarketChannel returns the deterministic market-stream channel name:
// "{exchange_lower}_{market_lower}".
func MarketChannel(exchange Exchange, market Market) string {
	return exchange.Lower() + "_" + market.Lower()
}

// IndicatorChannel returns the deterministic indicator-sample channel name:
// "{exchange_lower}_{market_lower}_{timeframe}_{period}".
func IndicatorChannel(exchange Exchange, market Market, tf Interval, period int) string {
	return fmt.Sprintf("%s_%s_%s_%d", exchange.Lower(), market.Lower(), tf, period)
}

// Now returns the current wall-clock time in UTC. Kept as a function (rather
// than calling time.Now directly everywhere) so components can stub it in
// tests that exercise liveness/watchdog timing.
var Now = func() time.Time { return time.Now().UTC() }

// NowMillis returns Now() as Unix milliseconds.
func NowMillis() int64 { return Now().UnixMilli() }
