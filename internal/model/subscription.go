package model

import "fmt"

// DataType discriminates what a Subscription asks for.
type DataType string

const (
	DataTypeTrades    DataType = "trades"
	DataTypeOrderbook DataType = "orderbook"
	DataTypeCandle    DataType = "candle"
	DataTypeRSI       DataType = "rsi"
	DataTypeATR       DataType = "atr"
	DataTypeHMA       DataType = "hma"
	DataTypeMACD      DataType = "macd"
	DataTypeSMA       DataType = "sma"
)

// IsRawMarket reports whether this data type is served directly by the
// exchange worker (C6), as opposed to an indicator family served by an
// indicator engine (C5).
func (d DataType) IsRawMarket() bool {
	switch d {
	case DataTypeTrades, DataTypeOrderbook, DataTypeCandle:
		return true
	default:
		return false
	}
}

// Extras carries the data-type-specific fields from the subscribe request
// (timeframe, period, ...). Kept as a generic map so new indicator families
// don't require a new Subscription shape.
type Extras map[string]any

// Timeframe reads the "timeframe" extra as a model.Interval, defaulting to
// Interval1m when absent or invalid.
func (e Extras) Timeframe() Interval {
	if raw, ok := e["timeframe"]; ok {
		if s, ok := raw.(string); ok {
			if iv, err := ParseInterval(s); err == nil {
				return iv
			}
		}
	}
	return Interval1m
}

// Period reads the "period" extra as an int, defaulting to 14.
func (e Extras) Period() int {
	if raw, ok := e["period"]; ok {
		switch v := raw.(type) {
		case int:
			return v
		case float64:
			return int(v)
		}
	}
	return 14
}

// Subscription is the full (exchange, market, data_type, extras) tuple.
// The dedup key is the tuple rendered as a string (§3).
type Subscription struct {
	Exchange Exchange
	Market   Market
	DataType DataType
	Extras   Extras
}

// Key returns the deduplication key for this subscription tuple.
func (s Subscription) Key() string {
	key := fmt.Sprintf("%s|%s|%s", s.Exchange, s.Market, s.DataType)
	if s.DataType.IsRawMarket() {
		if s.DataType == DataTypeCandle {
			key += "|" + string(s.Extras.Timeframe())
		}
		return key
	}
	return fmt.Sprintf("%s|%d|%s", key, s.Extras.Period(), s.Extras.Timeframe())
}
