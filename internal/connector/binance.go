package connector

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"marketcore/internal/model"
)

// wsBases for Binance USD-M futures. The stream is selected via the URL path
// so no post-connect subscribe frame is needed.
const (
	binanceFuturesWSMain = "wss://fstream.binance.com/ws"
	binanceFuturesWSTest = "wss://stream.binancefuture.com/ws"
)

// Binance implements Protocol for the Binance futures aggTrade stream.
// Testnet selects the demo-trading endpoint, matching EXCHANGE_NETWORK.
type Binance struct {
	Testnet bool
}

// WSURL returns the per-market aggTrade stream endpoint
// ("<base>/<symbol_lower>@aggTrade").
func (b Binance) WSURL(market model.Market) string {
	base := binanceFuturesWSMain
	if b.Testnet {
		base = binanceFuturesWSTest
	}
	return base + "/" + strings.ToLower(string(market)) + "@aggTrade"
}

// SubscribeFrame returns nil: Binance selects the stream via the URL.
func (b Binance) SubscribeFrame(_ model.Market) any { return nil }

func (b Binance) PingInterval() time.Duration { return 20 * time.Second }
func (b Binance) PongTimeout() time.Duration  { return 10 * time.Second }

// bnAggTrade is one aggTrade event. "m" is true when the buyer is the maker,
// i.e. the aggressor was a seller. EventTime claims the "E" key explicitly;
// without it encoding/json's case-insensitive fallback would route "E" onto
// the "e" field and fail decoding a number into a string.
type bnAggTrade struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Px    string `json:"p"`
	Qty   string `json:"q"`
	Time  int64  `json:"T"`
	Maker bool   `json:"m"`
}

// ParseFrame decodes one aggTrade event. Binance carries no trader
// identities on the public stream, so Traders stays nil.
func (b Binance) ParseFrame(raw []byte) ([]model.Trade, bool, error) {
	var ev bnAggTrade
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, false, fmt.Errorf("binance: decode frame: %w", err)
	}
	if ev.Event != "aggTrade" {
		return nil, true, nil
	}

	price, err := strconv.ParseFloat(ev.Px, 64)
	if err != nil {
		return nil, false, fmt.Errorf("binance: bad price %q: %w", ev.Px, err)
	}
	size, err := strconv.ParseFloat(ev.Qty, 64)
	if err != nil {
		return nil, false, fmt.Errorf("binance: bad qty %q: %w", ev.Qty, err)
	}

	side := model.SideBuy
	if ev.Maker {
		side = model.SideSell
	}
	return []model.Trade{{
		Price:       price,
		Size:        size,
		Side:        side,
		TimestampMs: ev.Time,
	}}, false, nil
}
