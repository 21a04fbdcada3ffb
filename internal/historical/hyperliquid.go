package historical

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"marketcore/internal/connector"
	"marketcore/internal/model"
)

// hyperliquidInfoMain/Testnet are Hyperliquid's public "info" REST endpoints
// (distinct from the WS base connector.Hyperliquid dials).
const (
	hyperliquidInfoMain    = "https://api.hyperliquid.xyz/info"
	hyperliquidInfoTestnet = "https://api.hyperliquid-testnet.xyz/info"
)

// HyperliquidClient is the C8 binding for Hyperliquid's candleSnapshot info
// request. The example pack carries no Hyperliquid REST SDK (only the public
// WS protocol, used by internal/connector) so this binding talks to the
// documented /info endpoint directly over net/http — see DESIGN.md for why
// this one component falls back to the standard library.
type HyperliquidClient struct {
	baseURL string
	http    *http.Client
}

// NewHyperliquidClient builds a client for the given network ("mainnet" or
// "testnet", matching the connector's HyperliquidNetwork values).
func NewHyperliquidClient(network connector.HyperliquidNetwork) *HyperliquidClient {
	base := hyperliquidInfoMain
	if network == connector.HyperliquidTestnet {
		base = hyperliquidInfoTestnet
	}
	return &HyperliquidClient{
		baseURL: base,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type hlCandleSnapshotRequest struct {
	Type string             `json:"type"`
	Req  hlCandleSnapshotReq `json:"req"`
}

type hlCandleSnapshotReq struct {
	Coin      string `json:"coin"`
	Interval  string `json:"interval"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
}

// hlCandle mirrors the candleSnapshot response row: t/T are open/close time
// in millis, o/h/l/c/v are decimal strings, n is trade count (unused here).
type hlCandle struct {
	T int64  `json:"t"`
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
	V string `json:"v"`
}

// Snapshot implements model.HistoricalClient for Hyperliquid.
func (h *HyperliquidClient) Snapshot(ctx context.Context, market model.Market, interval model.Interval, startMs, endMs int64) ([]model.Candle, error) {
	body, err := json.Marshal(hlCandleSnapshotRequest{
		Type: "candleSnapshot",
		Req: hlCandleSnapshotReq{
			Coin:      string(market),
			Interval:  string(interval),
			StartTime: startMs,
			EndTime:   endMs,
		},
	})
	if err != nil {
		return nil, wrapErr(model.ExchangeHyperliquid, market, interval, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, wrapErr(model.ExchangeHyperliquid, market, interval, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, wrapErr(model.ExchangeHyperliquid, market, interval, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, wrapErr(model.ExchangeHyperliquid, market, interval, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var raw []hlCandle
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, wrapErr(model.ExchangeHyperliquid, market, interval, err)
	}

	candles := make([]model.Candle, 0, len(raw))
	for _, c := range raw {
		open, err1 := strconv.ParseFloat(c.O, 64)
		high, err2 := strconv.ParseFloat(c.H, 64)
		low, err3 := strconv.ParseFloat(c.L, 64)
		close, err4 := strconv.ParseFloat(c.C, 64)
		vol, err5 := strconv.ParseFloat(c.V, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		candles = append(candles, model.Candle{
			OpenTimeMs: c.T,
			Open:       open,
			High:       high,
			Low:        low,
			Close:      close,
			Volume:     vol,
		})
	}

	sortByOpenTime(candles)
	return candles, nil
}
