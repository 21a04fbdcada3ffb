package connector

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"marketcore/internal/model"
)

// HyperliquidNetwork selects between Hyperliquid's production and test
// environments, mirroring the EXCHANGE_NETWORK setting in SPEC_FULL §10.1.
type HyperliquidNetwork string

const (
	HyperliquidMainnet HyperliquidNetwork = "mainnet"
	HyperliquidTestnet HyperliquidNetwork = "testnet"
)

// Hyperliquid implements Protocol for Hyperliquid's public trades channel.
type Hyperliquid struct {
	Network HyperliquidNetwork
}

func (h Hyperliquid) wsBase() string {
	if h.Network == HyperliquidTestnet {
		return "wss://api.hyperliquid-testnet.xyz/ws"
	}
	return "wss://api.hyperliquid.xyz/ws"
}

// WSURL returns the shared Hyperliquid WS endpoint; the market is selected
// via the post-connect subscribe frame, not the URL.
func (h Hyperliquid) WSURL(_ model.Market) string { return h.wsBase() }

// SubscribeFrame builds {"method":"subscribe","subscription":{"type":"trades","coin":market}}.
func (h Hyperliquid) SubscribeFrame(market model.Market) any {
	return hlSubscribeFrame{
		Method: "subscribe",
		Subscription: hlSubscription{
			Type: "trades",
			Coin: string(market),
		},
	}
}

func (h Hyperliquid) PingInterval() time.Duration { return 20 * time.Second }
func (h Hyperliquid) PongTimeout() time.Duration  { return 10 * time.Second }

type hlSubscribeFrame struct {
	Method       string         `json:"method"`
	Subscription hlSubscription `json:"subscription"`
}

type hlSubscription struct {
	Type string `json:"type"`
	Coin string `json:"coin"`
}

type hlFrame struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// hlTrade is one element of a Hyperliquid "trades" channel data array.
// "users" carries the two counterparties of the fill (taker, maker); side
// "B"/"A" mirrors the REST API's buy/sell convention.
type hlTrade struct {
	Coin  string   `json:"coin"`
	Side  string   `json:"side"`
	Px    string   `json:"px"`
	Sz    string   `json:"sz"`
	Time  int64    `json:"time"`
	Users []string `json:"users"`
}

// ParseFrame decodes one Hyperliquid WS frame. subscriptionResponse frames
// are one-shot acks and carry no trades.
func (h Hyperliquid) ParseFrame(raw []byte) ([]model.Trade, bool, error) {
	var f hlFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, false, fmt.Errorf("hyperliquid: decode frame: %w", err)
	}

	switch f.Channel {
	case "subscriptionResponse":
		return nil, true, nil
	case "trades":
		var raws []hlTrade
		if err := json.Unmarshal(f.Data, &raws); err != nil {
			return nil, false, fmt.Errorf("hyperliquid: decode trades: %w", err)
		}
		trades := make([]model.Trade, 0, len(raws))
		for _, rt := range raws {
			price, err := strconv.ParseFloat(rt.Px, 64)
			if err != nil {
				continue
			}
			size, err := strconv.ParseFloat(rt.Sz, 64)
			if err != nil {
				continue
			}
			side := model.SideBuy
			if strings.EqualFold(rt.Side, "A") {
				side = model.SideSell
			}
			trades = append(trades, model.Trade{
				Price:       price,
				Size:        size,
				Side:        side,
				TimestampMs: rt.Time,
				Traders:     usersToSet(rt.Users),
			})
		}
		return trades, false, nil
	default:
		// Unrecognized channel (e.g. a pong echo or a channel we didn't
		// subscribe to) — not an error, just nothing to ingest.
		return nil, true, nil
	}
}

func usersToSet(users []string) map[string]struct{} {
	if len(users) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(users))
	for _, u := range users {
		if u != "" {
			set[u] = struct{}{}
		}
	}
	return set
}
