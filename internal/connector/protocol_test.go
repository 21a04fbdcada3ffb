package connector

import (
	"testing"

	"marketcore/internal/model"
)

func TestHyperliquid_ParseTradesFrame(t *testing.T) {
	raw := []byte(`{"channel":"trades","data":[
		{"coin":"BTC","side":"B","px":"100.5","sz":"0.25","time":1700000000000,"users":["0xaa","0xbb"]},
		{"coin":"BTC","side":"A","px":"100.4","sz":"1.5","time":1700000000100,"users":["0xcc"]}
	]}`)

	trades, ack, err := Hyperliquid{}.ParseFrame(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if ack {
		t.Fatal("trades frame flagged as ack")
	}
	if len(trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(trades))
	}

	first := trades[0]
	if first.Price != 100.5 || first.Size != 0.25 || first.Side != model.SideBuy {
		t.Fatalf("unexpected first trade: %+v", first)
	}
	if len(first.Traders) != 2 {
		t.Fatalf("traders = %d, want 2", len(first.Traders))
	}
	if trades[1].Side != model.SideSell {
		t.Fatalf("side A should map to sell, got %s", trades[1].Side)
	}
}

func TestHyperliquid_SubscriptionResponseIgnored(t *testing.T) {
	raw := []byte(`{"channel":"subscriptionResponse","data":{"method":"subscribe"}}`)
	trades, ack, err := Hyperliquid{}.ParseFrame(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !ack || len(trades) != 0 {
		t.Fatalf("subscriptionResponse should be a no-trade ack, got ack=%v trades=%d", ack, len(trades))
	}
}

func TestHyperliquid_MalformedFrame(t *testing.T) {
	if _, _, err := (Hyperliquid{}).ParseFrame([]byte(`{not json`)); err == nil {
		t.Fatal("malformed frame should error")
	}
}

func TestHyperliquid_SubscribeFrame(t *testing.T) {
	frame := Hyperliquid{}.SubscribeFrame(model.Market("BTC")).(hlSubscribeFrame)
	if frame.Method != "subscribe" || frame.Subscription.Type != "trades" || frame.Subscription.Coin != "BTC" {
		t.Fatalf("unexpected subscribe frame: %+v", frame)
	}
}

func TestBinance_ParseAggTrade(t *testing.T) {
	raw := []byte(`{"e":"aggTrade","E":1700000000010,"s":"BTCUSDT","p":"42000.10","q":"0.5","T":1700000000000,"m":true}`)

	trades, ack, err := Binance{}.ParseFrame(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if ack || len(trades) != 1 {
		t.Fatalf("ack=%v trades=%d, want one trade", ack, len(trades))
	}
	tr := trades[0]
	if tr.Price != 42000.10 || tr.Size != 0.5 || tr.TimestampMs != 1700000000000 {
		t.Fatalf("unexpected trade: %+v", tr)
	}
	if tr.Side != model.SideSell {
		t.Fatal("buyer-is-maker should map to an aggressor sell")
	}
}

func TestBinance_NonTradeEventIgnored(t *testing.T) {
	trades, ack, err := Binance{}.ParseFrame([]byte(`{"e":"24hrTicker"}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !ack || len(trades) != 0 {
		t.Fatalf("non-trade event should be ignored, got ack=%v trades=%d", ack, len(trades))
	}
}

func TestBinance_WSURL(t *testing.T) {
	got := Binance{}.WSURL(model.Market("BTCUSDT"))
	want := "wss://fstream.binance.com/ws/btcusdt@aggTrade"
	if got != want {
		t.Fatalf("url = %q, want %q", got, want)
	}
}
