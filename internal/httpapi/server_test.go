package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"marketcore/internal/model"
)

type fakeCore struct {
	subs     []model.Subscription
	subErr   error
	candles  []model.Candle
	snapErr  error
}

func (f *fakeCore) Subscribe(sub model.Subscription) (string, error) {
	if f.subErr != nil {
		return "", f.subErr
	}
	f.subs = append(f.subs, sub)
	if sub.DataType.IsRawMarket() {
		return model.MarketChannel(sub.Exchange, sub.Market), nil
	}
	return model.IndicatorChannel(sub.Exchange, sub.Market, sub.Extras.Timeframe(), sub.Extras.Period()), nil
}

func (f *fakeCore) Snapshot(context.Context, model.Exchange, model.Market, model.Interval) ([]model.Candle, error) {
	return f.candles, f.snapErr
}

func newTestServer(core *fakeCore) *Server {
	return NewServer(":0", core, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func post(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestSubscribeMarket_Trades(t *testing.T) {
	core := &fakeCore{}
	rec := post(t, newTestServer(core), "/subscribe/market",
		`{"exchange":"hyperliquid","market":"BTCUSD_PERP","data_type":"trades"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp["channel"] != "hyperliquid_btcusd_perp" {
		t.Fatalf("channel = %q, want hyperliquid_btcusd_perp", resp["channel"])
	}
}

func TestSubscribeMarket_CandleRequiresValidTimeframe(t *testing.T) {
	core := &fakeCore{}
	rec := post(t, newTestServer(core), "/subscribe/market",
		`{"exchange":"hyperliquid","market":"BTC","data_type":"candle","timeframe":"7m"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if len(core.subs) != 0 {
		t.Fatal("invalid timeframe must not reach the manager")
	}
}

func TestSubscribeMarket_UnknownExchangeDiagnostic(t *testing.T) {
	rec := post(t, newTestServer(&fakeCore{}), "/subscribe/market",
		`{"exchange":"kraken","market":"BTC","data_type":"trades"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unsupported exchange") {
		t.Fatalf("body %q should carry the diagnostic text", rec.Body.String())
	}
}

func TestSubscribeIndicator_RSI(t *testing.T) {
	core := &fakeCore{}
	rec := post(t, newTestServer(core), "/subscribe/indicator",
		`{"exchange":"hyperliquid","market":"BTCUSD_PERP","indicator":"rsi","period":14,"timeframe":"1m"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["channel"] != "hyperliquid_btcusd_perp_1m_14" {
		t.Fatalf("channel = %q, want hyperliquid_btcusd_perp_1m_14", resp["channel"])
	}
	if len(core.subs) != 1 || core.subs[0].DataType != model.DataTypeRSI {
		t.Fatalf("manager saw %+v", core.subs)
	}
}

func TestSubscribeIndicator_RawTypeRejected(t *testing.T) {
	rec := post(t, newTestServer(&fakeCore{}), "/subscribe/indicator",
		`{"exchange":"hyperliquid","market":"BTC","indicator":"trades"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestSubscribe_ManagerErrorSurfaces(t *testing.T) {
	core := &fakeCore{subErr: errors.New("exchange market marked dead")}
	rec := post(t, newTestServer(core), "/subscribe/market",
		`{"exchange":"binance","market":"BTCUSDT","data_type":"trades"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "marked dead") {
		t.Fatalf("body %q should carry the manager diagnostic", rec.Body.String())
	}
}

func TestCandle_Snapshot(t *testing.T) {
	core := &fakeCore{candles: []model.Candle{
		{OpenTimeMs: 60_000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{OpenTimeMs: 120_000, Open: 1.5, High: 3, Low: 1, Close: 2, Volume: 20},
	}}
	rec := post(t, newTestServer(core), "/candle",
		`{"exchange":"hyperliquid","market":"BTC","timeframe":"1m"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Type     string `json:"type"`
		Response []struct {
			T int64   `json:"t"`
			C float64 `json:"c"`
		} `json:"response"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(resp.Response) != 2 || resp.Response[1].T != 120_000 || resp.Response[1].C != 2 {
		t.Fatalf("unexpected snapshot response: %+v", resp)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/subscribe/market", nil)
	rec := httptest.NewRecorder()
	newTestServer(&fakeCore{}).Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
