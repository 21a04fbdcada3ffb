package historical

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketcore/internal/model"
)

func TestHyperliquidClient_Snapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req hlCandleSnapshotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Type != "candleSnapshot" {
			t.Fatalf("unexpected request type %q", req.Type)
		}
		if req.Req.Coin != "BTC" {
			t.Fatalf("unexpected coin %q", req.Req.Coin)
		}
		rows := []hlCandle{
			{T: 120_000, O: "100", H: "110", L: "95", C: "105", V: "10"},
			{T: 60_000, O: "90", H: "100", L: "85", C: "100", V: "5"},
		}
		json.NewEncoder(w).Encode(rows)
	}))
	defer srv.Close()

	client := &HyperliquidClient{baseURL: srv.URL, http: srv.Client()}
	candles, err := client.Snapshot(context.Background(), model.Market("BTC"), model.Interval1m, 0, 180_000)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("len(candles) = %d, want 2", len(candles))
	}
	if candles[0].OpenTimeMs != 60_000 || candles[1].OpenTimeMs != 120_000 {
		t.Fatalf("candles not ordered oldest-first: %+v", candles)
	}
	if candles[0].Open != 90 || candles[0].Volume != 5 {
		t.Fatalf("unexpected parsed row: %+v", candles[0])
	}
}

func TestHyperliquidClient_Snapshot_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := &HyperliquidClient{baseURL: srv.URL, http: srv.Client()}
	if _, err := client.Snapshot(context.Background(), model.Market("BTC"), model.Interval1m, 0, 60_000); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestSortByOpenTime(t *testing.T) {
	rows := []model.Candle{
		{OpenTimeMs: 300},
		{OpenTimeMs: 100},
		{OpenTimeMs: 200},
	}
	sortByOpenTime(rows)
	for i := 1; i < len(rows); i++ {
		if rows[i].OpenTimeMs < rows[i-1].OpenTimeMs {
			t.Fatalf("rows not sorted: %+v", rows)
		}
	}
}
