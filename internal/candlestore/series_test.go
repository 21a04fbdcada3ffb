package candlestore

import (
	"testing"

	"marketcore/internal/model"
)

func TestSeries_CreateAndFillCandle(t *testing.T) {
	s := New(4)

	s.CreateCandle()
	s.SetTime(1000)
	s.InitOpen(100)
	s.RaiseHigh(110)
	s.LowerLow(95)
	s.SetClose(105)
	s.AddVolume(10)
	s.AddBuyerVolume(6)
	s.AddSellerVolume(4)
	s.SetUniqueTraders(3)

	if got := s.GetTime(); got != 1000 {
		t.Fatalf("GetTime() = %d, want 1000", got)
	}

	rows := s.Rows()
	last := rows[len(rows)-1]
	if last.Open != 100 || last.High != 110 || last.Low != 95 || last.Close != 105 {
		t.Fatalf("unexpected OHLC: %+v", last)
	}
	if last.Volume != 10 || last.BuyerVolume != 6 || last.SellerVolume != 4 {
		t.Fatalf("unexpected volumes: %+v", last)
	}
	if last.UniqueTraders != 3 {
		t.Fatalf("UniqueTraders = %d, want 3", last.UniqueTraders)
	}
	if !last.Sound() {
		t.Fatalf("candle should be sound: %+v", last)
	}
}

func TestSeries_RingWrapsAtCapacity(t *testing.T) {
	s := New(3)

	for i := 0; i < 5; i++ {
		s.CreateCandle()
		s.SetTime(int64(i))
		s.InitOpen(float64(i))
	}

	rows := s.Rows()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	// After 5 creates on a 3-slot ring, the surviving open_time_ms values
	// should be 2, 3, 4 in oldest-first order.
	want := []int64{2, 3, 4}
	for i, c := range rows {
		if c.OpenTimeMs != want[i] {
			t.Fatalf("row %d: OpenTimeMs = %d, want %d", i, c.OpenTimeMs, want[i])
		}
	}
}

func TestSeries_GetColumnsOrderedOldestFirst(t *testing.T) {
	s := New(3)
	for i := 1; i <= 3; i++ {
		s.CreateCandle()
		s.SetTime(int64(i))
		s.InitOpen(float64(i * 10))
		s.SetClose(float64(i*10 + 1))
	}

	opens := s.GetOpens()
	closes := s.GetCloses()
	if len(opens) != 3 || len(closes) != 3 {
		t.Fatalf("expected length-3 columns, got opens=%d closes=%d", len(opens), len(closes))
	}
	wantOpens := []float64{10, 20, 30}
	for i, v := range opens {
		if v != wantOpens[i] {
			t.Fatalf("opens[%d] = %v, want %v", i, v, wantOpens[i])
		}
	}
}

func TestSeries_PutHistoricalBackfillsWithoutOverwritingInProgress(t *testing.T) {
	s := New(3)
	s.CreateCandle()
	s.SetTime(300)
	s.InitOpen(30)

	s.PutHistorical(1, model.Candle{OpenTimeMs: 200, Open: 20, High: 22, Low: 18, Close: 21, Volume: 5})
	s.PutHistorical(2, model.Candle{OpenTimeMs: 100, Open: 10, High: 12, Low: 9, Close: 11, Volume: 3})

	rows := s.Rows()
	if rows[0].OpenTimeMs != 100 || rows[1].OpenTimeMs != 200 || rows[2].OpenTimeMs != 300 {
		t.Fatalf("unexpected backfilled order: %+v", rows)
	}
	if rows[2].Open != 30 {
		t.Fatalf("in-progress candle was overwritten: %+v", rows[2])
	}
}

func TestSeries_HealthFlag(t *testing.T) {
	s := New(2)
	if s.Healthy() {
		t.Fatal("new series should start unhealthy")
	}
	s.SetHealthy(true)
	if !s.Healthy() {
		t.Fatal("expected healthy after SetHealthy(true)")
	}
}

func TestSeries_FilledFlag(t *testing.T) {
	s := New(2)
	if s.Filled() {
		t.Fatal("new series should not be filled")
	}
	s.CreateCandle()
	if !s.Filled() {
		t.Fatal("expected filled after CreateCandle")
	}
}
