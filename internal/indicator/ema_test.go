package indicator

import (
	"math"
	"testing"
)

func TestEMA_FlatSeriesConverges(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 10.0
	}
	got, err := EMA(prices, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-10.0) > 1e-9 {
		t.Fatalf("EMA of flat series = %v, want 10", got)
	}
}

func TestEMA_SeedsWithFirstValue(t *testing.T) {
	series := EMASeries([]float64{5, 5, 5}, 3)
	if series[0] != 5 {
		t.Fatalf("EMASeries[0] = %v, want 5 (seed)", series[0])
	}
}

func TestMACD_FlatSeriesZeroHistogram(t *testing.T) {
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 100.0
	}
	got, err := MACD(prices, 12, 26, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got.Histogram) > 1e-9 {
		t.Fatalf("Histogram on flat series = %v, want 0", got.Histogram)
	}
	if math.Abs(got.MACD) > 1e-9 {
		t.Fatalf("MACD on flat series = %v, want 0", got.MACD)
	}
}
