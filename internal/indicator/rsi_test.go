package indicator

import (
	"math"
	"testing"
)

func TestRSI_AllGains(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = float64(100 + i)
	}
	got, err := RSI(prices, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-100.0) > 1e-9 {
		t.Fatalf("RSI of monotonically rising prices = %v, want 100", got)
	}
}

func TestRSI_AllLosses(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = float64(200 - i)
	}
	got, err := RSI(prices, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0.0 {
		t.Fatalf("RSI of monotonically falling prices = %v, want 0", got)
	}
}

func TestRSI_Flat(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100.0
	}
	got, err := RSI(prices, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 100.0 {
		t.Fatalf("RSI of flat prices = %v, want 100 (avg_loss == 0 branch)", got)
	}
}

func TestRSI_InsufficientData(t *testing.T) {
	if _, err := RSI([]float64{1, 2, 3}, 14); err == nil {
		t.Fatal("expected insufficient-data error")
	}
}
