package indicator

import (
	"math"
	"testing"
)

func TestATR_ConstantRange(t *testing.T) {
	n := 30
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = 110
		lows[i] = 90
		closes[i] = 100
	}

	got, err := ATR(highs, lows, closes, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// true range is constant 20 once seeded (no gap between high/low/prev close)
	if math.Abs(got-20) > 1e-9 {
		t.Fatalf("ATR = %v, want 20", got)
	}
}

func TestATR_InsufficientData(t *testing.T) {
	if _, err := ATR([]float64{1, 2}, []float64{1, 2}, []float64{1, 2}, 14); err == nil {
		t.Fatal("expected insufficient-data error")
	}
}

func TestATR_MismatchedLengths(t *testing.T) {
	highs := make([]float64, 20)
	lows := make([]float64, 19)
	closes := make([]float64, 20)
	if _, err := ATR(highs, lows, closes, 14); err == nil {
		t.Fatal("expected error for mismatched slice lengths")
	}
}
