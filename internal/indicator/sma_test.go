package indicator

import (
	"math"
	"testing"
)

func TestSMA_Basic(t *testing.T) {
	arr := []float64{1, 2, 3, 4, 5, 6}
	got, err := SMA(arr, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("SMA[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSMA_WindowLargerThanInput(t *testing.T) {
	if _, err := SMA([]float64{1, 2}, 5); err == nil {
		t.Fatal("expected insufficient-data error")
	}
}

func TestWMA_MatchesHandComputed(t *testing.T) {
	// weights 1,2,3 over values 10,20,30 -> (10*1+20*2+30*3)/(1+2+3) = 140/6
	got := WMA([]float64{10, 20, 30})
	want := 140.0 / 6.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("WMA = %v, want %v", got, want)
	}
}

func TestWMA_Empty(t *testing.T) {
	if got := WMA(nil); got != 0 {
		t.Fatalf("WMA(nil) = %v, want 0", got)
	}
}
