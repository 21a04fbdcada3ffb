package indicator

// ATR computes the Average True Range over all supplied bars using Wilder
// smoothing. True range for bar i is max(high-low, |high-prevClose|,
// |low-prevClose|); the seed is the simple mean of tr[1:period+1], then
// atr = (prev*(period-1) + tr_i) / period for the remainder.
//
// Requires len(highs) == len(lows) == len(closes) > period.
func ATR(highs, lows, closes []float64, period int) (float64, error) {
	n := len(highs)
	if period <= 0 || n <= period || len(lows) != n || len(closes) != n {
		return 0, insufficientData("ATR", n, period)
	}

	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := abs(highs[i] - closes[i-1])
		lc := abs(lows[i] - closes[i-1])
		tr[i] = maxOf3(hl, hc, lc)
	}

	var atr float64
	for i := 1; i <= period; i++ {
		atr += tr[i]
	}
	atr /= float64(period)

	p := float64(period)
	for i := period + 1; i < n; i++ {
		atr = (atr*(p-1) + tr[i]) / p
	}
	return atr, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxOf3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
