package indicator

import "math"

// HMA computes the Hull Moving Average of prices over period, resolving the
// half-window start offset as start_half = max(0, end - period/2) (integer
// division) rather than end - period/2 - 1 — the source carries both
// variants across different call sites; this one matches the canonical
// hma.py kernel and is used consistently throughout this package.
//
// Requires enough data to produce sqrt(period) valid diff values.
func HMA(prices []float64, period int) (float64, error) {
	length := len(prices)
	if period <= 0 || length == 0 {
		return 0, insufficientData("HMA", length, period)
	}

	diff := make([]float64, length)
	for i := 0; i < length; i++ {
		end := i + 1
		startHalf := maxInt(0, end-period/2)
		startFull := maxInt(0, end-period)
		diff[i] = 2.0*WMA(prices[startHalf:end]) - WMA(prices[startFull:end])
	}

	hmaPeriod := int(math.Sqrt(float64(period)))
	if hmaPeriod < 1 {
		hmaPeriod = 1
	}

	tail := make([]float64, hmaPeriod)
	count := 0
	for i := length - 1; i >= 0 && count < hmaPeriod; i-- {
		tail[hmaPeriod-1-count] = diff[i]
		count++
	}
	if count < hmaPeriod {
		return 0, insufficientData("HMA", count, hmaPeriod)
	}
	return WMA(tail), nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
