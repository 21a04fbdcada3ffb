package indicator

// RSI computes the Relative Strength Index over all of prices using
// Wilder's classical smoothing: seed avg_gain/avg_loss as the simple mean of
// the first `period` deltas, then recur new = (prev*(period-1) + x) / period
// for every remaining delta. Returns a value in [0, 100].
//
// Requires len(prices) > period.
func RSI(prices []float64, period int) (float64, error) {
	if period <= 0 || len(prices) <= period {
		return 0, insufficientData("RSI", len(prices), period)
	}

	gains := make([]float64, 0, len(prices)-1)
	losses := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gains = append(gains, delta)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -delta)
		}
	}

	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	p := float64(period)
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*(p-1) + gains[i]) / p
		avgLoss = (avgLoss*(p-1) + losses[i]) / p
	}

	if avgLoss == 0 {
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs)), nil
}
