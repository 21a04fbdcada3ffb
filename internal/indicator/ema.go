package indicator

// EMASeries computes the exponential moving average of values over the
// given period, seeding ema[0] = values[0] and recurring
// ema[i] = alpha*x_i + (1-alpha)*ema[i-1] with alpha = 2/(period+1). Returns
// a series the same length as values (matching the source's vectorised
// kernel, which MACD relies on for its own internal EMA passes).
func EMASeries(values []float64, period int) []float64 {
	ema := make([]float64, len(values))
	if len(values) == 0 {
		return ema
	}
	alpha := 2.0 / float64(period+1)
	ema[0] = values[0]
	for i := 1; i < len(values); i++ {
		ema[i] = alpha*values[i] + (1-alpha)*ema[i-1]
	}
	return ema
}

// EMA returns the last value of EMASeries(values, period).
func EMA(values []float64, period int) (float64, error) {
	if len(values) == 0 || period <= 0 {
		return 0, insufficientData("EMA", len(values), period)
	}
	series := EMASeries(values, period)
	return series[len(series)-1], nil
}
