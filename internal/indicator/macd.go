package indicator

// MACDResult is the (macd, signal, histogram) triple at the last index.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD computes the Moving Average Convergence/Divergence line, its signal
// line, and their difference, all evaluated at the last element of prices.
func MACD(prices []float64, fast, slow, signal int) (MACDResult, error) {
	if len(prices) == 0 || fast <= 0 || slow <= 0 || signal <= 0 {
		return MACDResult{}, insufficientData("MACD", len(prices), slow)
	}

	emaFast := EMASeries(prices, fast)
	emaSlow := EMASeries(prices, slow)

	macdLine := make([]float64, len(prices))
	for i := range prices {
		macdLine[i] = emaFast[i] - emaSlow[i]
	}
	signalLine := EMASeries(macdLine, signal)

	last := len(prices) - 1
	histogram := macdLine[last] - signalLine[last]
	return MACDResult{MACD: macdLine[last], Signal: signalLine[last], Histogram: histogram}, nil
}
