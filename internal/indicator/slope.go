package indicator

// Slope computes the least-squares regression slope of series over every
// window of the given length, returning a slice of length
// len(series)-window+1.
func Slope(series []float64, window int) ([]float64, error) {
	n := len(series)
	if window <= 0 || window > n {
		return nil, insufficientData("Slope", n, window)
	}

	x := make([]float64, window)
	var xMean float64
	for i := range x {
		x[i] = float64(i)
		xMean += x[i]
	}
	xMean /= float64(window)

	var denom float64
	for _, xi := range x {
		d := xi - xMean
		denom += d * d
	}

	slopes := make([]float64, n-window+1)
	for i := 0; i <= n-window; i++ {
		y := series[i : i+window]
		var yMean float64
		for _, v := range y {
			yMean += v
		}
		yMean /= float64(window)

		var numer float64
		for j, v := range y {
			numer += (x[j] - xMean) * (v - yMean)
		}
		slopes[i] = numer / denom
	}
	return slopes, nil
}

// SlopeSegment is a maximal run of slopes with a consistent sign and
// magnitude within tol, reported as [start, end] indices into the slopes
// slice plus the segment's mean slope.
type SlopeSegment struct {
	Start, End int
	MeanSlope  float64
}

// SlopeSegments groups slopes into segments where the sign is consistent and
// consecutive values don't jump by more than tol, matching the source's
// detect_slope_segments kernel.
func SlopeSegments(slopes []float64, tol float64) []SlopeSegment {
	if len(slopes) == 0 {
		return nil
	}

	var segments []SlopeSegment
	start := 0
	current := slopes[0]

	mean := func(lo, hi int) float64 {
		var sum float64
		for _, v := range slopes[lo:hi] {
			sum += v
		}
		return sum / float64(hi-lo)
	}

	for i := 1; i < len(slopes); i++ {
		if slopes[i]*current < 0 || abs(slopes[i]-current) > tol {
			segments = append(segments, SlopeSegment{Start: start, End: i - 1, MeanSlope: mean(start, i)})
			start = i
		}
		current = slopes[i]
	}
	segments = append(segments, SlopeSegment{Start: start, End: len(slopes) - 1, MeanSlope: mean(start, len(slopes))})
	return segments
}
