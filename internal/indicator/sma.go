package indicator

// smaReseedEvery bounds error drift in the sliding sum: after this many
// incremental updates the window sum is recomputed from scratch.
const smaReseedEvery = 64

// SMA computes the simple moving average over every window of the given
// length in arr, using an incremental sliding-window sum (O(n) total rather
// than O(n*window)), periodically re-seeded so floating-point drift stays
// bounded. Returns a slice of length len(arr)-window+1.
func SMA(arr []float64, window int) ([]float64, error) {
	n := len(arr)
	if window <= 0 || window > n {
		return nil, insufficientData("SMA", n, window)
	}

	result := make([]float64, n-window+1)

	seed := func(start int) float64 {
		var sum, comp float64
		for i := start; i < start+window; i++ {
			y := arr[i] - comp
			t := sum + y
			comp = (t - sum) - y
			sum = t
		}
		return sum
	}

	sum := seed(0)
	result[0] = sum / float64(window)

	sinceSeed := 0
	for i := window; i < n; i++ {
		sinceSeed++
		if sinceSeed >= smaReseedEvery {
			sum = seed(i - window + 1)
			sinceSeed = 0
		} else {
			sum += arr[i] - arr[i-window]
		}
		result[i-window+1] = sum / float64(window)
	}
	return result, nil
}
