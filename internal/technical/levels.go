package technical

import "sort"

// SupportResistance returns a volume-weighted support and resistance level
// computed over the last lookback samples (standard 20, capped at the ring
// length). Prices are bucketed into at most 20 bins; support is the
// highest-volume bin at or below the current price, resistance the
// highest-volume bin at or above it. Fallback: when volumes are missing,
// mismatched, or uniform (no bin dominates), support/resistance fall back
// to the 10th/90th percentile of the price window.
func SupportResistance(prices, volumes []float64, lookback int) (support, resistance float64) {
	n := len(prices)
	if n == 0 {
		return 0, 0
	}
	if lookback <= 0 || lookback > n {
		lookback = n
	}
	priceWindow := prices[n-lookback:]
	current := prices[n-1]

	if len(volumes) != n {
		return percentileFallback(priceWindow, current)
	}
	volWindow := volumes[n-lookback:]

	lo, hi := minMax(priceWindow)
	if hi == lo {
		return lo, hi
	}

	const maxBins = 20
	binCount := maxBins
	if binCount > lookback {
		binCount = lookback
	}
	binWidth := (hi - lo) / float64(binCount)
	if binWidth == 0 {
		return percentileFallback(priceWindow, current)
	}

	binVolume := make([]float64, binCount)
	binPrice := make([]float64, binCount)
	for i := 0; i < binCount; i++ {
		binPrice[i] = lo + binWidth*(float64(i)+0.5)
	}
	uniform := true
	firstVol := volWindow[0]
	for i, p := range priceWindow {
		idx := int((p - lo) / binWidth)
		if idx >= binCount {
			idx = binCount - 1
		}
		binVolume[idx] += volWindow[i]
		if volWindow[i] != firstVol {
			uniform = false
		}
	}
	if uniform {
		return percentileFallback(priceWindow, current)
	}

	support, resistance = lo, hi
	bestSupportVol, bestResistVol := -1.0, -1.0
	for i := 0; i < binCount; i++ {
		if binPrice[i] <= current && binVolume[i] > bestSupportVol {
			bestSupportVol = binVolume[i]
			support = binPrice[i]
		}
		if binPrice[i] >= current && binVolume[i] > bestResistVol {
			bestResistVol = binVolume[i]
			resistance = binPrice[i]
		}
	}
	return support, resistance
}

func percentileFallback(prices []float64, current float64) (support, resistance float64) {
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)
	support = percentile(sorted, 0.10)
	resistance = percentile(sorted, 0.90)
	if support > current {
		support = current
	}
	if resistance < current {
		resistance = current
	}
	return support, resistance
}

func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// FibonacciLevels is the standard retracement grid computed from the
// highest and lowest close over the window.
type FibonacciLevels struct {
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	L236   float64 `json:"l236"`
	L382   float64 `json:"l382"`
	L500   float64 `json:"l500"`
	L618   float64 `json:"l618"`
	L786   float64 `json:"l786"`
}

// Fibonacci computes retracement levels over the whole ring (or the last
// lookback samples if lookback > 0).
func Fibonacci(prices []float64, lookback int) FibonacciLevels {
	n := len(prices)
	if n == 0 {
		return FibonacciLevels{}
	}
	if lookback <= 0 || lookback > n {
		lookback = n
	}
	window := prices[n-lookback:]
	low, high := minMax(window)
	span := high - low
	return FibonacciLevels{
		High: high,
		Low:  low,
		L236: high - span*0.236,
		L382: high - span*0.382,
		L500: high - span*0.5,
		L618: high - span*0.618,
		L786: high - span*0.786,
	}
}
