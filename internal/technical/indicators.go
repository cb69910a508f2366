// Package technical is the pure, deterministic analytics library shared by
// every agent variant and the hub's self-analysis loop. Every function here
// takes an oldest-first price ring (plus an optional parallel volume ring)
// and returns a scalar or small record; none perform I/O, none hold state
// across calls, and every function defines a documented fallback for
// input shorter than its minimum window instead of panicking or erroring.
//
// Grounded on the circular-buffer/rolling-window idiom in the teacher's
// internal/features package (momentum.go, volatility.go, vwap.go),
// generalized from a live per-symbol streaming calculator to a pure
// function over a caller-owned ring snapshot.
package technical

import "math"

// NeutralRSI is the documented fallback RSI value when input is too short.
const NeutralRSI = 50.0

// SMA returns the simple moving average of the last period samples.
// Fallback: average of all available samples (0 if the input is empty).
func SMA(prices []float64, period int) float64 {
	n := len(prices)
	if n == 0 {
		return 0
	}
	if period > n || period <= 0 {
		period = n
	}
	window := prices[n-period:]
	sum := 0.0
	for _, p := range window {
		sum += p
	}
	return sum / float64(period)
}

// emaSeries computes the EMA of series using the given period, seeded by
// the SMA of the first `period` values. The returned series is aligned
// with the input: entries before the seed point are the running SMA seed.
func emaSeries(series []float64, period int) []float64 {
	n := len(series)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if period <= 0 {
		period = 1
	}
	if period > n {
		period = n
	}
	k := 2.0 / (float64(period) + 1.0)

	seed := SMA(series[:period], period)
	for i := 0; i < period; i++ {
		out[i] = seed
	}
	prev := seed
	for i := period; i < n; i++ {
		prev = series[i]*k + prev*(1-k)
		out[i] = prev
	}
	return out
}

// EMA returns the last value of the exponential moving average of prices
// over period. Fallback: SMA over whatever is available.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	series := emaSeries(prices, period)
	return series[len(series)-1]
}

// RSI returns the Relative Strength Index over period (standard 14).
// Fallback: NeutralRSI when n < period+1.
func RSI(prices []float64, period int) float64 {
	if period <= 0 {
		period = 14
	}
	n := len(prices)
	if n < period+1 {
		return NeutralRSI
	}

	gains, losses := 0.0, 0.0
	start := n - period
	for i := start; i < n; i++ {
		d := prices[i] - prices[i-1]
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		if avgGain == 0 {
			return NeutralRSI
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// rsiSeries computes a trailing-window RSI value at every index >= period,
// used internally by StochRSI. Indexes before `period` hold NeutralRSI.
func rsiSeries(prices []float64, period int) []float64 {
	n := len(prices)
	out := make([]float64, n)
	for i := range out {
		out[i] = NeutralRSI
	}
	for i := period; i < n; i++ {
		out[i] = RSI(prices[:i+1], period)
	}
	return out
}

// MACDResult holds the three MACD components.
type MACDResult struct {
	MACDLine  float64
	Signal    float64
	Histogram float64
}

// MACD computes the MACD line (fastEMA-slowEMA), the signal line (the
// 9-period EMA of the MACD-line series, not a scalar multiple of it), and
// the histogram. Reads the whole ring but is only accurate once
// n >= slow+signal periods; for constant price series all three components
// are exactly 0 (regression guard, property #10).
func MACD(prices []float64, fast, slow, signal int) MACDResult {
	if fast <= 0 {
		fast = 12
	}
	if slow <= 0 {
		slow = 26
	}
	if signal <= 0 {
		signal = 9
	}
	n := len(prices)
	if n == 0 {
		return MACDResult{}
	}

	fastSeries := emaSeries(prices, fast)
	slowSeries := emaSeries(prices, slow)
	macdSeries := make([]float64, n)
	for i := 0; i < n; i++ {
		macdSeries[i] = fastSeries[i] - slowSeries[i]
	}
	signalSeries := emaSeries(macdSeries, signal)

	macdLine := macdSeries[n-1]
	signalLine := signalSeries[n-1]
	return MACDResult{
		MACDLine:  macdLine,
		Signal:    signalLine,
		Histogram: macdLine - signalLine,
	}
}

// BollingerResult holds the three bands plus %B.
type BollingerResult struct {
	Upper     float64
	Middle    float64
	Lower     float64
	PercentB  float64 // (price - lower) / (upper - lower), clamped [0,1]
}

// Bollinger computes Bollinger Bands over period (standard 20) with the
// given standard-deviation multiplier (standard 2.0).
func Bollinger(prices []float64, period int, mult float64) BollingerResult {
	if period <= 0 {
		period = 20
	}
	if mult <= 0 {
		mult = 2.0
	}
	n := len(prices)
	if n == 0 {
		return BollingerResult{PercentB: 0.5}
	}
	if period > n {
		period = n
	}
	window := prices[n-period:]
	middle := SMA(prices, period)

	var sumSq float64
	for _, p := range window {
		d := p - middle
		sumSq += d * d
	}
	stddev := math.Sqrt(sumSq / float64(period))

	upper := middle + mult*stddev
	lower := middle - mult*stddev

	price := prices[n-1]
	percentB := 0.5
	if upper != lower {
		percentB = (price - lower) / (upper - lower)
	}
	return BollingerResult{Upper: upper, Middle: middle, Lower: lower, PercentB: clamp(percentB, 0, 1)}
}

// StochRSI computes the Stochastic RSI %K and %D lines. Reads the whole
// ring but is accurate only once n >= rsiPeriod+stochPeriod.
func StochRSI(prices []float64, rsiPeriod, stochPeriod, smoothD int) (k, d float64) {
	if rsiPeriod <= 0 {
		rsiPeriod = 14
	}
	if stochPeriod <= 0 {
		stochPeriod = 14
	}
	if smoothD <= 0 {
		smoothD = 3
	}
	n := len(prices)
	if n < rsiPeriod+1 {
		return 50, 50
	}
	rsis := rsiSeries(prices, rsiPeriod)

	kSeries := make([]float64, 0, n)
	for i := rsiPeriod; i < n; i++ {
		lo, hi := rsiPeriod, i
		if i-rsiPeriod+1 < stochPeriod {
			lo = rsiPeriod
		} else {
			lo = i - stochPeriod + 1
		}
		window := rsis[lo : hi+1]
		minR, maxR := minMax(window)
		if maxR == minR {
			kSeries = append(kSeries, 50)
			continue
		}
		kSeries = append(kSeries, 100*(rsis[i]-minR)/(maxR-minR))
	}
	if len(kSeries) == 0 {
		return 50, 50
	}
	k = kSeries[len(kSeries)-1]
	d = SMA(kSeries, smoothD)
	return k, d
}

// Momentum returns the rate of change over period: (last - first)/first.
// Fallback: 0 when n < period+1 or the reference price is 0.
func Momentum(prices []float64, period int) float64 {
	n := len(prices)
	if period <= 0 || n < period+1 {
		return 0
	}
	ref := prices[n-period-1]
	if ref == 0 {
		return 0
	}
	return (prices[n-1] - ref) / ref
}

// VWAP computes the volume-weighted average price over the whole ring.
// Fallback: plain average of prices when volumes is nil, mismatched
// length, or all-zero.
func VWAP(prices, volumes []float64) float64 {
	if len(volumes) != len(prices) || len(prices) == 0 {
		return SMA(prices, len(prices))
	}
	var num, den float64
	for i, p := range prices {
		num += p * volumes[i]
		den += volumes[i]
	}
	if den == 0 {
		return SMA(prices, len(prices))
	}
	return num / den
}

// VWAPDeviation returns (price - vwap) / vwap for the latest price.
func VWAPDeviation(prices, volumes []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	vwap := VWAP(prices, volumes)
	if vwap == 0 {
		return 0
	}
	return (prices[len(prices)-1] - vwap) / vwap
}

// ATR approximates the Average True Range from a close-only price ring by
// treating each bar's true range as |p[i]-p[i-1]| (no high/low in the
// data model, per spec §3's price-sample shape).
func ATR(prices []float64, period int) float64 {
	if period <= 0 {
		period = 14
	}
	n := len(prices)
	if n < 2 {
		return 0
	}
	if period > n-1 {
		period = n - 1
	}
	start := n - period
	sum := 0.0
	for i := start; i < n; i++ {
		sum += math.Abs(prices[i] - prices[i-1])
	}
	return sum / float64(period)
}

// OBV computes On-Balance Volume across the whole ring.
func OBV(prices, volumes []float64) float64 {
	if len(volumes) != len(prices) || len(prices) < 2 {
		return 0
	}
	obv := 0.0
	for i := 1; i < len(prices); i++ {
		switch {
		case prices[i] > prices[i-1]:
			obv += volumes[i]
		case prices[i] < prices[i-1]:
			obv -= volumes[i]
		}
	}
	return obv
}

// Ichimoku returns a signal in [-1,1]: price above both Tenkan and Kijun
// midlines is bullish, below both is bearish, in between is neutral. Needs
// only close prices (no high/low in the data model): Tenkan/Kijun are
// approximated as the midpoint of the min/max close over their windows.
func Ichimoku(prices []float64, tenkanP, kijunP int) float64 {
	if tenkanP <= 0 {
		tenkanP = 9
	}
	if kijunP <= 0 {
		kijunP = 26
	}
	n := len(prices)
	if n == 0 {
		return 0
	}
	tenkan := midpoint(lastWindow(prices, tenkanP))
	kijun := midpoint(lastWindow(prices, kijunP))
	price := prices[n-1]

	above := 0
	if price > tenkan {
		above++
	} else if price < tenkan {
		above--
	}
	if price > kijun {
		above++
	} else if price < kijun {
		above--
	}
	return float64(above) / 2.0
}

// TrendDirectionStrength returns a direction in [-1,1] (sign of the SMA20
// vs SMA50 spread) and a strength in [0,1] (normalized spread magnitude).
func TrendDirectionStrength(prices []float64) (direction, strength float64) {
	n := len(prices)
	if n < 2 {
		return 0, 0
	}
	fastP, slowP := 20, 50
	if fastP > n {
		fastP = n
	}
	if slowP > n {
		slowP = n
	}
	fast := SMA(prices, fastP)
	slow := SMA(prices, slowP)
	if slow == 0 {
		return 0, 0
	}
	spread := (fast - slow) / slow
	direction = sign(spread)
	strength = clamp(math.Abs(spread)*20, 0, 1)
	return direction, strength
}

func lastWindow(prices []float64, period int) []float64 {
	n := len(prices)
	if period > n {
		period = n
	}
	return prices[n-period:]
}

func midpoint(window []float64) float64 {
	if len(window) == 0 {
		return 0
	}
	lo, hi := minMax(window)
	return (lo + hi) / 2
}

func minMax(xs []float64) (min, max float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	min, max = xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	return min, max
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
