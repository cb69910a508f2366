package technical

import "math"

// FearGreed composes a single [0,100] sentiment score from RSI, short-term
// volatility, momentum, trend strength, and Bollinger %B. Weights are fixed
// and sum to 1; the result is always clamped to [0,100] even though no
// individual term can push it out of range on its own, as a guard against
// future weight changes.
func FearGreed(prices, volumes []float64) float64 {
	if len(prices) == 0 {
		return 50
	}
	rsi := RSI(prices, 14)
	_, trendStrength := TrendDirectionStrength(prices)
	momentum := Momentum(prices, 10)
	vol := annualizedVolatility(prices)
	bb := Bollinger(prices, 20, 2)

	rsiScore := rsi
	trendScore := trendStrength * 100
	momentumScore := clamp(50+momentum*500, 0, 100)
	volScore := clamp(100-vol*100, 0, 100) // high volatility reads as fear
	bbScore := bb.PercentB * 100

	score := 0.30*rsiScore + 0.20*volScore + 0.20*momentumScore + 0.15*trendScore + 0.15*bbScore
	return clamp(score, 0, 100)
}

// annualizedVolatility is the stddev of log returns over the whole ring,
// annualized assuming 5-minute sampling (~105120 samples/year). Mirrors
// the teacher's volatility calculation, generalized to a pure function
// over a caller-owned window instead of a streaming accumulator.
func annualizedVolatility(prices []float64) float64 {
	n := len(prices)
	if n < 2 {
		return 0
	}
	returns := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(prices[i]/prices[i-1]))
	}
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var sumSq float64
	for _, r := range returns {
		d := r - mean
		sumSq += d * d
	}
	variance := sumSq / float64(len(returns)-1) // Bessel's correction
	stddev := math.Sqrt(variance)
	const samplesPerYear = 105120.0
	return stddev * math.Sqrt(samplesPerYear)
}

// Regime is a coarse classification of the current price-action character.
type Regime string

const (
	RegimeTrendingUp   Regime = "trending_up"
	RegimeTrendingDown Regime = "trending_down"
	RegimeMeanReverting Regime = "mean_reverting"
	RegimeHighVolatility Regime = "high_volatility"
	RegimeBreakout      Regime = "breakout"
	RegimeUnknown       Regime = "unknown"
)

// ClassifyRegime buckets the current price action using trend strength,
// volatility, and the position of price within its recent Bollinger range.
// Grounded on the threshold-ladder style of the teacher's regime detector,
// adapted from trade-tape order-flow inputs to price-only technical inputs.
func ClassifyRegime(prices []float64) Regime {
	n := len(prices)
	if n < 10 {
		return RegimeUnknown
	}
	direction, strength := TrendDirectionStrength(prices)
	vol := annualizedVolatility(prices)
	bb := Bollinger(prices, 20, 2)

	switch {
	case vol > 1.5:
		return RegimeHighVolatility
	case bb.PercentB >= 0.98 || bb.PercentB <= 0.02:
		return RegimeBreakout
	case strength >= 0.4 && direction > 0:
		return RegimeTrendingUp
	case strength >= 0.4 && direction < 0:
		return RegimeTrendingDown
	case strength < 0.15:
		return RegimeMeanReverting
	default:
		return RegimeUnknown
	}
}
