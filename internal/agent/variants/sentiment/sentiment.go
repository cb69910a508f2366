// Package sentiment derives a 0-100 crowd-sentiment score from buy/sell
// pressure, volume acceleration, price momentum, and transaction-activity
// growth, then labels it across a five-bucket scale.
//
// Grounded on the weighted multi-factor composite shape of
// internal/technical/composite.go's FearGreed (itself grounded on the
// teacher's own features), retargeted from a volatility/momentum blend
// to a buy-pressure/volume-acceleration blend using the buy/sell counts
// the price aggregator already reports.
package sentiment

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/yeddevall/duckmon-agents-ai/internal/agent"
	"github.com/yeddevall/duckmon-agents-ai/internal/events"
	"github.com/yeddevall/duckmon-agents-ai/internal/technical"
)

// Label is the five-bucket sentiment classification of a 0-100 score.
type Label string

const (
	VeryBullish Label = "VERY BULLISH"
	Bullish     Label = "BULLISH"
	Neutral     Label = "NEUTRAL"
	Bearish     Label = "BEARISH"
	VeryBearish Label = "VERY BEARISH"
)

const (
	recentVolumeWindow = 12 // ~1h at 5-min sampling
	longerVolumeWindow = 72 // ~6h at 5-min sampling
)

// Agent carries the one piece of state this variant needs across ticks:
// the previous tick's transaction count, to measure activity growth.
type Agent struct {
	mu             sync.Mutex
	lastTxActivity int
	hasPrior       bool
}

// New creates a Sentiment agent with no prior transaction-activity
// reading.
func New() *Agent {
	return &Agent{}
}

// Analyze implements agent.AnalyzeFunc.
func (a *Agent) Analyze(ctx context.Context, snap agent.Snapshot) (agent.Result, error) {
	price := snap.Price
	totalTx24h := price.Buys24h + price.Sells24h
	totalTx1h := price.Buys1h + price.Sells1h

	buyRatio24h := ratioComponent(price.Buys24h, price.Sells24h)
	buyRatio1h := ratioComponent(price.Buys1h, price.Sells1h)
	volumeAccel := volumeAcceleration(snap.VolumeHistory)
	momentum := clamp(technical.Momentum(snap.PriceHistory, 10)*10, -1, 1)
	txGrowth := a.txActivityGrowth(totalTx24h)

	components := []float64{buyRatio24h, buyRatio1h, volumeAccel, momentum, txGrowth}
	net := 0.0
	for _, c := range components {
		net += c
	}
	net /= float64(len(components))

	score := clamp((net+1)/2*100, 0, 100)
	label := labelFor(score)

	signalType := events.SignalHold
	switch {
	case score >= 60:
		signalType = events.SignalBuy
	case score <= 40:
		signalType = events.SignalSell
	}

	confidence := clamp(40+math.Abs(net)*55, 25, 95)

	return agent.Result{Signal: events.Signal{
		Type:       signalType,
		Confidence: confidence,
		Reason:     fmt.Sprintf("sentiment score %.0f (%s)", score, label),
		Payload: map[string]any{
			"score":         score,
			"label":         string(label),
			"buyRatio24h":   buyRatio24h,
			"buyRatio1h":    buyRatio1h,
			"volumeAccel":   volumeAccel,
			"momentum":      momentum,
			"txGrowth":      txGrowth,
			"totalTx1h":     totalTx1h,
		},
	}}, nil
}

// ratioComponent maps a buys/sells pair to [-1,1]: +1 all buys, -1 all
// sells, 0 when there's no activity to judge.
func ratioComponent(buys, sells int) float64 {
	total := buys + sells
	if total == 0 {
		return 0
	}
	ratio := float64(buys) / float64(total)
	return (ratio - 0.5) * 2
}

// volumeAcceleration compares the average of the most recent ~1h of
// volume samples against the average of the preceding ~6h, returning the
// fractional difference clamped to [-1,1]. Fallback: 0 when there isn't
// enough history for a meaningful comparison.
func volumeAcceleration(volumes []float64) float64 {
	n := len(volumes)
	if n < recentVolumeWindow {
		return 0
	}
	recent := average(volumes[n-recentVolumeWindow:])

	longerEnd := n - recentVolumeWindow
	longerStart := longerEnd - longerVolumeWindow
	if longerStart < 0 {
		longerStart = 0
	}
	if longerEnd <= longerStart {
		return 0
	}
	longer := average(volumes[longerStart:longerEnd])
	if longer == 0 {
		return 0
	}
	return clamp((recent-longer)/longer, -1, 1)
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// txActivityGrowth compares this tick's transaction count against the
// last tick's, as a fractional change clamped to [-1,1]. Fallback: 0 on
// the first tick, when there's nothing to compare against.
func (a *Agent) txActivityGrowth(current int) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.hasPrior {
		a.hasPrior = true
		a.lastTxActivity = current
		return 0
	}
	prev := a.lastTxActivity
	a.lastTxActivity = current
	if prev == 0 {
		return 0
	}
	return clamp(float64(current-prev)/float64(prev), -1, 1)
}

func labelFor(score float64) Label {
	switch {
	case score >= 75:
		return VeryBullish
	case score >= 60:
		return Bullish
	case score > 40:
		return Neutral
	case score > 25:
		return Bearish
	default:
		return VeryBearish
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
