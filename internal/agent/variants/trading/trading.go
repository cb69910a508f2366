// Package trading is the full-technical-analysis agent variant: it votes
// across eight indicators from internal/technical and emits a BUY/SELL/HOLD
// signal from the net score.
//
// Grounded on the weighted multi-factor scoring shape of the teacher's
// internal/scanner/scoring.go (TokenScore / ScoringWeights), retargeted
// from a one-shot rug-risk score to a per-tick trading vote.
package trading

import (
	"context"
	"fmt"
	"math"

	"github.com/yeddevall/duckmon-agents-ai/internal/agent"
	"github.com/yeddevall/duckmon-agents-ai/internal/events"
	"github.com/yeddevall/duckmon-agents-ai/internal/technical"
)

// MinHistory is the minimum number of price samples required before a
// real vote is computed; below it the agent reports HOLD with a fixed
// "insufficient data" reason instead of trading on noise.
const MinHistory = 30

// BuyThreshold / SellThreshold bound the HOLD band around a net score of 0.
const (
	BuyThreshold  = 0.15
	SellThreshold = -0.15
)

// Analyze implements agent.AnalyzeFunc for the trading variant.
func Analyze(ctx context.Context, snap agent.Snapshot) (agent.Result, error) {
	prices := snap.PriceHistory
	volumes := snap.VolumeHistory

	if len(prices) < MinHistory {
		return agent.Result{Signal: events.Signal{
			Type:       events.SignalHold,
			Confidence: 30,
			Reason:     "Insufficient data",
		}}, nil
	}

	rsi := technical.RSI(prices, 14)
	macd := technical.MACD(prices, 12, 26, 9)
	bb := technical.Bollinger(prices, 20, 2)
	direction, strength := technical.TrendDirectionStrength(prices)
	ichimoku := technical.Ichimoku(prices, 9, 26)
	stochK, stochD := technical.StochRSI(prices, 14, 14, 3)
	momentum := technical.Momentum(prices, 10)
	vwapDev := technical.VWAPDeviation(prices, volumes)

	price := prices[len(prices)-1]

	components := []float64{
		(rsi - 50) / 50,
		macdComponent(macd, price),
		(bb.PercentB - 0.5) * 2,
		direction * strength,
		ichimoku,
		((stochK-50)/50 + (stochD-50)/50) / 2,
		clamp(momentum*10, -1, 1),
		clamp(vwapDev*10, -1, 1),
	}

	net := 0.0
	for _, c := range components {
		net += c
	}
	net /= float64(len(components))

	signalType := events.SignalHold
	switch {
	case net > BuyThreshold:
		signalType = events.SignalBuy
	case net < SellThreshold:
		signalType = events.SignalSell
	}

	confidence := clamp(50+math.Abs(net)*100, 25, 95)

	return agent.Result{Signal: events.Signal{
		Type:       signalType,
		Confidence: confidence,
		Reason:     fmt.Sprintf("net score %.3f over %d samples", net, len(prices)),
		Payload: map[string]any{
			"rsi":        rsi,
			"macd":       macd.MACDLine,
			"macdSignal": macd.Signal,
			"bollingerB": bb.PercentB,
			"trend":      direction * strength,
			"ichimoku":   ichimoku,
			"stochK":     stochK,
			"stochD":     stochD,
			"momentum":   momentum,
			"vwapDev":    vwapDev,
			"netScore":   net,
		},
	}}, nil
}

func macdComponent(m technical.MACDResult, price float64) float64 {
	if price == 0 {
		return 0
	}
	return clamp((m.Histogram/price)*50, -1, 1)
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
