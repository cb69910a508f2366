// Package gas polls the current gas price on a fast cadence, keeps a
// bounded history ring, and emits a qualitative recommendation plus a
// linear next-block extrapolation.
//
// Grounded on the bounded-ring-plus-derived-signal shape of
// internal/features/volatility.go, retargeted from a price/volatility
// ring to a gas-price ring with a five-band qualitative label instead of
// a continuous indicator value.
package gas

import (
	"context"
	"fmt"

	"github.com/yeddevall/duckmon-agents-ai/internal/agent"
	"github.com/yeddevall/duckmon-agents-ai/internal/chainclient"
	"github.com/yeddevall/duckmon-agents-ai/internal/events"
	"github.com/yeddevall/duckmon-agents-ai/internal/hubclient"
	"github.com/yeddevall/duckmon-agents-ai/internal/ringbuf"
)

// HistoryCap bounds the gas-price ring. At the 10s tick cmd/agent
// configures for this variant, this covers roughly the last twenty minutes.
const HistoryCap = 120

// Recommendation bands, in gwei. These are development-network defaults,
// not a mainnet-calibrated schedule; an operator pointed at a different
// chain should override them via NewWithBands.
const (
	ExcellentMaxGwei = 5.0
	GoodMaxGwei      = 15.0
	NormalMaxGwei    = 30.0
	ElevatedMaxGwei  = 60.0
)

// Agent polls gas price and maintains the fleet's gas-price history.
type Agent struct {
	client chainclient.Client
	hub    *hubclient.Client
	ring   *ringbuf.Float

	excellentMax, goodMax, normalMax, elevatedMax float64
}

// New creates a Gas agent using the default recommendation bands.
func New(client chainclient.Client, hub *hubclient.Client) *Agent {
	return NewWithBands(client, hub, ExcellentMaxGwei, GoodMaxGwei, NormalMaxGwei, ElevatedMaxGwei)
}

// NewWithBands creates a Gas agent with custom recommendation band
// ceilings, for chains whose typical gas price is far from the
// development defaults.
func NewWithBands(client chainclient.Client, hub *hubclient.Client, excellentMax, goodMax, normalMax, elevatedMax float64) *Agent {
	return &Agent{
		client:       client,
		hub:          hub,
		ring:         ringbuf.NewFloat(HistoryCap),
		excellentMax: excellentMax,
		goodMax:      goodMax,
		normalMax:    normalMax,
		elevatedMax:  elevatedMax,
	}
}

// Analyze implements agent.AnalyzeFunc.
func (a *Agent) Analyze(ctx context.Context, snap agent.Snapshot) (agent.Result, error) {
	gwei, err := a.client.GetGasPriceGwei(ctx)
	if err != nil {
		return agent.Result{}, fmt.Errorf("gas: get gas price: %w", err)
	}
	current := gwei.InexactFloat64()
	a.ring.Append(current)

	recommendation := a.recommendationFor(current)
	nextBlock := a.nextBlockExtrapolation()

	update := events.GasUpdate{
		GasPriceGwei:   current,
		Recommendation: recommendation,
		NextBlockGwei:  nextBlock,
		ReceivedAt:     events.NowMs(),
	}
	if a.hub != nil {
		if err := a.hub.PostGasUpdate(ctx, update); err != nil {
			return agent.Result{}, fmt.Errorf("gas: post gas update: %w", err)
		}
	}

	return agent.Result{Signal: events.Signal{
		Type:       events.SignalHold, // gas price has no buy/sell direction of its own
		Confidence: 50,
		Reason:     fmt.Sprintf("gas price %.2f gwei (%s)", current, recommendation),
		Payload: map[string]any{
			"gasPriceGwei":   current,
			"recommendation": string(recommendation),
			"nextBlockGwei":  nextBlock,
		},
	}}, nil
}

func (a *Agent) recommendationFor(gwei float64) events.GasRecommendation {
	switch {
	case gwei <= a.excellentMax:
		return events.GasExcellent
	case gwei <= a.goodMax:
		return events.GasGood
	case gwei <= a.normalMax:
		return events.GasNormal
	case gwei <= a.elevatedMax:
		return events.GasElevated
	default:
		return events.GasHigh
	}
}

// nextBlockExtrapolation fits a line through the gas-price ring and
// projects one step forward. Fallback: the current reading when the
// ring doesn't yet have at least two samples to fit a slope through.
func (a *Agent) nextBlockExtrapolation() float64 {
	samples := a.ring.Slice()
	n := len(samples)
	if n < 2 {
		if n == 1 {
			return samples[0]
		}
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range samples {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	count := float64(n)
	denom := count*sumXX - sumX*sumX
	if denom == 0 {
		return samples[n-1]
	}
	slope := (count*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / count

	projected := slope*count + intercept
	if projected < 0 {
		projected = 0
	}
	return projected
}
