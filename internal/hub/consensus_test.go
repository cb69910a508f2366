package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yeddevall/duckmon-agents-ai/internal/events"
)

func freshSignal(agent string, typ events.SignalType, confidence float64, now time.Time) events.Signal {
	return events.Signal{
		AgentName:  agent,
		Type:       typ,
		Confidence: confidence,
		ReceivedAt: now.UnixMilli(),
	}
}

// TestComputeConsensus_WorkedExample reproduces the spec's S3 example:
// Trading BUY@80, Market HOLD@50, Prediction SELL@60, Liquidity BUY@70
// should land at a BUY consensus around 0.30 normalized.
func TestComputeConsensus_WorkedExample(t *testing.T) {
	now := time.Now()
	signals := map[string]events.Signal{
		"Trading":    freshSignal("Trading", events.SignalBuy, 80, now),
		"Market":     freshSignal("Market", events.SignalHold, 50, now),
		"Prediction": freshSignal("Prediction", events.SignalSell, 60, now),
		"Liquidity":  freshSignal("Liquidity", events.SignalBuy, 70, now),
	}

	result := ComputeConsensus(signals, now)

	assert.Equal(t, events.SignalBuy, result.Label)
	assert.InDelta(t, 0.304, result.Normalized, 0.02)
	assert.InDelta(t, 30, result.Strength, 2)
	assert.Len(t, result.Breakdown, 4)
}

func TestComputeConsensus_StaleSignalExcluded(t *testing.T) {
	now := time.Now()
	signals := map[string]events.Signal{
		"Trading": freshSignal("Trading", events.SignalBuy, 90, now.Add(-30*time.Minute)),
		"Market":  freshSignal("Market", events.SignalBuy, 90, now),
	}

	result := ComputeConsensus(signals, now)

	for _, c := range result.Breakdown {
		if c.AgentName == "Trading" {
			assert.False(t, c.Fresh)
		}
		if c.AgentName == "Market" {
			assert.True(t, c.Fresh)
		}
	}
	// Only Market contributes, so normalized is exactly Market's signed score.
	assert.InDelta(t, 0.9, result.Normalized, 1e-9)
}

func TestComputeConsensus_NoSignalsIsHold(t *testing.T) {
	result := ComputeConsensus(map[string]events.Signal{}, time.Now())
	assert.Equal(t, events.SignalHold, result.Label)
	assert.Zero(t, result.Normalized)
	assert.Zero(t, result.AgreementPct)
}

func TestComputeConsensus_UnknownAgentContributesZeroWeight(t *testing.T) {
	now := time.Now()
	signals := map[string]events.Signal{
		"SomeNewVariant": freshSignal("SomeNewVariant", events.SignalBuy, 99, now),
	}
	result := ComputeConsensus(signals, now)
	assert.Equal(t, events.SignalHold, result.Label)
	assert.Zero(t, result.Normalized)
}

func TestComputeConsensus_StrengthCappedAt95(t *testing.T) {
	now := time.Now()
	signals := map[string]events.Signal{
		"Trading":    freshSignal("Trading", events.SignalBuy, 100, now),
		"Market":     freshSignal("Market", events.SignalBuy, 100, now),
		"Prediction": freshSignal("Prediction", events.SignalBuy, 100, now),
		"Liquidity":  freshSignal("Liquidity", events.SignalBuy, 100, now),
		"Sentiment":  freshSignal("Sentiment", events.SignalBuy, 100, now),
		"On-chain":   freshSignal("On-chain", events.SignalBuy, 100, now),
		"Whale":      freshSignal("Whale", events.SignalBuy, 100, now),
	}
	result := ComputeConsensus(signals, now)
	assert.LessOrEqual(t, result.Strength, 95.0)
	assert.Equal(t, 100.0, result.AgreementPct)
}
