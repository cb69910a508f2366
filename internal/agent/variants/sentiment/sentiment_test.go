package sentiment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeddevall/duckmon-agents-ai/internal/agent"
	"github.com/yeddevall/duckmon-agents-ai/internal/events"
)

func TestAnalyze_StrongBuyPressureIsBullish(t *testing.T) {
	a := New()
	snap := agent.Snapshot{
		Price: events.PriceSample{Buys24h: 900, Sells24h: 100, Buys1h: 90, Sells1h: 10},
	}
	result, err := a.Analyze(context.Background(), snap)
	require.NoError(t, err)

	score := result.Signal.Payload["score"].(float64)
	assert.Greater(t, score, 60.0)
	assert.Equal(t, events.SignalBuy, result.Signal.Type)
}

func TestAnalyze_StrongSellPressureIsBearish(t *testing.T) {
	a := New()
	snap := agent.Snapshot{
		Price: events.PriceSample{Buys24h: 100, Sells24h: 900, Buys1h: 10, Sells1h: 90},
	}
	result, err := a.Analyze(context.Background(), snap)
	require.NoError(t, err)

	score := result.Signal.Payload["score"].(float64)
	assert.Less(t, score, 40.0)
	assert.Equal(t, events.SignalSell, result.Signal.Type)
}

func TestAnalyze_NoActivityIsNeutral(t *testing.T) {
	a := New()
	result, err := a.Analyze(context.Background(), agent.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, string(Neutral), result.Signal.Payload["label"])
	assert.Equal(t, events.SignalHold, result.Signal.Type)
}

func TestTxActivityGrowth_FirstTickReturnsZero(t *testing.T) {
	a := New()
	growth := a.txActivityGrowth(500)
	assert.Equal(t, 0.0, growth)
}

func TestTxActivityGrowth_SecondTickComparesAgainstFirst(t *testing.T) {
	a := New()
	a.txActivityGrowth(100)
	growth := a.txActivityGrowth(150)
	assert.InDelta(t, 0.5, growth, 0.001)
}

func TestVolumeAcceleration_ShortHistoryReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, volumeAcceleration(make([]float64, 5)))
}

func TestVolumeAcceleration_RisingVolumeIsPositive(t *testing.T) {
	volumes := make([]float64, 90)
	for i := range volumes {
		volumes[i] = 100
	}
	for i := 78; i < 90; i++ {
		volumes[i] = 500 // recent 1h window spikes
	}
	accel := volumeAcceleration(volumes)
	assert.Greater(t, accel, 0.0)
}

func TestLabelFor_Boundaries(t *testing.T) {
	assert.Equal(t, VeryBullish, labelFor(90))
	assert.Equal(t, Bullish, labelFor(65))
	assert.Equal(t, Neutral, labelFor(50))
	assert.Equal(t, Bearish, labelFor(30))
	assert.Equal(t, VeryBearish, labelFor(10))
}
