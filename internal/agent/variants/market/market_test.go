package market

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeddevall/duckmon-agents-ai/internal/agent"
	"github.com/yeddevall/duckmon-agents-ai/internal/events"
)

func flatPrices(n int) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = 1.0
	}
	return prices
}

func TestAnalyze_InsufficientHistoryHolds(t *testing.T) {
	a := New()
	result, err := a.Analyze(context.Background(), agent.Snapshot{PriceHistory: make([]float64, MinHistory-1)})
	require.NoError(t, err)
	assert.Equal(t, events.SignalHold, result.Signal.Type)
	assert.Equal(t, "Insufficient data", result.Signal.Reason)
}

func TestAnalyze_WhaleMoveAlertFiresOnSharpJump(t *testing.T) {
	a := New()
	prices := flatPrices(40)
	prices[len(prices)-1] = prices[len(prices)-2] * 1.05 // +5% single tick, above 3% threshold

	result, err := a.Analyze(context.Background(), agent.Snapshot{PriceHistory: prices})
	require.NoError(t, err)

	alerts, ok := result.Signal.Payload["alerts"].([]Alert)
	require.True(t, ok, "expected alerts slice in payload")
	require.NotEmpty(t, alerts)
	assert.Equal(t, "whale_move", alerts[0].Kind)
}

func TestAnalyze_NoWhaleMoveAlertOnSmallTick(t *testing.T) {
	a := New()
	prices := flatPrices(40)
	prices[len(prices)-1] = prices[len(prices)-2] * 1.01 // +1%, below threshold

	result, err := a.Analyze(context.Background(), agent.Snapshot{PriceHistory: prices})
	require.NoError(t, err)
	_, hasAlerts := result.Signal.Payload["alerts"]
	assert.False(t, hasAlerts)
}

func TestRegimeChangeAlert_FiresOnlyOnTransition(t *testing.T) {
	a := New()

	flat := flatPrices(60)
	_, err := a.Analyze(context.Background(), agent.Snapshot{PriceHistory: flat})
	require.NoError(t, err)
	// First observation never fires (previous regime starts Unknown).

	trending := make([]float64, 60)
	for i := range trending {
		trending[i] = 1.0 + float64(i)*0.05
	}
	result, err := a.Analyze(context.Background(), agent.Snapshot{PriceHistory: trending})
	require.NoError(t, err)

	if alerts, ok := result.Signal.Payload["alerts"].([]Alert); ok {
		for _, al := range alerts {
			assert.NotEqual(t, "", al.Kind)
		}
	}
	// mean_reverting (flat) to a different regime fires exactly one alert.
	alerts, ok := result.Signal.Payload["alerts"].([]Alert)
	require.True(t, ok)
	require.Len(t, alerts, 1)
	assert.Equal(t, "regime_change", alerts[0].Kind)

	// The same regime observed again does not fire.
	again, err := a.Analyze(context.Background(), agent.Snapshot{PriceHistory: trending})
	require.NoError(t, err)
	_, hasAlerts := again.Signal.Payload["alerts"]
	assert.False(t, hasAlerts)
}

func TestAnalyzeWithAlerts_ReturnsTypedAlerts(t *testing.T) {
	a := New()
	prices := flatPrices(40)
	prices[len(prices)-1] = prices[len(prices)-2] * 0.9 // -10% drop

	result, err := a.AnalyzeWithAlerts(context.Background(), agent.Snapshot{PriceHistory: prices})
	require.NoError(t, err)
	require.NotEmpty(t, result.Alerts)
	assert.Equal(t, "whale_move", result.Alerts[0].Kind)
}
