package prediction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeddevall/duckmon-agents-ai/internal/agent"
	"github.com/yeddevall/duckmon-agents-ai/internal/chainclient"
	"github.com/yeddevall/duckmon-agents-ai/internal/events"
)

func risingPrices(n int) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = 1.0 + float64(i)*0.01
	}
	return prices
}

func TestAnalyze_InsufficientHistoryHolds(t *testing.T) {
	a := New("prediction-test", nil)
	snap := agent.Snapshot{PriceHistory: make([]float64, 5), Now: time.Now()}
	result, err := a.Analyze(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, events.SignalHold, result.Signal.Type)
	assert.Equal(t, "Insufficient data", result.Signal.Reason)
}

func TestAnalyze_EnqueuesOnePendingPredictionPerHorizon(t *testing.T) {
	a := New("prediction-test", nil)
	snap := agent.Snapshot{PriceHistory: risingPrices(40), Now: time.Now()}
	_, err := a.Analyze(context.Background(), snap)
	require.NoError(t, err)

	a.mu.Lock()
	pending := len(a.pending)
	a.mu.Unlock()
	assert.Equal(t, len(Horizons), pending)
}

func TestAnalyze_UptrendYieldsBuySignal(t *testing.T) {
	a := New("prediction-test", nil)
	snap := agent.Snapshot{PriceHistory: risingPrices(40), Now: time.Now()}
	result, err := a.Analyze(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, events.SignalBuy, result.Signal.Type)
}

func TestVerify_MaturedPredictionSettlesExactlyOnce(t *testing.T) {
	registry := chainclient.NewRegistry(chainclient.NewStub(), "0xregistry")
	a := New("prediction-test", registry)

	now := time.Now()
	p := a.enqueue(events.PendingPrediction{
		Direction:      events.DirectionUp,
		ReferencePrice: 1.0,
		TargetTimeMs:   now.Add(-time.Minute).UnixMilli(),
		HorizonMinutes: 5,
	})
	assert.NotZero(t, p.ID)

	a.verify(context.Background(), now, 1.01) // +1% realized, satisfies UP threshold (>=0.5%)

	a.mu.Lock()
	pendingLen := len(a.pending)
	total := a.totalCount
	correct := a.correctCount
	a.mu.Unlock()

	assert.Equal(t, 0, pendingLen, "matured prediction must be removed from the ledger")
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, correct)

	// A second verify pass at the same time must not re-settle anything.
	a.verify(context.Background(), now, 1.01)
	a.mu.Lock()
	total2 := a.totalCount
	a.mu.Unlock()
	assert.Equal(t, total, total2, "must verify exactly once")
}

func TestVerify_SidewaysRequiresReturnWithinBand(t *testing.T) {
	a := New("prediction-test", nil)
	now := time.Now()
	a.enqueue(events.PendingPrediction{
		Direction:      events.DirectionSideways,
		ReferencePrice: 1.0,
		TargetTimeMs:   now.Add(-time.Minute).UnixMilli(),
	})
	a.verify(context.Background(), now, 1.02) // +2% breaks the sideways band

	a.mu.Lock()
	correct := a.correctCount
	a.mu.Unlock()
	assert.Equal(t, 0, correct)
}

func TestIsCorrect_Boundaries(t *testing.T) {
	assert.True(t, isCorrect(events.DirectionUp, upCorrectReturn))
	assert.False(t, isCorrect(events.DirectionUp, upCorrectReturn-0.0001))
	assert.True(t, isCorrect(events.DirectionDown, downCorrectReturn))
	assert.True(t, isCorrect(events.DirectionSideways, 0))
	assert.False(t, isCorrect(events.DirectionSideways, sidewaysCorrectBand))
}
