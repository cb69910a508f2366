package onchain

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeddevall/duckmon-agents-ai/internal/agent"
	"github.com/yeddevall/duckmon-agents-ai/internal/chainclient"
	"github.com/yeddevall/duckmon-agents-ai/internal/events"
)

func padAddr(a string) string {
	clean := a[2:]
	for len(clean) < 64 {
		clean = "0" + clean
	}
	return "0x" + clean
}

func transferLog(blockNumber uint64, from, to string, value decimal.Decimal) chainclient.LogEntry {
	valueWord := chainclient.DecimalToBaseUnits(value)
	bigVal, _ := decimal.NewFromString(valueWord)
	hexVal := bigVal.BigInt().Text(16)
	for len(hexVal) < 64 {
		hexVal = "0" + hexVal
	}
	return chainclient.LogEntry{
		Address:     "0xtoken",
		Topics:      []string{"0x00", padAddr(from), padAddr(to)},
		Data:        "0x" + hexVal,
		BlockNumber: blockNumber,
		TxHash:      "0xtx",
	}
}

func TestAnalyze_TracksHolderGrowth(t *testing.T) {
	stub := chainclient.NewStub()
	stub.SetBlockNumber(100)
	a := New(stub, "0xtoken", nil)

	_, err := a.Analyze(context.Background(), agent.Snapshot{})
	require.NoError(t, err)

	stub.SetBlockNumber(101)
	stub.AddLog(transferLog(101, "0xaaaa000000000000000000000000000000000a", "0xbbbb000000000000000000000000000000000b", decimal.NewFromInt(100)))

	result, err := a.Analyze(context.Background(), agent.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Signal.Payload["holderCount"])
	assert.Equal(t, 2, result.Signal.Payload["newHolders"])
}

func TestClassifyBuysSells_RouterHeuristic(t *testing.T) {
	routers := map[string]bool{"0xrouter": true}
	transfers := []events.Transfer{
		{From: "0xrouter", To: "0xwallet1"}, // buy
		{From: "0xwallet2", To: "0xrouter"}, // sell
		{From: "0xwallet1", To: "0xwallet2"}, // neither
	}
	buys, sells := classifyBuysSells(transfers, routers)
	assert.Equal(t, 1, buys)
	assert.Equal(t, 1, sells)
}

func TestCountCircularFlows_DetectsTwoHopCycle(t *testing.T) {
	transfers := []events.Transfer{
		{From: "A", To: "B"},
		{From: "B", To: "A"},
	}
	assert.Equal(t, 1, countCircularFlows(transfers))
}

func TestCountCircularFlows_DetectsThreeHopCycle(t *testing.T) {
	transfers := []events.Transfer{
		{From: "A", To: "B"},
		{From: "B", To: "C"},
		{From: "C", To: "A"},
	}
	assert.Equal(t, 1, countCircularFlows(transfers))
}

func TestCountCircularFlows_LinearChainHasNoCycle(t *testing.T) {
	transfers := []events.Transfer{
		{From: "A", To: "B"},
		{From: "B", To: "C"},
		{From: "C", To: "D"},
	}
	assert.Equal(t, 0, countCircularFlows(transfers))
}

func TestOrganicScore_UniformSizesArePenalized(t *testing.T) {
	sizes := []float64{100, 100, 100, 100}
	score, reasons := organicScore(nil, sizes)
	assert.Less(t, score, organicBaseline)
	assert.Contains(t, reasons, "suspiciously uniform transfer sizes")
}

func TestOrganicScore_CircularFlowIsPenalizedWithoutSizeBonusOrPenalty(t *testing.T) {
	transfers := []events.Transfer{
		{From: "A", To: "B"},
		{From: "B", To: "A"},
	}
	// Coefficient of variation ~0.12: neither uniform enough to penalize
	// nor varied enough to reward, isolating the circular-flow penalty.
	sizes := []float64{50, 70, 65, 60}
	score, reasons := organicScore(transfers, sizes)
	assert.Equal(t, organicBaseline-circularPenaltyPerHit, score)
	assert.Contains(t, reasons, "1 circular flow(s) detected")
}

func TestCoefficientOfVariation_ConstantSeriesIsZero(t *testing.T) {
	assert.Equal(t, 0.0, coefficientOfVariation([]float64{50, 50, 50}))
}
