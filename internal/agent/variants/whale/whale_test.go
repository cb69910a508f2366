package whale

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeddevall/duckmon-agents-ai/internal/agent"
	"github.com/yeddevall/duckmon-agents-ai/internal/chainclient"
	"github.com/yeddevall/duckmon-agents-ai/internal/events"
	"github.com/yeddevall/duckmon-agents-ai/internal/hubclient"
)

func transferLog(blockNumber uint64, from, to chainclient.Address, value decimal.Decimal) chainclient.LogEntry {
	valueWord := chainclient.DecimalToBaseUnits(value)
	bigVal, _ := decimal.NewFromString(valueWord)
	hexVal := bigVal.BigInt().Text(16)
	for len(hexVal) < 64 {
		hexVal = "0" + hexVal
	}
	padAddr := func(a chainclient.Address) string {
		clean := string(a)[2:]
		for len(clean) < 64 {
			clean = "0" + clean
		}
		return "0x" + clean
	}
	return chainclient.LogEntry{
		Address:     "0xtoken",
		Topics:      []string{"0x" + "00", padAddr(from), padAddr(to)},
		Data:        "0x" + hexVal,
		BlockNumber: blockNumber,
		TxHash:      "0xtx1",
	}
}

func TestAnalyze_FirstRunUsesLookbackWindow(t *testing.T) {
	stub := chainclient.NewStub()
	stub.SetBlockNumber(1000)
	a := New(stub, "0xtoken", decimal.NewFromInt(1_000_000_000), nil)

	_, err := a.Analyze(context.Background(), agent.Snapshot{})
	require.NoError(t, err)

	a.mu.Lock()
	last := a.lastScannedBlock
	a.mu.Unlock()
	assert.Equal(t, uint64(1000), last)
}

func TestAnalyze_DetectsLargeTransferAndClassifiesTier(t *testing.T) {
	stub := chainclient.NewStub()
	stub.SetBlockNumber(100)

	totalSupply := decimal.NewFromInt(100_000_000) // 1% = 1,000,000 tokens
	a := New(stub, "0xtoken", totalSupply, nil)

	// Prime the cursor with an empty first pass.
	_, err := a.Analyze(context.Background(), agent.Snapshot{})
	require.NoError(t, err)

	stub.SetBlockNumber(101)
	stub.AddLog(transferLog(101, "0xfrom00000000000000000000000000000000001", "0xto000000000000000000000000000000000002", decimal.NewFromInt(2_000_000)))

	result, err := a.Analyze(context.Background(), agent.Snapshot{})
	require.NoError(t, err)

	alerts, ok := result.Signal.Payload["alerts"].([]events.WhaleAlert)
	require.True(t, ok)
	require.Len(t, alerts, 1)
	assert.Equal(t, events.TierMega, alerts[0].Tier) // 2M/100M = 2% >= 0.5%
}

func TestAnalyze_TransferBelowThresholdIsIgnored(t *testing.T) {
	stub := chainclient.NewStub()
	stub.SetBlockNumber(100)
	a := New(stub, "0xtoken", decimal.NewFromInt(100_000_000), nil)

	_, err := a.Analyze(context.Background(), agent.Snapshot{})
	require.NoError(t, err)

	stub.SetBlockNumber(101)
	stub.AddLog(transferLog(101, "0xfrom00000000000000000000000000000000001", "0xto000000000000000000000000000000000002", decimal.NewFromInt(500)))

	result, err := a.Analyze(context.Background(), agent.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, events.SignalHold, result.Signal.Type)
	_, hasAlerts := result.Signal.Payload["alerts"]
	assert.False(t, hasAlerts)
}

func TestAnalyze_PostsWhaleAlertToHub(t *testing.T) {
	var alertCount atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/whale/alert" {
			alertCount.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	stub := chainclient.NewStub()
	stub.SetBlockNumber(100)
	hub := hubclient.New(server.URL)
	a := New(stub, "0xtoken", decimal.NewFromInt(100_000_000), hub)

	_, err := a.Analyze(context.Background(), agent.Snapshot{})
	require.NoError(t, err)

	stub.SetBlockNumber(101)
	stub.AddLog(transferLog(101, "0xfrom00000000000000000000000000000000001", "0xto000000000000000000000000000000000002", decimal.NewFromInt(2_000_000)))

	_, err = a.Analyze(context.Background(), agent.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), alertCount.Load())
}

func TestClassify_NewWalletBeforeThreeTransactions(t *testing.T) {
	tally := &events.WhaleTally{TxCount: 1}
	assert.Equal(t, events.ProfileNew, classify(tally))
}

func TestTierFor_Boundaries(t *testing.T) {
	totalSupply := decimal.NewFromInt(1000)
	assert.Equal(t, events.TierMega, tierFor(decimal.NewFromInt(5), totalSupply))  // 0.5%
	assert.Equal(t, events.TierLarge, tierFor(decimal.NewFromInt(1), totalSupply)) // 0.1%
	assert.Equal(t, events.TierWhale, tierFor(decimal.NewFromInt(1).Div(decimal.NewFromInt(1000)), totalSupply))
}
