package hub

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeddevall/duckmon-agents-ai/internal/events"
)

func newTestHub() *Hub {
	return New(nil, nil, nil)
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleSignal_RequiresAgentName(t *testing.T) {
	h := newTestHub()
	rec := post(t, h.Handler(), "/api/signal", events.Signal{Type: events.SignalBuy})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSignal_OverwritesAndBroadcasts(t *testing.T) {
	h := newTestHub()
	handler := h.Handler()

	rec := post(t, handler, "/api/signal", events.Signal{AgentName: "Trading", Type: events.SignalBuy, Confidence: 80})
	assert.Equal(t, http.StatusOK, rec.Code)

	h.state.mu.RLock()
	sig, ok := h.state.agentSignals["Trading"]
	ringLen := h.state.signals.Len()
	h.state.mu.RUnlock()

	assert.True(t, ok)
	assert.Equal(t, events.SignalBuy, sig.Type)
	assert.Equal(t, 1, ringLen)
	assert.Greater(t, sig.ReceivedAt, int64(0))

	// A second signal from the same agent overwrites rather than appending
	// a second map entry, while still growing the ring.
	post(t, handler, "/api/signal", events.Signal{AgentName: "Trading", Type: events.SignalSell, Confidence: 60})

	h.state.mu.RLock()
	sig2 := h.state.agentSignals["Trading"]
	ringLen2 := h.state.signals.Len()
	h.state.mu.RUnlock()

	assert.Equal(t, events.SignalSell, sig2.Type)
	assert.Equal(t, 2, ringLen2)
}

func TestHandleWhaleAlert_AppendsRing(t *testing.T) {
	h := newTestHub()
	rec := post(t, h.Handler(), "/api/whale/alert", events.WhaleAlert{TokenAddress: "0xabc", Amount: 1000, Tier: events.TierWhale})
	assert.Equal(t, http.StatusOK, rec.Code)

	h.state.mu.RLock()
	defer h.state.mu.RUnlock()
	assert.Equal(t, 1, h.state.whaleAlerts.Len())
}

func TestHandleGasUpdate_AppendsRing(t *testing.T) {
	h := newTestHub()
	rec := post(t, h.Handler(), "/api/gas/update", events.GasUpdate{GasPriceGwei: 30, Recommendation: events.GasGood})
	assert.Equal(t, http.StatusOK, rec.Code)

	h.state.mu.RLock()
	defer h.state.mu.RUnlock()
	assert.Equal(t, 1, h.state.gasUpdates.Len())
}

func TestHandleTokenLaunch_FreeFormPayload(t *testing.T) {
	h := newTestHub()
	rec := post(t, h.Handler(), "/api/token/launch", map[string]any{"tokenAddress": "0xnew", "name": "DuckCoin"})
	assert.Equal(t, http.StatusOK, rec.Code)

	h.state.mu.RLock()
	defer h.state.mu.RUnlock()
	require.Equal(t, 1, h.state.tokenLaunches.Len())
	launch := h.state.tokenLaunches.Slice()[0]
	assert.Equal(t, "DuckCoin", launch["name"])
	assert.NotZero(t, launch["receivedAt"])
}

func TestHandleMevOpportunity_FreeFormPayload(t *testing.T) {
	h := newTestHub()
	rec := post(t, h.Handler(), "/api/mev/opportunity", map[string]any{"kind": "sandwich"})
	assert.Equal(t, http.StatusOK, rec.Code)

	h.state.mu.RLock()
	defer h.state.mu.RUnlock()
	assert.Equal(t, 1, h.state.mevOpportunities.Len())
}

func TestHandleHeartbeat_RequiresAgentName(t *testing.T) {
	h := newTestHub()
	rec := post(t, h.Handler(), "/api/agent/heartbeat", events.Heartbeat{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHeartbeat_DefaultsStatusAndRecordsAlive(t *testing.T) {
	h := newTestHub()
	rec := post(t, h.Handler(), "/api/agent/heartbeat", events.Heartbeat{AgentName: "Whale", UptimeMs: 5000})
	assert.Equal(t, http.StatusOK, rec.Code)

	h.state.mu.RLock()
	rec2 := h.state.agents["Whale"]
	h.state.mu.RUnlock()

	assert.Equal(t, events.AgentRunning, rec2.Status)
	assert.True(t, rec2.IsAlive(events.NowMs()))
}

func TestHandleState_ReportsAgentsAndTotals(t *testing.T) {
	h := newTestHub()
	handler := h.Handler()
	post(t, handler, "/api/agent/heartbeat", events.Heartbeat{AgentName: "Trading"})
	post(t, handler, "/api/signal", events.Signal{AgentName: "Trading", Type: events.SignalBuy, Confidence: 80})

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["totalSignals"])
	agents, ok := body["agents"].([]any)
	require.True(t, ok)
	assert.Len(t, agents, 1)
}

func TestHandleHealth_ReportsOk(t *testing.T) {
	h := newTestHub()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["connections"])
}

func TestTokenAddressFromPayload(t *testing.T) {
	addr, ok := tokenAddressFromPayload("0x1234567890")
	assert.True(t, ok)
	assert.Equal(t, "0x1234567890", addr)

	_, ok = tokenAddressFromPayload("short")
	assert.False(t, ok)

	addr, ok = tokenAddressFromPayload(map[string]any{"tokenAddress": "0x1234567890"})
	assert.True(t, ok)
	assert.Equal(t, "0x1234567890", addr)

	_, ok = tokenAddressFromPayload(map[string]any{"other": "x"})
	assert.False(t, ok)

	_, ok = tokenAddressFromPayload(42)
	assert.False(t, ok)
}
