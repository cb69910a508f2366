package hubclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeddevall/duckmon-agents-ai/internal/events"
)

func TestClient_PostSignal(t *testing.T) {
	var received events.Signal
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/signal", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(server.URL)
	err := client.PostSignal(context.Background(), events.Signal{
		AgentName: "trading-1",
		Type:      events.SignalBuy,
		Confidence: 80,
	})
	require.NoError(t, err)
	assert.Equal(t, "trading-1", received.AgentName)
	assert.Equal(t, events.SignalBuy, received.Type)
}

func TestClient_PostSignalReturnsErrorOnNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL)
	err := client.PostSignal(context.Background(), events.Signal{AgentName: "trading-1"})
	assert.Error(t, err)
}

func TestClient_StartHeartbeatPostsRepeatedly(t *testing.T) {
	var count atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(server.URL)
	handle := client.StartHeartbeat(context.Background(), "trading-1", 10*time.Millisecond, func() map[string]any {
		return map[string]any{"ticks": 1}
	})
	defer handle.Stop()

	time.Sleep(50 * time.Millisecond)
	handle.Stop()

	assert.GreaterOrEqual(t, count.Load(), int64(2))
}
