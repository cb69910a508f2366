// Package market runs the same full technical vote as trading, then adds
// two market-structure detectors the trading variant doesn't need:
// single-sample whale-sized price moves and regime transitions. Both
// surface as alerts in addition to the usual signal.
//
// Grounded on the threshold-ladder classification style of
// internal/regime/detector.go, retargeted from order-flow imbalance
// inputs to the fleet's price-history-only data model via
// internal/technical.ClassifyRegime.
package market

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/yeddevall/duckmon-agents-ai/internal/agent"
	"github.com/yeddevall/duckmon-agents-ai/internal/events"
	"github.com/yeddevall/duckmon-agents-ai/internal/technical"
)

// MinHistory mirrors the trading variant's data-sufficiency floor.
const MinHistory = 30

// WhaleMoveThreshold is the fractional single-tick price move that counts
// as a whale-sized move for this variant's alert (not to be confused
// with the whale agent's on-chain transfer scanning).
const WhaleMoveThreshold = 0.03

const (
	BuyThreshold  = 0.15
	SellThreshold = -0.15
)

// Alert is emitted alongside the signal whenever market structure itself
// is notable, independent of the trading vote.
type Alert struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Result extends agent.Result with the alert set this tick produced.
type Result struct {
	agent.Result
	Alerts []Alert
}

// Agent tracks the previously observed regime so it can detect
// transitions; the trading-style vote itself is stateless.
type Agent struct {
	mu          sync.Mutex
	lastRegime  technical.Regime
}

// New creates a Market agent with no prior regime recorded.
func New() *Agent {
	return &Agent{lastRegime: technical.RegimeUnknown}
}

// Analyze implements agent.AnalyzeFunc. The alert set produced this tick
// is stashed in the Signal payload under "alerts" since AnalyzeFunc's
// contract only carries a Signal back to the Runner — callers that want
// typed Alerts directly should call AnalyzeWithAlerts instead.
func (a *Agent) Analyze(ctx context.Context, snap agent.Snapshot) (agent.Result, error) {
	result, alerts := a.analyze(snap)
	if len(alerts) > 0 {
		payload := result.Signal.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		payload["alerts"] = alerts
		result.Signal.Payload = payload
	}
	return result, nil
}

// AnalyzeWithAlerts is the typed entry point used by tests and by any
// caller (e.g. a future hub-side in-process variant) that wants the
// alert set without unpacking it back out of the signal payload.
func (a *Agent) AnalyzeWithAlerts(ctx context.Context, snap agent.Snapshot) (Result, error) {
	result, alerts := a.analyze(snap)
	return Result{Result: result, Alerts: alerts}, nil
}

func (a *Agent) analyze(snap agent.Snapshot) (agent.Result, []Alert) {
	prices := snap.PriceHistory
	volumes := snap.VolumeHistory

	if len(prices) < MinHistory {
		return agent.Result{Signal: events.Signal{
			Type:       events.SignalHold,
			Confidence: 30,
			Reason:     "Insufficient data",
		}}, nil
	}

	var alerts []Alert
	if wm := whaleMoveAlert(prices); wm != nil {
		alerts = append(alerts, *wm)
	}
	if rc := a.regimeChangeAlert(prices); rc != nil {
		alerts = append(alerts, *rc)
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
			"rsi":      rsi,
			"macd":     macd.MACDLine,
			"trend":    direction * strength,
			"regime":   string(technical.ClassifyRegime(prices)),
			"netScore": net,
		},
	}}, alerts
}

func whaleMoveAlert(prices []float64) *Alert {
	n := len(prices)
	prev, last := prices[n-2], prices[n-1]
	if prev == 0 {
		return nil
	}
	delta := (last - prev) / prev
	if math.Abs(delta) <= WhaleMoveThreshold {
		return nil
	}
	return &Alert{
		Kind:    "whale_move",
		Message: fmt.Sprintf("price moved %.2f%% in a single tick", delta*100),
		Payload: map[string]any{"delta": delta, "from": prev, "to": last},
	}
}

func (a *Agent) regimeChangeAlert(prices []float64) *Alert {
	current := technical.ClassifyRegime(prices)

	a.mu.Lock()
	previous := a.lastRegime
	a.lastRegime = current
	a.mu.Unlock()

	if current == previous || previous == technical.RegimeUnknown {
		return nil
	}
	return &Alert{
		Kind:    "regime_change",
		Message: fmt.Sprintf("regime changed from %s to %s", previous, current),
		Payload: map[string]any{"from": string(previous), "to": string(current)},
	}
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
