// Package prediction runs a four-submodel ensemble forecast per horizon,
// tracks pending predictions, and verifies them exactly once their
// target time has passed.
//
// Grounded on the phase/velocity state-tracking idiom of the teacher's
// internal/narrative/engine.go (an Engine holding mutable per-symbol
// state updated every RecordToken call), retargeted from narrative phase
// detection to a pending-prediction ledger with verify-then-forecast
// ticks.
package prediction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/yeddevall/duckmon-agents-ai/internal/agent"
	"github.com/yeddevall/duckmon-agents-ai/internal/chainclient"
	"github.com/yeddevall/duckmon-agents-ai/internal/events"
	"github.com/yeddevall/duckmon-agents-ai/internal/technical"
)

// Horizons is the fixed set of forecast windows, in minutes.
var Horizons = []int{5, 15, 60, 240}

const (
	directionBandUp   = 0.15
	directionBandDown = -0.15

	upCorrectReturn       = 0.005
	downCorrectReturn     = -0.005
	sidewaysCorrectBand   = 0.01

	samplesPerMinute = 1.0 / 5.0 // price history is sampled roughly every 5 minutes
)

// subModel is one member of the ensemble: direction in [-1,1], magnitude
// as a fractional price move, and a confidence in [0,100].
type subModel struct {
	direction  float64
	magnitude  float64
	confidence float64
}

// Agent holds the pending-prediction ledger across ticks and the registry
// it posts forecasts and verifications through. Unlike the stateless
// variants, Prediction must remember what it forecast until each
// prediction's target time arrives.
type Agent struct {
	agentName string
	registry  *chainclient.Registry

	mu           sync.Mutex
	pending      []events.PendingPrediction
	nextID       uint64
	totalCount   int
	correctCount int
}

// New creates a Prediction agent with an empty ledger. registry may be
// nil, in which case predictions are still tracked and verified locally
// but never posted on-chain.
func New(agentName string, registry *chainclient.Registry) *Agent {
	return &Agent{agentName: agentName, registry: registry}
}

// Stats exposes the running accuracy for heartbeat reporting.
func (a *Agent) Stats() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	accuracy := 0.0
	if a.totalCount > 0 {
		accuracy = float64(a.correctCount) / float64(a.totalCount) * 100
	}
	return map[string]any{
		"pending":    len(a.pending),
		"total":      a.totalCount,
		"correct":    a.correctCount,
		"accuracyPct": accuracy,
	}
}

// Analyze implements agent.AnalyzeFunc: verify any matured predictions,
// then forecast a new one per horizon.
func (a *Agent) Analyze(ctx context.Context, snap agent.Snapshot) (agent.Result, error) {
	a.verify(ctx, snap.Now, snap.Price.Price)

	prices := snap.PriceHistory
	if len(prices) < 10 {
		return agent.Result{Signal: events.Signal{
			Type:       events.SignalHold,
			Confidence: 30,
			Reason:     "Insufficient data",
		}}, nil
	}

	price := prices[len(prices)-1]
	var sumDirection, sumConfidence float64
	breakdown := make(map[string]any, len(Horizons))

	for _, h := range Horizons {
		direction, confidence := ensemble(prices, h)
		sumDirection += direction
		sumConfidence += confidence

		targetTime := snap.Now.Add(time.Duration(h) * time.Minute)
		label := directionLabel(direction)
		p := a.enqueue(events.PendingPrediction{
			Direction:      label,
			Confidence:     confidence,
			ReferencePrice: price,
			TargetTimeMs:   targetTime.UnixMilli(),
			HorizonMinutes: h,
		})

		if a.registry != nil {
			if _, err := a.registry.PostPrediction(ctx, a.agentName, string(label), confidence, decimal.NewFromFloat(price), targetTime); err != nil {
				log.Warn().Err(err).Str("agent", a.agentName).Int("horizon", h).Msg("on-chain prediction post failed")
			}
		}
		breakdown[fmt.Sprintf("h%d", h)] = map[string]any{"direction": direction, "confidence": confidence, "predictionId": p.ID}
	}

	meanDirection := sumDirection / float64(len(Horizons))
	meanConfidence := sumConfidence / float64(len(Horizons))
	label := directionLabel(meanDirection)

	signalType := events.SignalHold
	switch label {
	case events.DirectionUp:
		signalType = events.SignalBuy
	case events.DirectionDown:
		signalType = events.SignalSell
	}

	return agent.Result{Signal: events.Signal{
		Type:       signalType,
		Confidence: meanConfidence,
		Reason:     fmt.Sprintf("ensemble mean direction %.3f across %d horizons", meanDirection, len(Horizons)),
		Payload:    breakdown,
	}}, nil
}

func (a *Agent) enqueue(p events.PendingPrediction) events.PendingPrediction {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	p.ID = a.nextID
	a.pending = append(a.pending, p)
	return p
}

// verify settles every pending prediction whose target time has passed,
// exactly once, then removes it from the ledger.
func (a *Agent) verify(ctx context.Context, now time.Time, realizedPrice float64) {
	a.mu.Lock()
	nowMs := now.UnixMilli()
	remaining := a.pending[:0]
	var matured []events.PendingPrediction
	for _, p := range a.pending {
		if p.Verified || nowMs < p.TargetTimeMs || p.ReferencePrice == 0 {
			remaining = append(remaining, p)
			continue
		}
		matured = append(matured, p)
	}
	a.pending = remaining
	a.mu.Unlock()

	for _, p := range matured {
		realizedReturn := (realizedPrice - p.ReferencePrice) / p.ReferencePrice
		correct := isCorrect(p.Direction, realizedReturn)

		a.mu.Lock()
		a.totalCount++
		if correct {
			a.correctCount++
		}
		a.mu.Unlock()

		if a.registry != nil {
			if _, err := a.registry.VerifyPrediction(ctx, a.agentName, p.ID, decimal.NewFromFloat(realizedPrice), correct); err != nil {
				log.Warn().Err(err).Str("agent", a.agentName).Uint64("predictionId", p.ID).Msg("on-chain prediction verification failed")
			}
		}
	}
}

func isCorrect(direction events.PredictionDirection, realizedReturn float64) bool {
	switch direction {
	case events.DirectionUp:
		return realizedReturn >= upCorrectReturn
	case events.DirectionDown:
		return realizedReturn <= downCorrectReturn
	default:
		return realizedReturn > -sidewaysCorrectBand && realizedReturn < sidewaysCorrectBand
	}
}

func directionLabel(direction float64) events.PredictionDirection {
	switch {
	case direction > directionBandUp:
		return events.DirectionUp
	case direction < directionBandDown:
		return events.DirectionDown
	default:
		return events.DirectionSideways
	}
}

// ensemble runs the four sub-models for one horizon and returns the
// weighted-mean direction and confidence.
func ensemble(prices []float64, horizonMinutes int) (direction, confidence float64) {
	models := []subModel{
		linearRegressionModel(prices, horizonMinutes),
		movingAverageCrossoverModel(prices),
		meanReversionModel(prices),
		momentumCascadeModel(prices),
	}
	var sumDir, sumConf float64
	for _, m := range models {
		sumDir += m.direction
		sumConf += m.confidence
	}
	return sumDir / float64(len(models)), sumConf / float64(len(models))
}

func linearRegressionModel(prices []float64, horizonMinutes int) subModel {
	n := len(prices)
	window := 30
	if window > n {
		window = n
	}
	samples := prices[n-window:]

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range samples {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	count := float64(len(samples))
	denom := count*sumXX - sumX*sumX
	if denom == 0 {
		return subModel{}
	}
	slope := (count*sumXY - sumX*sumY) / denom

	price := prices[n-1]
	horizonSamples := float64(horizonMinutes) * samplesPerMinute
	projected := slope * horizonSamples
	magnitude := 0.0
	if price != 0 {
		magnitude = projected / price
	}
	return subModel{
		direction:  clampDir(magnitude * 20),
		magnitude:  magnitude,
		confidence: clampConf(50 + absf(magnitude)*500),
	}
}

func movingAverageCrossoverModel(prices []float64) subModel {
	fast := technical.SMA(prices, 5)
	slow := technical.SMA(prices, 20)
	if slow == 0 {
		return subModel{}
	}
	spread := (fast - slow) / slow
	return subModel{
		direction:  clampDir(spread * 20),
		magnitude:  spread,
		confidence: clampConf(50 + absf(spread)*400),
	}
}

func meanReversionModel(prices []float64) subModel {
	sma := technical.SMA(prices, 20)
	price := prices[len(prices)-1]
	if sma == 0 {
		return subModel{}
	}
	gap := (sma - price) / sma
	return subModel{
		direction:  clampDir(gap * 10),
		magnitude:  gap,
		confidence: clampConf(50 + absf(gap)*300),
	}
}

func momentumCascadeModel(prices []float64) subModel {
	m := technical.Momentum(prices, 10)
	return subModel{
		direction:  clampDir(m * 10),
		magnitude:  m,
		confidence: clampConf(50 + absf(m)*400),
	}
}

func clampDir(x float64) float64 {
	if x < -1 {
		return -1
	}
	if x > 1 {
		return 1
	}
	return x
}

func clampConf(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 95 {
		return 95
	}
	return x
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
