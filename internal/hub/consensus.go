package hub

import (
	"math"
	"sort"
	"time"

	"github.com/yeddevall/duckmon-agents-ai/internal/events"
)

// AgentWeights are the fleet's per-agent consensus weights, summing to
// 1.00 per spec §4.7.1. Agents absent from this table (the Gas agent is
// the one such agent in the current fleet) contribute zero weight rather
// than panicking.
var AgentWeights = map[string]float64{
	"Trading":    0.30,
	"Market":     0.20,
	"Prediction": 0.15,
	"Liquidity":  0.12,
	"Sentiment":  0.10,
	"On-chain":   0.08,
	"Whale":      0.05,
}

// AgentContribution is one agent's weighted share of a ConsensusResult,
// included for the hub's per-agent breakdown.
type AgentContribution struct {
	AgentName  string            `json:"agentName"`
	Weight     float64           `json:"weight"`
	Signal     events.SignalType `json:"signal"`
	Confidence float64           `json:"confidence"`
	Score      float64           `json:"score"`
	AgeSeconds float64           `json:"ageSeconds"`
	Fresh      bool              `json:"fresh"`
}

// ConsensusResult is the hub's weighted aggregation over the fleet's
// latest fresh signals, per spec §4.7.1.
type ConsensusResult struct {
	Label        events.SignalType    `json:"label"`
	Normalized   float64              `json:"normalized"` // [-1,1]
	Strength     float64              `json:"strength"`   // [0,95]
	AgreementPct float64              `json:"agreementPct"`
	Breakdown    []AgentContribution  `json:"breakdown"`
}

func signScore(t events.SignalType, confidence float64) float64 {
	switch t {
	case events.SignalBuy:
		return confidence / 100
	case events.SignalSell:
		return -confidence / 100
	default:
		return 0
	}
}

// ComputeConsensus implements spec §4.7.1: for each agent whose latest
// signal is fresh (age <= SignalExpiry), accumulate
// score*weight/totalWeight. Label thresholds at +-0.15; strength is the
// rounded, 95-capped absolute normalized score; agreement is the
// fraction of *fresh* contributors whose signal type equals the mode.
func ComputeConsensus(signals map[string]events.Signal, now time.Time) ConsensusResult {
	var weightedSum, totalWeight float64
	breakdown := make([]AgentContribution, 0, len(signals))
	modeCounts := map[events.SignalType]int{}
	freshCount := 0

	// Deterministic iteration order for the breakdown slice.
	names := make([]string, 0, len(signals))
	for name := range signals {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sig := signals[name]
		weight := AgentWeights[name]
		ageSeconds := now.Sub(time.UnixMilli(sig.ReceivedAt)).Seconds()
		fresh := ageSeconds <= SignalExpiry.Seconds() && sig.ReceivedAt > 0

		contribution := AgentContribution{
			AgentName:  name,
			Weight:     weight,
			Signal:     sig.Type,
			Confidence: sig.Confidence,
			AgeSeconds: ageSeconds,
			Fresh:      fresh,
		}

		if fresh && weight > 0 {
			score := signScore(sig.Type, sig.Confidence)
			contribution.Score = score
			weightedSum += score * weight
			totalWeight += weight
			modeCounts[sig.Type]++
			freshCount++
		}

		breakdown = append(breakdown, contribution)
	}

	var normalized float64
	if totalWeight > 0 {
		normalized = weightedSum / totalWeight
	}

	label := events.SignalHold
	switch {
	case normalized > 0.15:
		label = events.SignalBuy
	case normalized < -0.15:
		label = events.SignalSell
	}

	strength := math.Round(math.Abs(normalized) * 100)
	if strength > 95 {
		strength = 95
	}

	var agreementPct float64
	if freshCount > 0 {
		modeType, modeN := events.SignalHold, 0
		for t, n := range modeCounts {
			if n > modeN {
				modeType, modeN = t, n
			}
		}
		_ = modeType
		agreementPct = float64(modeN) / float64(freshCount) * 100
	}

	return ConsensusResult{
		Label:        label,
		Normalized:   normalized,
		Strength:     strength,
		AgreementPct: agreementPct,
		Breakdown:    breakdown,
	}
}
