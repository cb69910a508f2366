// Package liquidity scores a token's bonding-curve health: how close it
// is to graduating off the curve, and how much its current liquidity
// profile looks like a rug in progress.
//
// Grounded on the weighted-factor risk scoring shape of the teacher's
// internal/risk/engine.go (RiskScore accumulated from independently
// triggered factors), retargeted from position-sizing risk to a
// bonding-curve rug-risk score.
package liquidity

import (
	"context"
	"fmt"

	"github.com/yeddevall/duckmon-agents-ai/internal/agent"
	"github.com/yeddevall/duckmon-agents-ai/internal/events"
	"github.com/yeddevall/duckmon-agents-ai/internal/priceservice"
)

// GraduationThreshold is the bonding-curve progress at which a token is
// close enough to graduating that it's worth a dedicated alert.
const GraduationThreshold = 0.85

// Rug-risk factor weights; each is awarded in full when its trigger
// condition holds, never partially, so the final score is always a sum
// of whole weights and easy to explain in a signal's reason string.
const (
	weightLowLiquidity    = 25.0
	weightNotGraduated    = 15.0
	weightHighSellBuy     = 25.0
	weightSharpPriceDrop  = 20.0
	weightVeryLowVolume   = 15.0
)

const (
	lowLiquidityUsdThreshold = 5_000.0
	highSellBuyRatio         = 2.0
	sharpDropH1Pct           = -10.0
	sharpDropM5Pct           = -5.0
	veryLowVolumeUsd         = 1_000.0

	highRiskScore = 70.0
)

// Alert mirrors the market variant's typed alert shape for the one
// notable event this variant raises outside its signal.
type Alert struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Agent computes bonding-curve progress via the shared price service and
// scores rug risk from the latest price sample.
type Agent struct {
	priceSvc *priceservice.Service
}

// New creates a Liquidity agent over the fleet's shared price service.
func New(priceSvc *priceservice.Service) *Agent {
	return &Agent{priceSvc: priceSvc}
}

// Analyze implements agent.AnalyzeFunc.
func (a *Agent) Analyze(ctx context.Context, snap agent.Snapshot) (agent.Result, error) {
	progress := a.priceSvc.BondingProgress(snap.TokenAddress)
	graduated := progress >= 1.0

	score, reasons := rugRiskScore(snap.Price, progress)

	var alertPayload map[string]any
	if progress >= GraduationThreshold && !graduated {
		alertPayload = map[string]any{"alerts": []Alert{{
			Kind:    "graduation_imminent",
			Message: fmt.Sprintf("bonding progress %.1f%%, approaching graduation", progress*100),
			Payload: map[string]any{"progress": progress},
		}}}
	}

	signalType := events.SignalHold
	switch {
	case score >= highRiskScore:
		signalType = events.SignalSell
	case progress >= GraduationThreshold && !graduated:
		signalType = events.SignalBuy
	}

	confidence := clamp(40+score/2, 25, 95)
	payload := map[string]any{
		"bondingProgress": progress,
		"rugRiskScore":    score,
		"graduated":       graduated,
		"riskFactors":     reasons,
	}
	for k, v := range alertPayload {
		payload[k] = v
	}

	return agent.Result{Signal: events.Signal{
		Type:       signalType,
		Confidence: confidence,
		Reason:     fmt.Sprintf("rug-risk score %.0f, bonding progress %.1f%%", score, progress*100),
		Payload:    payload,
	}}, nil
}

// rugRiskScore sums the weight of every triggered risk factor and
// returns the human-readable list of which ones fired.
func rugRiskScore(price events.PriceSample, progress float64) (float64, []string) {
	score := 0.0
	var reasons []string

	if price.LiquidityUsd > 0 && price.LiquidityUsd < lowLiquidityUsdThreshold {
		score += weightLowLiquidity
		reasons = append(reasons, "low liquidity")
	}
	if progress < 1.0 {
		score += weightNotGraduated
		reasons = append(reasons, "not graduated")
	}
	if price.Buys24h > 0 && float64(price.Sells24h)/float64(price.Buys24h) > highSellBuyRatio {
		score += weightHighSellBuy
		reasons = append(reasons, "high sell/buy ratio")
	}
	if price.PriceChange.H1 <= sharpDropH1Pct || price.PriceChange.M5 <= sharpDropM5Pct {
		score += weightSharpPriceDrop
		reasons = append(reasons, "sharp price drop")
	}
	if price.Volume24h > 0 && price.Volume24h < veryLowVolumeUsd {
		score += weightVeryLowVolume
		reasons = append(reasons, "very low volume")
	}

	return clamp(score, 0, 100), reasons
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
