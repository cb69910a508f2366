// Package onchain aggregates the fleet's own Transfer-log scan into
// holder growth, router-heuristic buy/sell counts, token velocity, and
// an "organic score" that penalizes wash-trade-shaped circular flows
// and suspiciously uniform transfer sizes.
//
// Grounded on the same monotone-cursor log scan as the whale variant
// (internal/solana/ws_monitor.go's track-and-advance idiom), layered
// with the threshold-ladder scoring style of internal/regime/detector.go
// retargeted to a wash-trading heuristic instead of a market regime.
package onchain

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/yeddevall/duckmon-agents-ai/internal/agent"
	"github.com/yeddevall/duckmon-agents-ai/internal/chainclient"
	"github.com/yeddevall/duckmon-agents-ai/internal/events"
)

// Lookback mirrors the whale variant's first-run scan window.
const Lookback = 500

const (
	organicBaseline        = 70.0
	circularPenaltyPerHit  = 5.0
	uniformSizePenalty     = 15.0
	uniformSizeCVThreshold = 0.1
	variedSizeBonus        = 10.0
	variedSizeCVThreshold  = 0.3
	highUniqueRatioBonus   = 10.0
	highUniqueRatio        = 0.7
)

// Agent scans Transfer logs for one token and maintains the running
// holder set and per-tick organic score. It owns its own chain client
// reference for the same reason the whale variant does: GetLogs and
// GetBlockNumber aren't part of the generic Runner snapshot.
type Agent struct {
	client       chainclient.Client
	tokenAddress chainclient.Address
	routers      map[string]bool

	mu               sync.Mutex
	lastScannedBlock uint64
	holders          map[string]bool
}

// New creates an OnChain agent. routers is the set of known router/
// contract addresses used to classify a transfer as a buy (router ->
// non-router) or a sell (non-router -> router); an empty set means every
// transfer is classified as neither.
func New(client chainclient.Client, tokenAddress chainclient.Address, routers []chainclient.Address) *Agent {
	routerSet := make(map[string]bool, len(routers))
	for _, r := range routers {
		routerSet[string(r)] = true
	}
	return &Agent{
		client:       client,
		tokenAddress: tokenAddress,
		routers:      routerSet,
		holders:      make(map[string]bool),
	}
}

// Analyze implements agent.AnalyzeFunc.
func (a *Agent) Analyze(ctx context.Context, snap agent.Snapshot) (agent.Result, error) {
	currentBlock, err := a.client.GetBlockNumber(ctx)
	if err != nil {
		return agent.Result{}, fmt.Errorf("onchain: get block number: %w", err)
	}

	a.mu.Lock()
	if a.lastScannedBlock == 0 && currentBlock > Lookback {
		a.lastScannedBlock = currentBlock - Lookback
	}
	fromBlock := a.lastScannedBlock + 1
	a.mu.Unlock()

	if fromBlock > currentBlock {
		return agent.Result{Signal: events.Signal{
			Type:       events.SignalHold,
			Confidence: 30,
			Reason:     "No new blocks since last scan",
		}}, nil
	}

	logs, err := a.client.GetLogs(ctx, a.tokenAddress, chainclient.TransferTopic(), fromBlock, currentBlock)
	if err != nil {
		return agent.Result{}, fmt.Errorf("onchain: get logs: %w", err)
	}

	var transfers []events.Transfer
	var sizes []float64
	for _, l := range logs {
		t, err := chainclient.DecodeTransferLog(l)
		if err != nil {
			continue
		}
		transfers = append(transfers, t)
		if v, err := chainclient.BaseUnitsToDecimal(t.Value); err == nil {
			sizes = append(sizes, v.InexactFloat64())
		}
	}

	a.mu.Lock()
	newHolders := 0
	for _, t := range transfers {
		if !a.holders[t.From] {
			a.holders[t.From] = true
			newHolders++
		}
		if !a.holders[t.To] {
			a.holders[t.To] = true
			newHolders++
		}
	}
	holderCount := len(a.holders)
	a.lastScannedBlock = currentBlock
	a.mu.Unlock()

	buys, sells := classifyBuysSells(transfers, a.routers)
	velocity := 0.0
	if holderCount > 0 {
		velocity = float64(len(transfers)) / float64(holderCount)
	}

	organic, reasons := organicScore(transfers, sizes)

	signalType := events.SignalHold
	switch {
	case buys > sells && organic >= 50:
		signalType = events.SignalBuy
	case sells > buys && organic < 50:
		signalType = events.SignalSell
	}
	confidence := clamp(30+organic/2, 25, 90)

	return agent.Result{Signal: events.Signal{
		Type:       signalType,
		Confidence: confidence,
		Reason:     fmt.Sprintf("organic score %.0f over %d transfers in blocks %d-%d", organic, len(transfers), fromBlock, currentBlock),
		Payload: map[string]any{
			"holderCount": holderCount,
			"newHolders":  newHolders,
			"buys":        buys,
			"sells":       sells,
			"velocity":    velocity,
			"organicScore": organic,
			"organicFactors": reasons,
		},
	}}, nil
}

// classifyBuysSells applies the router-heuristic: a transfer from a
// known router/contract to a non-router address is a buy; the reverse
// is a sell. Router-to-router and wallet-to-wallet transfers count as
// neither.
func classifyBuysSells(transfers []events.Transfer, routers map[string]bool) (buys, sells int) {
	for _, t := range transfers {
		fromRouter := routers[t.From]
		toRouter := routers[t.To]
		switch {
		case fromRouter && !toRouter:
			buys++
		case !fromRouter && toRouter:
			sells++
		}
	}
	return buys, sells
}

// organicScore starts at a neutral baseline and adjusts for wash-trade
// signatures: circular A->B->A and A->B->C->A flows subtract, a low
// coefficient of variation in transfer sizes (everything suspiciously
// the same size) subtracts, and varied sizes plus a high unique-address
// ratio add back. The pairwise/triple scan below is O(n^2)/O(n^3) in the
// transfer count, which is fine for a tick-sized log window but would
// need a smarter index for scanning full chain history.
func organicScore(transfers []events.Transfer, sizes []float64) (float64, []string) {
	score := organicBaseline
	var reasons []string

	circular := countCircularFlows(transfers)
	if circular > 0 {
		score -= math.Min(float64(circular)*circularPenaltyPerHit, organicBaseline)
		reasons = append(reasons, fmt.Sprintf("%d circular flow(s) detected", circular))
	}

	if len(sizes) >= 3 {
		cv := coefficientOfVariation(sizes)
		switch {
		case cv < uniformSizeCVThreshold:
			score -= uniformSizePenalty
			reasons = append(reasons, "suspiciously uniform transfer sizes")
		case cv >= variedSizeCVThreshold:
			score += variedSizeBonus
			reasons = append(reasons, "varied transfer sizes")
		}
	}

	if ratio := uniqueAddressRatio(transfers); ratio >= highUniqueRatio {
		score += highUniqueRatioBonus
		reasons = append(reasons, "high unique-address ratio")
	}

	return clamp(score, 0, 100), reasons
}

func countCircularFlows(transfers []events.Transfer) int {
	count := 0
	for i, t1 := range transfers {
		for j := i + 1; j < len(transfers); j++ {
			t2 := transfers[j]
			if t2.From == t1.To && t2.To == t1.From {
				count++ // A -> B -> A
			}
			if t2.From == t1.To {
				for k := j + 1; k < len(transfers); k++ {
					t3 := transfers[k]
					if t3.From == t2.To && t3.To == t1.From {
						count++ // A -> B -> C -> A
					}
				}
			}
		}
	}
	return count
}

func coefficientOfVariation(sizes []float64) float64 {
	mean := average(sizes)
	if mean == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range sizes {
		d := s - mean
		sumSq += d * d
	}
	variance := sumSq / float64(len(sizes))
	return math.Sqrt(variance) / mean
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func uniqueAddressRatio(transfers []events.Transfer) float64 {
	if len(transfers) == 0 {
		return 0
	}
	unique := make(map[string]bool)
	for _, t := range transfers {
		unique[t.From] = true
		unique[t.To] = true
	}
	return float64(len(unique)) / float64(len(transfers)*2)
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
