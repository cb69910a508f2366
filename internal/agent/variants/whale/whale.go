// Package whale scans ERC-20 Transfer event logs for large transfers,
// tallies per-address flow to classify wallet behavior, and emits
// whale alerts tiered by fraction of total supply moved.
//
// Grounded on the monotone-cursor log-scanning idiom of the teacher's
// internal/solana/ws_monitor.go (track the last processed slot, scan
// forward from it each pass), retargeted from Solana slot polling to
// EVM block-range log queries, and on internal/risk/engine.go's
// running-tally-with-classification shape for the per-wallet profiles.
package whale

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/yeddevall/duckmon-agents-ai/internal/agent"
	"github.com/yeddevall/duckmon-agents-ai/internal/chainclient"
	"github.com/yeddevall/duckmon-agents-ai/internal/events"
	"github.com/yeddevall/duckmon-agents-ai/internal/hubclient"
)

// Lookback is how far behind the current block the agent starts
// scanning on its first tick, when it has no prior cursor.
const Lookback = 500

// MinTransferTokens is the minimum transfer size, in whole tokens, that
// counts as whale activity.
const MinTransferTokens = 1_000_000

const (
	megaFraction  = 0.005
	largeFraction = 0.001
)

const (
	accumulatorRatio = 1.5
	distributorRatio = 1.5
	traderMinTxCount = 10
	newMaxTxCount    = 3
)

// Agent scans Transfer logs for one ERC-20 token and maintains the
// fleet's running whale tallies. It owns its own chain client and hub
// client references since its on-chain read (GetLogs) and its
// category-specific hub post (PostWhaleAlert) both fall outside the
// generic Runner's fetch-price/post-signal contract.
type Agent struct {
	client       chainclient.Client
	tokenAddress chainclient.Address
	hub          *hubclient.Client
	totalSupply  decimal.Decimal

	mu                sync.Mutex
	lastScannedBlock   uint64
	tallies           map[string]*events.WhaleTally
}

// New creates a Whale agent. totalSupply is the token's total supply in
// whole tokens, supplied by the caller (cmd/agent passes a fixed
// 1,000,000,000); it is used only to tier alerts by fraction of supply.
func New(client chainclient.Client, tokenAddress chainclient.Address, totalSupply decimal.Decimal, hub *hubclient.Client) *Agent {
	return &Agent{
		client:       client,
		tokenAddress: tokenAddress,
		hub:          hub,
		totalSupply:  totalSupply,
		tallies:      make(map[string]*events.WhaleTally),
	}
}

// Analyze implements agent.AnalyzeFunc.
func (a *Agent) Analyze(ctx context.Context, snap agent.Snapshot) (agent.Result, error) {
	currentBlock, err := a.client.GetBlockNumber(ctx)
	if err != nil {
		return agent.Result{}, fmt.Errorf("whale: get block number: %w", err)
	}

	a.mu.Lock()
	if a.lastScannedBlock == 0 {
		if currentBlock > Lookback {
			a.lastScannedBlock = currentBlock - Lookback
		}
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
		return agent.Result{}, fmt.Errorf("whale: get logs: %w", err)
	}

	gasPriceGwei, err := a.client.GetGasPriceGwei(ctx)
	if err != nil {
		gasPriceGwei = decimal.Zero
	}

	var alerts []events.WhaleAlert
	for _, l := range logs {
		transfer, err := chainclient.DecodeTransferLog(l)
		if err != nil {
			continue
		}
		value, err := chainclient.BaseUnitsToDecimal(transfer.Value)
		if err != nil {
			continue
		}
		if value.LessThan(decimal.NewFromInt(MinTransferTokens)) {
			continue
		}

		a.mu.Lock()
		fromTally := a.recordFlow(transfer.From, value, true)
		toTally := a.recordFlow(transfer.To, value, false)
		a.mu.Unlock()

		alert := events.WhaleAlert{
			TokenAddress: string(a.tokenAddress),
			From:         transfer.From,
			To:           transfer.To,
			Amount:       value.InexactFloat64(),
			Tier:         tierFor(value, a.totalSupply),
			Direction:    directionFor(fromTally, toTally),
			ReceivedAt:   events.NowMs(),
		}
		alerts = append(alerts, alert)

		if a.hub != nil {
			if err := a.hub.PostWhaleAlert(ctx, alert); err != nil {
				continue
			}
		}
	}

	a.mu.Lock()
	a.lastScannedBlock = currentBlock
	a.mu.Unlock()

	if len(alerts) == 0 {
		return agent.Result{Signal: events.Signal{
			Type:       events.SignalHold,
			Confidence: 30,
			Reason:     fmt.Sprintf("no whale transfers in blocks %d-%d", fromBlock, currentBlock),
			Payload:    map[string]any{"gasPriceGwei": gasPriceGwei.InexactFloat64()},
		}}, nil
	}

	signalType, confidence := summarize(alerts)
	return agent.Result{Signal: events.Signal{
		Type:       signalType,
		Confidence: confidence,
		Reason:     fmt.Sprintf("%d whale transfer(s) detected in blocks %d-%d", len(alerts), fromBlock, currentBlock),
		Payload: map[string]any{
			"alerts":       alerts,
			"gasPriceGwei": gasPriceGwei.InexactFloat64(),
		},
	}}, nil
}

// recordFlow updates the tally for addr and returns it. Must be called
// with a.mu held.
func (a *Agent) recordFlow(addr string, value decimal.Decimal, outgoing bool) *events.WhaleTally {
	t, ok := a.tallies[addr]
	if !ok {
		t = &events.WhaleTally{Address: addr, FirstSeen: events.NowMs()}
		a.tallies[addr] = t
	}
	amount := value.InexactFloat64()
	if outgoing {
		t.TotalOut += amount
	} else {
		t.TotalIn += amount
	}
	t.NetFlow = t.TotalIn - t.TotalOut
	t.TxCount++
	t.LastSeen = events.NowMs()
	t.Profile = classify(t)
	return t
}

func classify(t *events.WhaleTally) events.WhaleProfile {
	if t.TxCount <= newMaxTxCount {
		return events.ProfileNew
	}
	switch {
	case t.TotalIn > t.TotalOut*accumulatorRatio:
		return events.ProfileAccumulator
	case t.TotalOut > t.TotalIn*distributorRatio:
		return events.ProfileDistributor
	case t.TxCount > traderMinTxCount:
		return events.ProfileTrader
	default:
		return events.ProfileMixed
	}
}

func tierFor(value, totalSupply decimal.Decimal) events.WhaleAlertTier {
	if totalSupply.IsZero() {
		return events.TierWhale
	}
	fraction := value.Div(totalSupply).InexactFloat64()
	switch {
	case fraction >= megaFraction:
		return events.TierMega
	case fraction >= largeFraction:
		return events.TierLarge
	default:
		return events.TierWhale
	}
}

// directionFor infers market-moving direction from the counterparties'
// historical profiles: a recipient that's been accumulating reads as
// bullish, a sender that's been distributing reads as bearish; anything
// else (fresh wallets, exchange-to-exchange transfers) is neutral.
func directionFor(fromTally, toTally *events.WhaleTally) events.SignalType {
	switch {
	case toTally.Profile == events.ProfileAccumulator:
		return events.SignalBuy
	case fromTally.Profile == events.ProfileDistributor:
		return events.SignalSell
	default:
		return events.SignalHold
	}
}

func summarize(alerts []events.WhaleAlert) (events.SignalType, float64) {
	var buy, sell int
	highestTierWeight := 0.0
	for _, a := range alerts {
		switch a.Direction {
		case events.SignalBuy:
			buy++
		case events.SignalSell:
			sell++
		}
		if w := tierWeight(a.Tier); w > highestTierWeight {
			highestTierWeight = w
		}
	}
	signalType := events.SignalHold
	switch {
	case buy > sell:
		signalType = events.SignalBuy
	case sell > buy:
		signalType = events.SignalSell
	}
	confidence := clamp(40+highestTierWeight*50, 30, 90)
	return signalType, confidence
}

func tierWeight(tier events.WhaleAlertTier) float64 {
	switch tier {
	case events.TierMega:
		return 1.0
	case events.TierLarge:
		return 0.6
	default:
		return 0.3
	}
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
