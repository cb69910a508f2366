package hub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/yeddevall/duckmon-agents-ai/internal/events"
	"github.com/yeddevall/duckmon-agents-ai/internal/ringbuf"
	"github.com/yeddevall/duckmon-agents-ai/internal/technical"
)

const (
	minHistoryForBasicAnalysis = 5
	minHistoryForLevels        = 20
	levelsLookback             = 20
	atrPeriod                  = 14
	mergeOwnWeight             = 0.6
	mergeConsensusWeight       = 0.4
	mergeBuyThreshold          = 0.10
	mergeSellThreshold         = -0.10
)

// StartAnalysisLoop cancels any prior outstanding schedule, makes addr
// the focal token, runs analyzeToken immediately, and schedules it every
// AnalysisInterval thereafter. Per spec §4.7's race-free requirement: a
// prior entry that has not yet fired is removed outright (never runs);
// one that is already running is left to finish and cache its result,
// but the cron schedule itself now belongs to addr.
func (h *Hub) StartAnalysisLoop(ctx context.Context, addr string) {
	addr = strings.ToLower(addr)

	h.analysisMu.Lock()
	if h.cronRunner == nil {
		h.cronRunner = cron.New()
		h.cronRunner.Start()
	}
	if h.analysisEntryID != 0 {
		h.cronRunner.Remove(h.analysisEntryID)
		h.analysisEntryID = 0
	}
	h.state.mu.Lock()
	h.state.focalToken = addr
	h.state.mu.Unlock()

	entryID, err := h.cronRunner.AddFunc(fmt.Sprintf("@every %s", AnalysisInterval), func() {
		h.analyzeToken(context.Background(), addr)
	})
	if err != nil {
		log.Error().Err(err).Str("token", addr).Msg("hub: failed to schedule analysis loop")
	} else {
		h.analysisEntryID = entryID
	}
	h.analysisMu.Unlock()

	go h.analyzeToken(ctx, addr)
}

// analyzeToken implements spec §4.7 steps 1-8.
func (h *Hub) analyzeToken(ctx context.Context, addr string) {
	if h.priceSvc == nil {
		return
	}
	sample, err := h.priceSvc.GetPrice(ctx, addr)
	if err != nil {
		log.Warn().Err(err).Str("token", addr).Msg("hub: analysis price fetch failed")
		return
	}

	prices, volumes := h.appendHistory(addr, sample)

	analysis := Analysis{
		TokenAddress: addr,
		ComputedAtMs: events.NowMs(),
	}

	if len(prices) >= minHistoryForBasicAnalysis {
		analysis.RSI = technical.RSI(prices, 14)
		analysis.TrendDirection, analysis.TrendStrength = technical.TrendDirectionStrength(prices)
		analysis.Regime = string(technical.ClassifyRegime(prices))
		analysis.OwnScore = ownScore(prices)
	} else {
		analysis.Regime = string(technical.RegimeUnknown)
	}

	if len(prices) >= minHistoryForLevels {
		analysis.Support, analysis.Resistance = technical.SupportResistance(prices, volumes, levelsLookback)
		analysis.OBV = technical.OBV(prices, volumes)
	}

	agentSignals := h.snapshotAgentSignals()
	analysis.Consensus = ComputeConsensus(agentSignals, time.Now())

	consensusScore := analysis.Consensus.Normalized
	analysis.MergedScore = mergeOwnWeight*analysis.OwnScore + mergeConsensusWeight*consensusScore

	switch {
	case analysis.MergedScore > mergeBuyThreshold:
		analysis.Label = events.SignalBuy
	case analysis.MergedScore < mergeSellThreshold:
		analysis.Label = events.SignalSell
	default:
		analysis.Label = events.SignalHold
	}

	if analysis.Label == events.SignalBuy && len(prices) >= atrPeriod {
		atr := technical.ATR(prices, atrPeriod)
		analysis.Risk = ComputeRiskLevels(sample.Price, atr, analysis.Support, analysis.Consensus.Strength)
	}

	if h.adv != nil {
		prompt := fmt.Sprintf("Token %s regime=%s trend=%.2f rsi=%.1f consensus=%s merged=%.2f. One-sentence trading note?",
			addr, analysis.Regime, analysis.TrendDirection, analysis.RSI, analysis.Consensus.Label, analysis.MergedScore)
		analysis.Advisor = h.adv.Call(ctx, prompt)
	}

	analysis.Narrative = ComposeNarrative(analysis)

	h.state.mu.Lock()
	h.state.analysisResults[addr] = analysis
	h.state.mu.Unlock()

	h.fanout.broadcast("analysis:result", analysis)
}

func (h *Hub) appendHistory(addr string, sample events.PriceSample) (prices, volumes []float64) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()

	priceRing, ok := h.state.priceHistories[addr]
	if !ok {
		priceRing = ringbuf.NewFloat(priceHistCap)
		h.state.priceHistories[addr] = priceRing
	}
	volumeRing, ok := h.state.volumeHistories[addr]
	if !ok {
		volumeRing = ringbuf.NewFloat(priceHistCap)
		h.state.volumeHistories[addr] = volumeRing
	}
	priceRing.Append(sample.Price)
	volumeRing.Append(sample.Volume24h)

	return append([]float64(nil), priceRing.Slice()...), append([]float64(nil), volumeRing.Slice()...)
}

func (h *Hub) snapshotAgentSignals() map[string]events.Signal {
	h.state.mu.RLock()
	defer h.state.mu.RUnlock()
	out := make(map[string]events.Signal, len(h.state.agentSignals))
	for k, v := range h.state.agentSignals {
		out[k] = v
	}
	return out
}

// ownScore blends trend and RSI deviation-from-neutral into a single
// [-1,1] directional score, the hub's own half of the merged verdict.
func ownScore(prices []float64) float64 {
	direction, strength := technical.TrendDirectionStrength(prices)
	rsi := technical.RSI(prices, 14)
	rsiComponent := (rsi - 50) / 50

	score := 0.6*(direction*strength) + 0.4*rsiComponent
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}

// AnalysisResult returns the cached consensus analysis for addr, if any.
func (h *Hub) AnalysisResult(addr string) (Analysis, bool) {
	h.state.mu.RLock()
	defer h.state.mu.RUnlock()
	a, ok := h.state.analysisResults[strings.ToLower(addr)]
	return a, ok
}
