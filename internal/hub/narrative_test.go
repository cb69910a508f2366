package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yeddevall/duckmon-agents-ai/internal/events"
)

func TestComposeNarrative_BuyIncludesRiskLevels(t *testing.T) {
	a := Analysis{
		TokenAddress:   "0xDEADBEEF00000000000000000000000000000001",
		Regime:         "TRENDING_UP",
		RSI:            55,
		TrendDirection: 0.8,
		TrendStrength:  0.7,
		Consensus:      ConsensusResult{Label: events.SignalBuy, Strength: 60, AgreementPct: 75, Breakdown: make([]AgentContribution, 3)},
		MergedScore:    0.3,
		Label:          events.SignalBuy,
		Risk:           RiskLevels{StopPrice: 97, Target2R: 106, Target3R: 109, PositionSizePct: 8},
	}

	narrative := ComposeNarrative(a)

	assert.Contains(t, narrative, "strong uptrend")
	assert.Contains(t, narrative, "BUY")
	assert.Contains(t, narrative, "97")
}

func TestComposeNarrative_SellOmitsRiskLevels(t *testing.T) {
	a := Analysis{
		TokenAddress: "0xabc123",
		Regime:       "TRENDING_DOWN",
		RSI:          25,
		Consensus:    ConsensusResult{Label: events.SignalSell, Strength: 40, AgreementPct: 60},
		MergedScore:  -0.3,
		Label:        events.SignalSell,
	}

	narrative := ComposeNarrative(a)

	assert.Contains(t, narrative, "oversold")
	assert.Contains(t, narrative, "reducing exposure")
	assert.NotContains(t, narrative, "risk-sized entry would")
}

func TestComposeNarrative_HoldMentionsNoEntry(t *testing.T) {
	a := Analysis{
		TokenAddress: "0xabc123",
		Regime:       "RANGING",
		RSI:          50,
		Consensus:    ConsensusResult{Label: events.SignalHold},
		Label:        events.SignalHold,
	}

	narrative := ComposeNarrative(a)
	assert.Contains(t, narrative, "No risk-sized entry is warranted")
}

func TestComposeNarrative_AppendsAdvisorNote(t *testing.T) {
	a := Analysis{
		TokenAddress: "0xabc123",
		Regime:       "RANGING",
		Consensus:    ConsensusResult{Label: events.SignalHold},
		Label:        events.SignalHold,
		Advisor:      map[string]any{"note": "watch the next funding print"},
	}

	narrative := ComposeNarrative(a)
	assert.Contains(t, narrative, "watch the next funding print")
}

func TestShortAddr(t *testing.T) {
	assert.Equal(t, "0xabc", shortAddr("0xabc"))
	assert.Equal(t, "0xDEAD…0001", shortAddr("0xDEADBEEF00000000000000000000000000000001"))
}
