package hub

import (
	"fmt"
	"strings"

	"github.com/yeddevall/duckmon-agents-ai/internal/events"
)

// ComposeNarrative assembles a prose paragraph from fixed phrase
// templates, per spec §4.7 step 7: no external model call is required,
// and an optional advisor enrichment (already folded into a.Advisor by
// the caller) only ever supplements this text, never replaces it.
func ComposeNarrative(a Analysis) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s is in a %s regime", shortAddr(a.TokenAddress), strings.ToLower(a.Regime))

	switch {
	case a.TrendStrength > 0.5 && a.TrendDirection > 0:
		b.WriteString(", with a strong uptrend underway")
	case a.TrendStrength > 0.5 && a.TrendDirection < 0:
		b.WriteString(", with a strong downtrend underway")
	case a.TrendDirection > 0:
		b.WriteString(", drifting upward")
	case a.TrendDirection < 0:
		b.WriteString(", drifting downward")
	default:
		b.WriteString(", with no clear directional bias")
	}

	switch {
	case a.RSI >= 70:
		fmt.Fprintf(&b, "; RSI at %.0f suggests overbought conditions", a.RSI)
	case a.RSI <= 30:
		fmt.Fprintf(&b, "; RSI at %.0f suggests oversold conditions", a.RSI)
	default:
		fmt.Fprintf(&b, "; RSI at %.0f is in neutral territory", a.RSI)
	}
	b.WriteString(".")

	fmt.Fprintf(&b, " The fleet consensus leans %s at %.0f%% strength with %.0f%% agreement across %d reporting agents.",
		strings.ToLower(string(a.Consensus.Label)), a.Consensus.Strength, a.Consensus.AgreementPct, len(a.Consensus.Breakdown))

	fmt.Fprintf(&b, " Blending the hub's own read with that consensus yields a merged score of %.2f, labeled %s.",
		a.MergedScore, a.Label)

	if a.Label == events.SignalBuy && a.Risk.StopPrice > 0 {
		fmt.Fprintf(&b, " A risk-sized entry would stop at %.6g, targeting %.6g (2R) and %.6g (3R), sized at %.1f%% of capital.",
			a.Risk.StopPrice, a.Risk.Target2R, a.Risk.Target3R, a.Risk.PositionSizePct)
	} else if a.Label == events.SignalSell {
		b.WriteString(" Current structure favors reducing exposure rather than adding to it.")
	} else {
		b.WriteString(" No risk-sized entry is warranted while the signal sits at HOLD.")
	}

	if a.Support > 0 && a.Resistance > 0 {
		fmt.Fprintf(&b, " Nearby volume-weighted support sits around %.6g and resistance around %.6g.", a.Support, a.Resistance)
	}

	if note, ok := a.Advisor["note"].(string); ok && note != "" {
		fmt.Fprintf(&b, " Advisor note: %s", note)
	}

	return b.String()
}

func shortAddr(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
