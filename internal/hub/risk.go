package hub

// Risk-sizing constants per spec §4.7 step 6 and Design Notes' preserved
// heuristic-Kelly formula.
const (
	atrStopMultiplier   = 1.5
	supportStopDiscount = 0.99 // stop may not sit below support*0.99

	// winRate is a fixed assumption, not measured per token; Design
	// Notes explicitly preserves this rather than computing a true
	// empirical win rate, since the formula it feeds is a heuristic
	// already, not a textbook Kelly criterion.
	winRateBullish = 0.55
	winRateNeutral = 0.50

	kellyHalf        = 0.5
	positionCapPct   = 12.5
)

// ComputeRiskLevels derives an ATR-based stop, 2R/3R targets, and a
// half-Kelly-sized position percentage for a BUY-labeled consensus.
// currentPrice and atr must be positive; support may be 0 if unknown, in
// which case the stop is the unclipped ATR stop. confidence is the
// consensus strength in [0,100], used only to pick which winRate
// assumption applies (Design Notes' "fixed winRate of 0.50 or 0.55").
func ComputeRiskLevels(currentPrice, atr, support, confidence float64) RiskLevels {
	if currentPrice <= 0 || atr <= 0 {
		return RiskLevels{}
	}

	stop := currentPrice - atrStopMultiplier*atr
	if support > 0 {
		floor := support * supportStopDiscount
		if stop < floor {
			stop = floor
		}
	}
	if stop >= currentPrice {
		// A stop that isn't strictly below entry can't size risk at all.
		return RiskLevels{}
	}

	riskPerUnit := currentPrice - stop
	target2R := currentPrice + 2*riskPerUnit
	target3R := currentPrice + 3*riskPerUnit

	winRate := winRateNeutral
	if confidence >= 60 {
		winRate = winRateBullish
	}

	rewardRiskRatio := 2.0 // sized against the 2R target, the nearer of the two
	kellyFraction := winRate - (1-winRate)/rewardRiskRatio
	if kellyFraction < 0 {
		kellyFraction = 0
	}

	positionPct := kellyFraction * kellyHalf * 100
	if positionPct > positionCapPct {
		positionPct = positionCapPct
	}

	return RiskLevels{
		StopPrice:       stop,
		Target2R:        target2R,
		Target3R:        target3R,
		PositionSizePct: positionPct,
	}
}
