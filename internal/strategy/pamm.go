package strategy

import "math"

// Direction returns +1 when the row's EMA9 sits at or above its EMA21,
// otherwise -1.
func Direction(r Row) int {
	if r.Ema9 >= r.Ema21 {
		return 1
	}
	return -1
}

// ScorePAMM computes the composite Price Action Momentum Model score from
// the latest row of each timeframe. The 5m row is primary; the others
// contribute agreement and momentum. The score is unclamped:
//
//	+10 per non-primary timeframe whose EMA direction agrees with 5m (max 30)
//	per timeframe: min(10, |RSI-50|/20*10) plus 10 when the MACD histogram
//	is non-zero (max 80 across four timeframes)
//	ADX bonus from the 5m frame: min(10, adx/25*10)
//
// It also returns the 5m direction.
func ScorePAMM(r5, r1, r15, r30 Row) (float64, int) {
	score := 0.0

	dir5 := Direction(r5)
	for _, r := range []Row{r1, r15, r30} {
		if Direction(r) == dir5 {
			score += 10.0
		}
	}

	for _, r := range []Row{r1, r5, r15, r30} {
		rsiPts := math.Abs(r.Rsi14-50.0) / 20.0 * 10.0
		if rsiPts > 10.0 {
			rsiPts = 10.0
		}
		score += rsiPts
		if math.Abs(r.MacdHist) > 0 {
			score += 10.0
		}
	}

	adxPts := r5.ADX / 25.0 * 10.0
	if adxPts > 10.0 {
		adxPts = 10.0
	}
	if adxPts > 0 {
		score += adxPts
	}

	return score, dir5
}

// ComputePAMM scores the latest bars of a frame bundle. Frames shorter
// than 30 bars on any timeframe score 0.
func ComputePAMM(fr Frames) float64 {
	if fr.MinLen() < 30 {
		return 0.0
	}
	score, _ := ScorePAMM(fr.F5.Last(), fr.F1.Last(), fr.F15.Last(), fr.F30.Last())
	return score
}
