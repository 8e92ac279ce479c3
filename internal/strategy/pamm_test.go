package strategy

import (
	"math"
	"testing"
)

func bullRow() Row {
	return Row{
		Open: 99, High: 100.5, Low: 90, Close: 100,
		Ema9: 96, Ema21: 95, Ema50: 94,
		Rsi14: 60, MacdHist: 5, ADX: 30, Vwap: 93, RelVol: 1.5,
	}
}

func TestScorePAMMFullAlignment(t *testing.T) {
	r := bullRow()
	score, dir := ScorePAMM(r, r, r, r)
	if dir != 1 {
		t.Fatalf("direction = %d, want 1", dir)
	}
	// 30 agreement + 4x(5 rsi + 10 macd) + 10 adx (capped)
	if math.Abs(score-100.0) > 1e-9 {
		t.Errorf("score = %.2f, want 100", score)
	}
}

func TestScorePAMMAgreementSteps(t *testing.T) {
	aligned := bullRow()
	opposed := aligned
	opposed.Ema9, opposed.Ema21 = 95, 96 // flips direction only

	full, _ := ScorePAMM(aligned, aligned, aligned, aligned)

	oneOff, _ := ScorePAMM(aligned, opposed, aligned, aligned)
	if math.Abs(full-oneOff-10.0) > 1e-9 {
		t.Errorf("one disagreeing timeframe should cost exactly 10 points, got %.2f -> %.2f", full, oneOff)
	}

	twoOff, _ := ScorePAMM(aligned, opposed, opposed, aligned)
	if math.Abs(oneOff-twoOff-10.0) > 1e-9 {
		t.Errorf("each disagreeing timeframe should cost 10 points, got %.2f -> %.2f", oneOff, twoOff)
	}
}

func TestScorePAMMCaps(t *testing.T) {
	r := bullRow()
	r.Rsi14 = 99 // deviation 49 caps at 10 points
	r.ADX = 250  // caps at 10 points
	score, _ := ScorePAMM(r, r, r, r)
	// 30 + 4x(10+10) + 10
	if math.Abs(score-120.0) > 1e-9 {
		t.Errorf("score = %.2f, want 120 with capped contributions", score)
	}
}

func TestScorePAMMZeroMacdNoPoints(t *testing.T) {
	r := bullRow()
	r.MacdHist = 0
	r.Rsi14 = 50
	r.ADX = 0
	score, _ := ScorePAMM(r, r, r, r)
	if math.Abs(score-30.0) > 1e-9 {
		t.Errorf("score = %.2f, want 30 (agreement only)", score)
	}
}

func TestDirectionTieIsBullish(t *testing.T) {
	r := Row{Ema9: 100, Ema21: 100}
	if Direction(r) != 1 {
		t.Error("equal EMAs must resolve bullish")
	}
}

func TestComputePAMMShortHistory(t *testing.T) {
	fr := makeFrames(10, bullRow())
	if got := ComputePAMM(fr); got != 0 {
		t.Errorf("pamm with <30 bars = %.2f, want 0", got)
	}
	fr = makeFrames(30, bullRow())
	if got := ComputePAMM(fr); got == 0 {
		t.Error("pamm with 30 bars should be scored")
	}
}
