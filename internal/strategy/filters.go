package strategy

import (
	"fmt"
	"math"

	"ninja-decision-engine/internal/indicator"
)

// Signal side values.
const (
	SideBuy  = "buy"
	SideSell = "sell"
	SideFlat = "flat"
)

// Signal is the outcome of a strategy evaluation: a side and the reason
// the signal was generated or blocked.
type Signal struct {
	Side   string
	Reason string
}

// Config holds the entry-gate thresholds and filter toggles.
type Config struct {
	PammMin     float64
	PammMax     float64
	AdxMin      float64
	RelVolMin   float64
	RelVolMax   float64
	RsiLongMin  float64
	RsiShortMax float64

	UseVWAP           bool
	UseRegimeFilter   bool
	UseCandlePatterns bool
	UseMultiTFMACD    bool

	// MinBars is the history every timeframe must carry before any
	// entry signal is considered.
	MinBars int
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		PammMin:           60,
		PammMax:           130,
		AdxMin:            22,
		RelVolMin:         0,
		RelVolMax:         999,
		RsiLongMin:        52,
		RsiShortMax:       48,
		UseVWAP:           true,
		UseRegimeFilter:   true,
		UseCandlePatterns: true,
		UseMultiTFMACD:    true,
		MinBars:           50,
	}
}

// Strategy evaluates the ordered entry filter chain over prepared frames.
type Strategy struct {
	cfg Config
}

// New returns a strategy with the given thresholds. Zero MinBars falls
// back to the default of 50.
func New(cfg Config) *Strategy {
	if cfg.MinBars <= 0 {
		cfg.MinBars = 50
	}
	return &Strategy{cfg: cfg}
}

// Config returns the thresholds the strategy runs with.
func (s *Strategy) Config() Config { return s.cfg }

// MinBars returns the per-timeframe history requirement.
func (s *Strategy) MinBars() int { return s.cfg.MinBars }

// checkRegime gates on 5m and 30m EMA9-vs-EMA50 agreement. Direction is
// 1 for uptrend, -1 for downtrend, 0 when mixed or disabled.
func (s *Strategy) checkRegime(fr Frames) (bool, int, string) {
	if !s.cfg.UseRegimeFilter {
		return true, 0, "Regime filter disabled"
	}
	if fr.F5.Len() < 50 || fr.F30.Len() < 50 {
		return false, 0, "Insufficient data for regime filter"
	}
	r5, r30 := fr.F5.Last(), fr.F30.Last()
	dir5 := -1
	if r5.Ema9 > r5.Ema50 {
		dir5 = 1
	}
	dir30 := -1
	if r30.Ema9 > r30.Ema50 {
		dir30 = 1
	}
	if dir5 != dir30 {
		return false, 0, "Mixed regime (5m and 30m disagree)"
	}
	if dir5 == 1 {
		return true, 1, "Uptrend (5m+30m aligned)"
	}
	return true, -1, "Downtrend (5m+30m aligned)"
}

func (s *Strategy) checkADXGate(r5 Row) (bool, string) {
	if math.IsNaN(r5.ADX) || math.IsInf(r5.ADX, 0) {
		return false, "Invalid ADX"
	}
	if r5.ADX < s.cfg.AdxMin {
		return false, fmt.Sprintf("Weak trend (ADX %.1f < %g)", r5.ADX, s.cfg.AdxMin)
	}
	return true, fmt.Sprintf("Strong trend (ADX %.1f)", r5.ADX)
}

func (s *Strategy) checkVolume(r5 Row) (bool, string) {
	if math.IsNaN(r5.RelVol) || math.IsInf(r5.RelVol, 0) {
		return false, "Invalid RelVol"
	}
	if r5.RelVol < s.cfg.RelVolMin {
		return false, fmt.Sprintf("Low volume (RelVol %.2f < %g)", r5.RelVol, s.cfg.RelVolMin)
	}
	if r5.RelVol > s.cfg.RelVolMax {
		return false, fmt.Sprintf("Volume spike (RelVol %.2f > %g)", r5.RelVol, s.cfg.RelVolMax)
	}
	return true, fmt.Sprintf("Volume OK (RelVol %.2f)", r5.RelVol)
}

// checkMultiTFMACD requires the 5m histogram to match the trade direction,
// the 15m to not contradict strongly, and notes whether 30m supports.
func (s *Strategy) checkMultiTFMACD(fr Frames, direction int) (bool, string) {
	if !s.cfg.UseMultiTFMACD {
		return true, "MACD filter disabled"
	}
	macd5 := fr.F5.Last().MacdHist
	macd15 := fr.F15.Last().MacdHist
	macd30 := fr.F30.Last().MacdHist

	if direction == 1 && macd5 <= 0 {
		return false, "5m MACD bearish (blocking long)"
	}
	if direction == -1 && macd5 >= 0 {
		return false, "5m MACD bullish (blocking short)"
	}

	if direction == 1 && macd15 < -50 {
		return false, "15m MACD strongly bearish (blocking long)"
	}
	if direction == -1 && macd15 > 50 {
		return false, "15m MACD strongly bullish (blocking short)"
	}

	if (direction == 1 && macd30 > 0) || (direction == -1 && macd30 < 0) {
		return true, "MACD 5m+30m aligned"
	}
	return true, "MACD acceptable (5m+15m OK)"
}

// checkCandlePattern requires a directional confirmation pattern on the
// last bar (engulfing also inspects the bar before it).
func (s *Strategy) checkCandlePattern(f *PreparedFrame, direction int) (bool, string) {
	if !s.cfg.UseCandlePatterns {
		return true, "Candle filter disabled"
	}
	if f.Len() < 2 {
		return false, "Insufficient candles"
	}
	last := f.Candle(f.Len() - 1)
	prev := f.Candle(f.Len() - 2)

	if direction == 1 {
		switch {
		case indicator.IsBullishRejection(last):
			return true, "Bullish rejection"
		case indicator.IsBullishEngulfing(prev, last):
			return true, "Bullish engulfing"
		case indicator.IsHammer(last):
			return true, "Hammer"
		}
		return false, "No bullish pattern"
	}

	switch {
	case indicator.IsBearishRejection(last):
		return true, "Bearish rejection"
	case indicator.IsBearishEngulfing(prev, last):
		return true, "Bearish engulfing"
	case indicator.IsInvertedHammer(last):
		return true, "Inverted hammer"
	}
	return false, "No bearish pattern"
}

// Decide runs the full ordered filter chain over the prepared frames and
// returns an entry signal or a flat signal carrying the first blocking
// reason. The chain never panics on short history.
func (s *Strategy) Decide(fr Frames) Signal {
	if fr.MinLen() < s.cfg.MinBars {
		return Signal{Side: SideFlat, Reason: "Insufficient data"}
	}

	regimePass, regimeDir, regimeReason := s.checkRegime(fr)
	if !regimePass {
		return Signal{Side: SideFlat, Reason: regimeReason}
	}

	pamm, dir5 := ScorePAMM(fr.F5.Last(), fr.F1.Last(), fr.F15.Last(), fr.F30.Last())

	if s.cfg.UseRegimeFilter && regimeDir != 0 && dir5 != regimeDir {
		return Signal{Side: SideFlat, Reason: "PAMM direction conflicts with regime"}
	}

	if pamm < s.cfg.PammMin || pamm > s.cfg.PammMax {
		return Signal{Side: SideFlat, Reason: fmt.Sprintf("PAMM %.1f outside range [%g, %g]", pamm, s.cfg.PammMin, s.cfg.PammMax)}
	}

	r5 := fr.F5.Last()

	adxPass, adxReason := s.checkADXGate(r5)
	if !adxPass {
		return Signal{Side: SideFlat, Reason: adxReason}
	}

	volPass, volReason := s.checkVolume(r5)
	if !volPass {
		return Signal{Side: SideFlat, Reason: volReason}
	}

	useLong := dir5 == 1
	if useLong && r5.Rsi14 < s.cfg.RsiLongMin {
		return Signal{Side: SideFlat, Reason: fmt.Sprintf("RSI %.1f too low for long", r5.Rsi14)}
	}
	if !useLong && r5.Rsi14 > s.cfg.RsiShortMax {
		return Signal{Side: SideFlat, Reason: fmt.Sprintf("RSI %.1f too high for short", r5.Rsi14)}
	}

	if s.cfg.UseVWAP {
		if useLong {
			if !(r5.Close >= r5.Vwap && r5.Ema9 >= r5.Vwap) {
				return Signal{Side: SideFlat, Reason: "Price/EMA9 below VWAP (blocking long)"}
			}
		} else {
			if !(r5.Close <= r5.Vwap && r5.Ema9 <= r5.Vwap) {
				return Signal{Side: SideFlat, Reason: "Price/EMA9 above VWAP (blocking short)"}
			}
		}
	}

	macdPass, macdReason := s.checkMultiTFMACD(fr, dir5)
	if !macdPass {
		return Signal{Side: SideFlat, Reason: macdReason}
	}

	patternPass, patternReason := s.checkCandlePattern(fr.F5, dir5)
	if !patternPass {
		return Signal{Side: SideFlat, Reason: patternReason}
	}

	side := SideSell
	if useLong {
		side = SideBuy
	}
	reason := fmt.Sprintf("PAMM %.1f | %s | %s | %s | RSI %.1f | %s | %s",
		pamm, regimeReason, adxReason, volReason, r5.Rsi14, macdReason, patternReason)
	return Signal{Side: side, Reason: reason}
}
