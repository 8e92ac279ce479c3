package engine

import (
	"time"

	"github.com/google/uuid"

	"ninja-decision-engine/internal/strategy"
)

// Fingerprint is the audit record persisted for every decision: the
// outcome plus the 5m indicator snapshot it was computed from.
type Fingerprint struct {
	DecisionID string    `json:"decision_id"`
	TsUTC      time.Time `json:"ts_utc"`
	MachineID  string    `json:"machine_id"`
	Symbol     string    `json:"symbol"`
	Signal     string    `json:"signal"`
	StopPrice  float64   `json:"stop_price"`
	Reason     string    `json:"reason"`

	PammScore float64 `json:"pamm_score"`
	Direction int     `json:"direction"`
	Ema9      float64 `json:"ema9"`
	Ema21     float64 `json:"ema21"`
	Ema50     float64 `json:"ema50"`
	Rsi14     float64 `json:"rsi14"`
	MacdHist  float64 `json:"macdh"`
	ADX       float64 `json:"adx"`
	RelVol    float64 `json:"relvol"`
	Vwap      float64 `json:"vwap"`
	ATR       float64 `json:"atr"`
	Close     float64 `json:"close"`

	Mode      string `json:"mode"`
	Timeframe string `json:"timeframe"`
}

// BuildFingerprint assembles the audit record from the same prepared
// frames the decision was made on. Indicator fields stay zero when the
// frames were unavailable (kill switch, load failure).
func BuildFingerprint(machineID, symbol string, fr strategy.Frames, d Decision, mode string, ts time.Time) *Fingerprint {
	fp := &Fingerprint{
		DecisionID: uuid.NewString(),
		TsUTC:      ts,
		MachineID:  machineID,
		Symbol:     symbol,
		Signal:     d.Signal,
		StopPrice:  d.StopPrice,
		Reason:     d.Reason,
		Mode:       mode,
		Timeframe:  strategy.TF5m,
	}
	if fr.MinLen() == 0 {
		return fp
	}

	r5 := fr.F5.Last()
	score, dir := strategy.ScorePAMM(r5, fr.F1.Last(), fr.F15.Last(), fr.F30.Last())
	fp.PammScore = score
	fp.Direction = dir
	fp.Ema9 = r5.Ema9
	fp.Ema21 = r5.Ema21
	fp.Ema50 = r5.Ema50
	fp.Rsi14 = r5.Rsi14
	fp.MacdHist = r5.MacdHist
	fp.ADX = r5.ADX
	fp.RelVol = r5.RelVol
	fp.Vwap = r5.Vwap
	fp.ATR = r5.ATR
	fp.Close = r5.Close
	return fp
}
