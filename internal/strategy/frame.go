package strategy

import (
	"time"

	"ninja-decision-engine/internal/indicator"
)

// Timeframes the engine evaluates on every poll. TF5m is the primary
// decision timeframe; the others provide regime and momentum context.
const (
	TF1m  = "1m"
	TF5m  = "5m"
	TF15m = "15m"
	TF30m = "30m"
)

// Timeframes lists all evaluated timeframes in ascending order.
var Timeframes = []string{TF1m, TF5m, TF15m, TF30m}

// Bar is one closed OHLCV candle.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// FrameSet maps a timeframe to its bars, oldest first.
type FrameSet map[string][]Bar

// PreparedFrame carries a bar series and its derived indicator columns,
// all aligned index-for-index with Bars.
type PreparedFrame struct {
	Bars     []Bar
	Ema9     []float64
	Ema21    []float64
	Ema50    []float64
	Rsi14    []float64
	MacdHist []float64
	ADX      []float64
	ATR      []float64
	Vwap     []float64
	RelVol   []float64
}

// Row is a single-bar snapshot of a prepared frame.
type Row struct {
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Ema9     float64
	Ema21    float64
	Ema50    float64
	Rsi14    float64
	MacdHist float64
	ADX      float64
	ATR      float64
	Vwap     float64
	RelVol   float64
}

// Prepare computes the indicator columns for a bar series.
func Prepare(bars []Bar) *PreparedFrame {
	n := len(bars)
	high := make([]float64, n)
	low := make([]float64, n)
	close := make([]float64, n)
	volume := make([]float64, n)
	for i, b := range bars {
		high[i] = b.High
		low[i] = b.Low
		close[i] = b.Close
		volume[i] = b.Volume
	}
	return &PreparedFrame{
		Bars:     bars,
		Ema9:     indicator.EMA(close, 9),
		Ema21:    indicator.EMA(close, 21),
		Ema50:    indicator.EMA(close, 50),
		Rsi14:    indicator.RSI(close, 14),
		MacdHist: indicator.MACDHist(close, 12, 26, 9),
		ADX:      indicator.ADX(high, low, close, 14),
		ATR:      indicator.ATR(high, low, close, 14),
		Vwap:     indicator.VWAP(high, low, close, volume),
		RelVol:   indicator.RelVolume(volume, 20),
	}
}

// Len returns the number of bars in the frame.
func (f *PreparedFrame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Bars)
}

// Row returns the snapshot at index i.
func (f *PreparedFrame) Row(i int) Row {
	b := f.Bars[i]
	return Row{
		Open:     b.Open,
		High:     b.High,
		Low:      b.Low,
		Close:    b.Close,
		Volume:   b.Volume,
		Ema9:     f.Ema9[i],
		Ema21:    f.Ema21[i],
		Ema50:    f.Ema50[i],
		Rsi14:    f.Rsi14[i],
		MacdHist: f.MacdHist[i],
		ADX:      f.ADX[i],
		ATR:      f.ATR[i],
		Vwap:     f.Vwap[i],
		RelVol:   f.RelVol[i],
	}
}

// Last returns the most recent snapshot. Callers must check Len first.
func (f *PreparedFrame) Last() Row {
	return f.Row(len(f.Bars) - 1)
}

// Candle returns the indicator view of bar i, used by pattern predicates.
func (f *PreparedFrame) Candle(i int) indicator.Candle {
	b := f.Bars[i]
	return indicator.Candle{Open: b.Open, High: b.High, Low: b.Low, Close: b.Close}
}

// Frames bundles the prepared frames for every evaluated timeframe.
type Frames struct {
	F1  *PreparedFrame
	F5  *PreparedFrame
	F15 *PreparedFrame
	F30 *PreparedFrame
}

// PrepareAll prepares every timeframe in the set. Missing timeframes
// produce empty frames rather than nils.
func PrepareAll(fs FrameSet) Frames {
	return Frames{
		F1:  Prepare(fs[TF1m]),
		F5:  Prepare(fs[TF5m]),
		F15: Prepare(fs[TF15m]),
		F30: Prepare(fs[TF30m]),
	}
}

// MinLen returns the shortest bar count across all four timeframes.
func (fr Frames) MinLen() int {
	min := fr.F1.Len()
	for _, f := range []*PreparedFrame{fr.F5, fr.F15, fr.F30} {
		if f.Len() < min {
			min = f.Len()
		}
	}
	return min
}
