package indicator

import "math"

// Series indicators over closed candles, oldest first. Every function
// returns a slice the same length as its input; warm-up slots are filled
// with neutral values so callers never have to special-case short history.

// EMA returns the exponential moving average with alpha = 2/(period+1),
// seeded with the first value of the series.
func EMA(series []float64, period int) []float64 {
	out := make([]float64, len(series))
	if len(series) == 0 || period <= 0 {
		return out
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = alpha*series[i] + (1-alpha)*out[i-1]
	}
	return out
}

// SMA returns the simple moving average; slots before a full window hold 0.
func SMA(series []float64, period int) []float64 {
	out := make([]float64, len(series))
	if period <= 0 {
		return out
	}
	var sum float64
	for i := range series {
		sum += series[i]
		if i >= period {
			sum -= series[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// RSI returns the relative strength index computed from rolling-mean gains
// and losses over the period. Warm-up slots and slots whose average loss is
// zero report the neutral value 50.
func RSI(series []float64, period int) []float64 {
	out := make([]float64, len(series))
	for i := range out {
		out[i] = 50.0
	}
	if period <= 0 || len(series) <= period {
		return out
	}
	for i := period; i < len(series); i++ {
		var gain, loss float64
		for j := i - period + 1; j <= i; j++ {
			delta := series[j] - series[j-1]
			if delta > 0 {
				gain += delta
			} else {
				loss -= delta
			}
		}
		avgGain := gain / float64(period)
		avgLoss := loss / float64(period)
		if avgLoss == 0 {
			continue // stays at 50
		}
		rs := avgGain / avgLoss
		out[i] = 100.0 - 100.0/(1.0+rs)
	}
	return out
}

// MACDHist returns the MACD histogram: EMA(fast)-EMA(slow) minus its
// EMA(signal) smoothing.
func MACDHist(series []float64, fast, slow, signal int) []float64 {
	fastEMA := EMA(series, fast)
	slowEMA := EMA(series, slow)
	macd := make([]float64, len(series))
	for i := range macd {
		macd[i] = fastEMA[i] - slowEMA[i]
	}
	sig := EMA(macd, signal)
	hist := make([]float64, len(series))
	for i := range hist {
		hist[i] = macd[i] - sig[i]
	}
	return hist
}

func trueRange(high, low, close []float64) []float64 {
	tr := make([]float64, len(high))
	for i := range tr {
		hl := high[i] - low[i]
		if i == 0 {
			tr[i] = hl
			continue
		}
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// ATR returns the simple-mean average true range; warm-up slots hold 0.
func ATR(high, low, close []float64, period int) []float64 {
	out := make([]float64, len(high))
	if period <= 0 || len(high) == 0 {
		return out
	}
	tr := trueRange(high, low, close)
	var sum float64
	for i := range tr {
		sum += tr[i]
		if i >= period {
			sum -= tr[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// ADX returns the average directional index. Directional movements are
// mutually zeroed (plus loses ties), zero denominators yield 0 instead of
// blowing up, and the leading warm-up region is backfilled with the first
// valid reading so the latest bars always carry a usable value.
func ADX(high, low, close []float64, period int) []float64 {
	n := len(high)
	out := make([]float64, n)
	if period <= 0 || n == 0 {
		return out
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		plus := 0.0
		if up > 0 {
			plus = up
		}
		minus := 0.0
		if down > 0 {
			minus = down
		}
		if plus < minus {
			plus = 0
		}
		if minus <= plus {
			minus = 0
		}
		plusDM[i] = plus
		minusDM[i] = minus
	}

	atr := ATR(high, low, close, period)

	rollMean := func(series []float64, end int) float64 {
		var sum float64
		for j := end - period + 1; j <= end; j++ {
			sum += series[j]
		}
		return sum / float64(period)
	}

	// DI values exist once a full window of directional moves is available
	// (index 0 has no move, so the first valid index is period).
	pdi := make([]float64, n)
	mdi := make([]float64, n)
	dx := make([]float64, n)
	for i := period; i < n; i++ {
		if atr[i] == 0 {
			pdi[i], mdi[i] = 0, 0
		} else {
			pdi[i] = 100.0 * rollMean(plusDM, i) / atr[i]
			mdi[i] = 100.0 * rollMean(minusDM, i) / atr[i]
		}
		denom := pdi[i] + mdi[i]
		if denom == 0 {
			dx[i] = 0
		} else {
			dx[i] = math.Abs(pdi[i]-mdi[i]) / denom * 100.0
		}
	}

	firstValid := 2*period - 1
	if firstValid >= n {
		return out // too short for any ADX reading, stays all-zero
	}
	for i := firstValid; i < n; i++ {
		out[i] = rollMean(dx, i)
	}
	for i := 0; i < firstValid; i++ {
		out[i] = out[firstValid]
	}
	return out
}

// VWAP returns the cumulative volume-weighted average price using the
// typical price (H+L+C)/3. Bars before any volume has printed carry the
// last known value forward (0 if none yet).
func VWAP(high, low, close, volume []float64) []float64 {
	out := make([]float64, len(close))
	var cumPV, cumVol, last float64
	for i := range close {
		tp := (high[i] + low[i] + close[i]) / 3.0
		cumPV += tp * volume[i]
		cumVol += volume[i]
		if cumVol > 0 {
			last = cumPV / (cumVol + 1e-12)
		}
		out[i] = last
	}
	return out
}

// RelVolume returns each bar's volume relative to the mean volume of the
// trailing window (including the bar itself, partial windows allowed).
// Bars with no usable average default to 1.0.
func RelVolume(volume []float64, window int) []float64 {
	out := make([]float64, len(volume))
	if window <= 0 {
		window = 1
	}
	for i := range volume {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		var sum float64
		for j := start; j <= i; j++ {
			sum += volume[j]
		}
		avg := sum / float64(i-start+1)
		if avg > 0 {
			out[i] = volume[i] / (avg + 1e-12)
		} else {
			out[i] = 1.0
		}
	}
	return out
}
