package indicator

import (
	"math"
	"testing"
)

func approx(t *testing.T, got, want, tol float64, label string) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f", label, got, want)
	}
}

func TestEMASeedAndSmoothing(t *testing.T) {
	out := EMA([]float64{1, 2, 3}, 3)
	// alpha = 0.5 for period 3, seeded with the first value
	approx(t, out[0], 1.0, 1e-9, "ema[0]")
	approx(t, out[1], 1.5, 1e-9, "ema[1]")
	approx(t, out[2], 2.25, 1e-9, "ema[2]")
}

func TestEMAEmptyAndBadPeriod(t *testing.T) {
	if out := EMA(nil, 9); len(out) != 0 {
		t.Errorf("expected empty output for empty input, got %d values", len(out))
	}
	out := EMA([]float64{5, 6}, 0)
	if out[0] != 0 || out[1] != 0 {
		t.Errorf("expected zeroed output for period 0, got %v", out)
	}
}

func TestRSINeutralWarmup(t *testing.T) {
	series := []float64{1, 2, 3, 4, 5}
	out := RSI(series, 14)
	for i, v := range out {
		if v != 50.0 {
			t.Errorf("rsi[%d] = %.2f during warm-up, want 50", i, v)
		}
	}
}

func TestRSIAllGainsStaysNeutral(t *testing.T) {
	series := make([]float64, 20)
	for i := range series {
		series[i] = float64(i + 1)
	}
	// zero average loss is treated as neutral, not overbought
	out := RSI(series, 14)
	if out[len(out)-1] != 50.0 {
		t.Errorf("rsi with zero losses = %.2f, want 50", out[len(out)-1])
	}
}

func TestRSIAllLosses(t *testing.T) {
	series := make([]float64, 20)
	for i := range series {
		series[i] = float64(20 - i)
	}
	out := RSI(series, 14)
	if out[len(out)-1] != 0.0 {
		t.Errorf("rsi in pure downtrend = %.2f, want 0", out[len(out)-1])
	}
}

func TestRSIMixedWindow(t *testing.T) {
	out := RSI([]float64{1, 2, 1.5, 2.5}, 2)
	// window deltas (+1, -0.5): rs = 2, rsi = 66.67
	approx(t, out[2], 66.666667, 1e-4, "rsi[2]")
	approx(t, out[3], 66.666667, 1e-4, "rsi[3]")
}

func TestMACDHistFlatSeries(t *testing.T) {
	series := make([]float64, 40)
	for i := range series {
		series[i] = 100.0
	}
	out := MACDHist(series, 12, 26, 9)
	for i, v := range out {
		if math.Abs(v) > 1e-9 {
			t.Errorf("macd hist[%d] = %.9f on flat series, want 0", i, v)
		}
	}
}

func TestMACDHistRespondsToTrend(t *testing.T) {
	series := make([]float64, 60)
	for i := range series {
		series[i] = 100.0 + float64(i)
	}
	out := MACDHist(series, 12, 26, 9)
	if out[len(out)-1] <= 0 {
		t.Errorf("macd hist = %.6f in steady uptrend, want > 0", out[len(out)-1])
	}
}

func TestATRWarmupAndValues(t *testing.T) {
	high := []float64{10, 11}
	low := []float64{9, 9.5}
	close := []float64{9.5, 10.5}
	out := ATR(high, low, close, 1)
	approx(t, out[0], 1.0, 1e-9, "atr[0]")
	// max(range 1.5, |11-9.5|, |9.5-9.5|)
	approx(t, out[1], 1.5, 1e-9, "atr[1]")

	short := ATR(high, low, close, 5)
	if short[0] != 0 || short[1] != 0 {
		t.Errorf("atr warm-up should be 0, got %v", short)
	}
}

func TestADXStrongTrend(t *testing.T) {
	n := 6
	high := make([]float64, n)
	low := make([]float64, n)
	close := make([]float64, n)
	for i := 0; i < n; i++ {
		high[i] = float64(i + 1)
		low[i] = float64(i)
		close[i] = float64(i) + 0.8
	}
	out := ADX(high, low, close, 2)
	for i, v := range out {
		approx(t, v, 100.0, 1e-6, "adx in pure uptrend, index "+string(rune('0'+i)))
	}
}

func TestADXFlatMarketIsZero(t *testing.T) {
	n := 10
	high := make([]float64, n)
	low := make([]float64, n)
	close := make([]float64, n)
	for i := 0; i < n; i++ {
		high[i], low[i], close[i] = 50, 50, 50
	}
	out := ADX(high, low, close, 2)
	for i, v := range out {
		if v != 0 {
			t.Errorf("adx[%d] = %.4f on flat market, want 0", i, v)
		}
	}
}

func TestADXTooShortIsZero(t *testing.T) {
	high := []float64{1, 2}
	low := []float64{0, 1}
	close := []float64{0.5, 1.5}
	out := ADX(high, low, close, 14)
	for i, v := range out {
		if v != 0 {
			t.Errorf("adx[%d] = %.4f with insufficient history, want 0", i, v)
		}
	}
}

func TestVWAPTypicalPrice(t *testing.T) {
	out := VWAP([]float64{12}, []float64{8}, []float64{10}, []float64{2})
	approx(t, out[0], 10.0, 1e-6, "vwap single bar")
}

func TestVWAPCarriesForwardOnZeroVolume(t *testing.T) {
	high := []float64{12, 13, 14}
	low := []float64{8, 9, 10}
	close := []float64{10, 11, 12}
	volume := []float64{0, 2, 0}
	out := VWAP(high, low, close, volume)
	if out[0] != 0 {
		t.Errorf("vwap before any volume = %.4f, want 0", out[0])
	}
	approx(t, out[1], 11.0, 1e-6, "vwap[1]")
	approx(t, out[2], 11.0, 1e-6, "vwap[2] carried forward")
}

func TestRelVolumePartialWindows(t *testing.T) {
	out := RelVolume([]float64{10, 10, 40}, 2)
	approx(t, out[0], 1.0, 1e-6, "relvol[0]")
	approx(t, out[1], 1.0, 1e-6, "relvol[1]")
	approx(t, out[2], 1.6, 1e-6, "relvol[2]")
}

func TestRelVolumeZeroVolumeDefaults(t *testing.T) {
	out := RelVolume([]float64{0, 0, 0}, 20)
	for i, v := range out {
		if v != 1.0 {
			t.Errorf("relvol[%d] = %.4f with zero volume, want 1.0", i, v)
		}
	}
}
