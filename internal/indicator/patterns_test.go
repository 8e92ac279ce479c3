package indicator

import "testing"

func TestBullishRejection(t *testing.T) {
	tests := []struct {
		name   string
		candle Candle
		want   bool
	}{
		{"long lower wick closing high", Candle{Open: 99, High: 100.5, Low: 90, Close: 100}, true},
		{"wick too short", Candle{Open: 95, High: 100.5, Low: 90, Close: 100}, false},
		{"closes too low in range", Candle{Open: 94.5, High: 100, Low: 90, Close: 94}, false},
		{"degenerate zero range", Candle{Open: 100, High: 100, Low: 100, Close: 100}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBullishRejection(tt.candle); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBearishRejectionMirrors(t *testing.T) {
	c := Candle{Open: 91, High: 100, Low: 89.5, Close: 90}
	if !IsBearishRejection(c) {
		t.Error("expected bearish rejection on long upper wick closing near low")
	}
	if IsBullishRejection(c) {
		t.Error("bearish rejection candle must not read as bullish")
	}
}

func TestEngulfing(t *testing.T) {
	redThenGreen := []Candle{
		{Open: 100, High: 101, Low: 98, Close: 99},
		{Open: 98.5, High: 102, Low: 98, Close: 101},
	}
	if !IsBullishEngulfing(redThenGreen[0], redThenGreen[1]) {
		t.Error("expected bullish engulfing")
	}
	if IsBearishEngulfing(redThenGreen[0], redThenGreen[1]) {
		t.Error("bullish pair must not read as bearish engulfing")
	}

	greenThenRed := []Candle{
		{Open: 99, High: 101, Low: 98, Close: 100},
		{Open: 100.5, High: 101, Low: 97, Close: 98.5},
	}
	if !IsBearishEngulfing(greenThenRed[0], greenThenRed[1]) {
		t.Error("expected bearish engulfing")
	}

	// body only touches, does not engulf
	touching := []Candle{
		{Open: 100, High: 101, Low: 98, Close: 99},
		{Open: 99, High: 102, Low: 98, Close: 101},
	}
	if IsBullishEngulfing(touching[0], touching[1]) {
		t.Error("touching bodies must not count as engulfing")
	}
}

func TestHammer(t *testing.T) {
	hammer := Candle{Open: 99.5, High: 100.1, Low: 95, Close: 100}
	if !IsHammer(hammer) {
		t.Error("expected hammer")
	}
	if IsInvertedHammer(hammer) {
		t.Error("hammer must not read as inverted hammer")
	}

	inverted := Candle{Open: 95.5, High: 100, Low: 94.9, Close: 95}
	if !IsInvertedHammer(inverted) {
		t.Error("expected inverted hammer")
	}

	doji := Candle{Open: 100, High: 101, Low: 99, Close: 100}
	if IsHammer(doji) || IsInvertedHammer(doji) {
		t.Error("zero-body doji must not match hammer patterns")
	}
}
