package indicator

import "math"

// Candle is the OHLC view a pattern predicate needs.
type Candle struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
}

func (c Candle) body() float64      { return math.Abs(c.Close - c.Open) }
func (c Candle) lowerWick() float64 { return math.Min(c.Open, c.Close) - c.Low }
func (c Candle) upperWick() float64 { return c.High - math.Max(c.Open, c.Close) }

// IsBullishRejection reports a long lower wick (>2x body) with the close in
// the upper third of the range.
func IsBullishRejection(c Candle) bool {
	totalRange := c.High - c.Low
	if totalRange < 1e-8 {
		return false
	}
	if c.lowerWick() < c.body()*2 {
		return false
	}
	return (c.Close-c.Low)/totalRange >= 0.67
}

// IsBearishRejection reports a long upper wick (>2x body) with the close in
// the lower third of the range.
func IsBearishRejection(c Candle) bool {
	totalRange := c.High - c.Low
	if totalRange < 1e-8 {
		return false
	}
	if c.upperWick() < c.body()*2 {
		return false
	}
	return (c.Close-c.Low)/totalRange <= 0.33
}

// IsBullishEngulfing reports a green candle whose body fully engulfs the
// previous red candle's body.
func IsBullishEngulfing(prev, curr Candle) bool {
	if prev.Close >= prev.Open {
		return false
	}
	if curr.Close <= curr.Open {
		return false
	}
	return curr.Open < prev.Close && curr.Close > prev.Open
}

// IsBearishEngulfing reports a red candle whose body fully engulfs the
// previous green candle's body.
func IsBearishEngulfing(prev, curr Candle) bool {
	if prev.Close <= prev.Open {
		return false
	}
	if curr.Close >= curr.Open {
		return false
	}
	return curr.Open > prev.Close && curr.Close < prev.Open
}

// IsHammer reports a small body with a long lower wick (>2x body) and a
// negligible upper wick.
func IsHammer(c Candle) bool {
	body := c.body()
	if body < 1e-8 {
		return false
	}
	if c.lowerWick() < body*2 {
		return false
	}
	return c.upperWick() <= body*0.3
}

// IsInvertedHammer reports a small body with a long upper wick (>2x body)
// and a negligible lower wick.
func IsInvertedHammer(c Candle) bool {
	body := c.body()
	if body < 1e-8 {
		return false
	}
	if c.upperWick() < body*2 {
		return false
	}
	return c.lowerWick() <= body*0.3
}
