package strategy

import (
	"fmt"
	"math"
)

// StopConfig holds the fixed initial stop distance and the trailing
// ladder breakpoints, all in points.
type StopConfig struct {
	// StopPoints is the fixed initial stop distance from entry.
	StopPoints float64

	// Tier1Pnl activates the ladder; the stop is locked Tier1LockPts
	// past entry while profit stays inside [Tier1Pnl, Tier2Pnl).
	Tier1Pnl     float64
	Tier1LockPts float64
	// Tier2Pnl locks the stop Tier2LockPts past entry.
	Tier2Pnl     float64
	Tier2LockPts float64
	// Tier3Pnl switches to a continuous trail TrailPts behind price.
	Tier3Pnl float64
	TrailPts float64

	// MinMovePts rejects chatter updates smaller than this.
	MinMovePts float64
	// MaxMovePts rejects single updates larger than this (glitch guard).
	MaxMovePts float64
}

// DefaultStopConfig returns the production ladder.
func DefaultStopConfig() StopConfig {
	return StopConfig{
		StopPoints:   50,
		Tier1Pnl:     150,
		Tier1LockPts: 50,
		Tier2Pnl:     200,
		Tier2LockPts: 100,
		Tier3Pnl:     300,
		TrailPts:     150,
		MinMovePts:   0.25,
		MaxMovePts:   2000,
	}
}

// InitialStop places the fixed-distance protective stop on the losing
// side of entry. dir is +1 for long, -1 for short.
func (c StopConfig) InitialStop(entry float64, dir int) float64 {
	return entry - c.StopPoints*float64(dir)
}

// TrailingStop computes the ladder stop for an open position. It returns
// the candidate stop, the ladder reason, and whether the stop should be
// updated. The stop only ever tightens: up for longs, down for shorts.
func (c StopConfig) TrailingStop(dir int, entry, currentStop, price float64) (float64, string, bool) {
	pnlPts := (price - entry) * float64(dir)

	if pnlPts < c.Tier1Pnl {
		return 0, fmt.Sprintf("NO_TRAIL_YET pnl_pts=%.2f", pnlPts), false
	}

	var candidate float64
	var lvl string
	switch {
	case pnlPts < c.Tier2Pnl:
		candidate = entry + c.Tier1LockPts*float64(dir)
		lvl = "L1"
	case pnlPts < c.Tier3Pnl:
		candidate = entry + c.Tier2LockPts*float64(dir)
		lvl = "L2"
	default:
		candidate = price - c.TrailPts*float64(dir)
		lvl = "L3"
	}

	if currentStop > 0 {
		if dir == 1 {
			candidate = math.Max(candidate, currentStop)
		} else {
			candidate = math.Min(candidate, currentStop)
		}
		move := math.Abs(candidate - currentStop)
		if move < c.MinMovePts {
			return 0, fmt.Sprintf("TRAIL_%s_SKIP small_move=%.4f", lvl, move), false
		}
		if move > c.MaxMovePts {
			return 0, fmt.Sprintf("TRAIL_%s_SKIP huge_move=%.2f", lvl, move), false
		}
	}

	return candidate, fmt.Sprintf("TRAIL_%s pnl_pts=%.2f", lvl, pnlPts), true
}
