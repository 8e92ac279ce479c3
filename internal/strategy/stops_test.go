package strategy

import (
	"strings"
	"testing"
)

func TestInitialStop(t *testing.T) {
	cfg := DefaultStopConfig()
	if got := cfg.InitialStop(1000, 1); got != 950 {
		t.Errorf("long initial stop = %.2f, want 950", got)
	}
	if got := cfg.InitialStop(1000, -1); got != 1050 {
		t.Errorf("short initial stop = %.2f, want 1050", got)
	}
}

func TestTrailingLadderTiers(t *testing.T) {
	cfg := DefaultStopConfig()
	tests := []struct {
		name  string
		price float64
		want  float64
	}{
		{"tier1 at +160", 1160, 1050},
		{"tier2 at +260", 1260, 1100},
		{"tier3 trails at +400", 1400, 1250},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason, ok := cfg.TrailingStop(1, 1000, 950, tt.price)
			if !ok {
				t.Fatalf("expected stop update, got skip: %s", reason)
			}
			if got != tt.want {
				t.Errorf("stop = %.2f, want %.2f", got, tt.want)
			}
		})
	}
}

func TestTrailingLadderShortMirror(t *testing.T) {
	cfg := DefaultStopConfig()
	got, _, ok := cfg.TrailingStop(-1, 1000, 1050, 840) // +160 pts short
	if !ok || got != 950 {
		t.Errorf("short tier1 stop = %.2f ok=%v, want 950", got, ok)
	}
	got, _, ok = cfg.TrailingStop(-1, 1000, 950, 600) // +400 pts short
	if !ok || got != 750 {
		t.Errorf("short tier3 stop = %.2f ok=%v, want 750", got, ok)
	}
}

func TestTrailingBelowActivation(t *testing.T) {
	cfg := DefaultStopConfig()
	_, reason, ok := cfg.TrailingStop(1, 1000, 950, 1100) // +100 pts
	if ok {
		t.Fatal("no trail expected below first activation threshold")
	}
	if !strings.HasPrefix(reason, "NO_TRAIL_YET") {
		t.Errorf("reason = %q", reason)
	}
}

func TestTrailingNeverLoosens(t *testing.T) {
	cfg := DefaultStopConfig()
	// stop already above tier1 lock; candidate clamps to current and the
	// zero-size move is skipped
	_, reason, ok := cfg.TrailingStop(1, 1000, 1100, 1160)
	if ok {
		t.Fatalf("stop must not loosen, got update: %s", reason)
	}
	if !strings.Contains(reason, "small_move") {
		t.Errorf("reason = %q", reason)
	}

	// long stop sequence is non-decreasing across tiers
	stop := 950.0
	for _, price := range []float64{1160, 1260, 1400, 1350} {
		if next, _, ok := cfg.TrailingStop(1, 1000, stop, price); ok {
			if next < stop {
				t.Fatalf("stop decreased %.2f -> %.2f at price %.2f", stop, next, price)
			}
			stop = next
		}
	}
}

func TestTrailingMinMoveSkip(t *testing.T) {
	cfg := DefaultStopConfig()
	// current stop within MinMovePts of the tier1 lock
	_, reason, ok := cfg.TrailingStop(1, 1000, 1049.9, 1160)
	if ok {
		t.Fatal("sub-threshold move must be skipped")
	}
	if !strings.Contains(reason, "TRAIL_L1_SKIP small_move") {
		t.Errorf("reason = %q", reason)
	}
}

func TestTrailingMaxMoveClamp(t *testing.T) {
	cfg := DefaultStopConfig()
	cfg.MaxMovePts = 100
	_, reason, ok := cfg.TrailingStop(1, 1000, 800, 1400) // candidate 1250, move 450
	if ok {
		t.Fatal("oversized move must be rejected")
	}
	if !strings.Contains(reason, "huge_move") {
		t.Errorf("reason = %q", reason)
	}
}

func TestTrailingFreshPositionNoClamp(t *testing.T) {
	cfg := DefaultStopConfig()
	// no stored stop yet: candidate is taken as-is
	got, _, ok := cfg.TrailingStop(1, 1000, 0, 1160)
	if !ok || got != 1050 {
		t.Errorf("stop = %.2f ok=%v, want 1050", got, ok)
	}
}
