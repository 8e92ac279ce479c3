package database

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ninja-decision-engine/internal/engine"
)

func TestPositionMirrorMemoryFallback(t *testing.T) {
	m := NewRedisPositionMirror(nil, zerolog.Nop())
	ctx := context.Background()

	snap := engine.PositionSnapshot{
		Open:       true,
		Side:       engine.SideLong,
		Qty:        2,
		EntryPrice: 1000,
		StopPrice:  950,
		EntryTime:  time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
		SavedAt:    time.Date(2026, 3, 10, 14, 5, 0, 0, time.UTC),
	}

	if err := m.SavePosition(ctx, "m1", "MBT", snap); err != nil {
		t.Fatalf("SavePosition: %v", err)
	}

	got, ok, err := m.LoadPosition(ctx, "m1", "MBT")
	if err != nil {
		t.Fatalf("LoadPosition: %v", err)
	}
	if !ok {
		t.Fatal("expected snapshot to be found")
	}
	if got != snap {
		t.Errorf("snapshot round trip mismatch: got %+v want %+v", got, snap)
	}
}

func TestPositionMirrorMissingKey(t *testing.T) {
	m := NewRedisPositionMirror(nil, zerolog.Nop())

	_, ok, err := m.LoadPosition(context.Background(), "m1", "MBT")
	if err != nil {
		t.Fatalf("LoadPosition: %v", err)
	}
	if ok {
		t.Error("expected no snapshot for unknown key")
	}
}

func TestReconnectCheckWithoutClient(t *testing.T) {
	m := NewRedisPositionMirror(nil, zerolog.Nop())

	// No client to ping; must stay on the in-memory fallback.
	m.ReconnectCheck(context.Background())
	if m.available.Load() {
		t.Error("mirror marked available without a Redis client")
	}
}

func TestPositionMirrorKeysAreScoped(t *testing.T) {
	m := NewRedisPositionMirror(nil, zerolog.Nop())
	ctx := context.Background()

	a := engine.PositionSnapshot{Open: true, Side: engine.SideLong, EntryPrice: 100}
	b := engine.PositionSnapshot{Open: true, Side: engine.SideShort, EntryPrice: 200}

	if err := m.SavePosition(ctx, "m1", "MBT", a); err != nil {
		t.Fatal(err)
	}
	if err := m.SavePosition(ctx, "m2", "MBT", b); err != nil {
		t.Fatal(err)
	}

	got, ok, _ := m.LoadPosition(ctx, "m1", "MBT")
	if !ok || got.Side != engine.SideLong {
		t.Errorf("m1 snapshot overwritten: %+v", got)
	}
	got, ok, _ = m.LoadPosition(ctx, "m2", "MBT")
	if !ok || got.Side != engine.SideShort {
		t.Errorf("m2 snapshot wrong: %+v", got)
	}
}
