package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ninja-decision-engine/internal/engine"
)

func TestNormTimeframe(t *testing.T) {
	cases := []struct {
		name  string
		in    interface{}
		want  string
		valid bool
	}{
		{"canonical", "5m", "5m", true},
		{"bare minutes", "15", "15m", true},
		{"min suffix", "30min", "30m", true},
		{"numeric", float64(1), "1m", true},
		{"uppercase", "5M", "5m", true},
		{"padded", " 5m ", "5m", true},
		{"unsupported", "4h", "", false},
		{"nil", nil, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := normTimeframe(tc.in)
			if ok != tc.valid {
				t.Fatalf("normTimeframe(%v) valid = %v, want %v", tc.in, ok, tc.valid)
			}
			if got != tc.want {
				t.Errorf("normTimeframe(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormTimestamp(t *testing.T) {
	want := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		in   interface{}
	}{
		{"unix seconds", float64(want.Unix())},
		{"unix milliseconds", float64(want.UnixMilli())},
		{"rfc3339", "2025-06-01T12:30:00Z"},
		{"rfc3339 offset", "2025-06-01T14:30:00+02:00"},
		{"no zone", "2025-06-01T12:30:00"},
		{"space separated", "2025-06-01 12:30:00"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := normTimestamp(tc.in)
			if !ok {
				t.Fatalf("normTimestamp(%v) failed", tc.in)
			}
			if !got.Equal(want) {
				t.Errorf("normTimestamp(%v) = %v, want %v", tc.in, got, want)
			}
		})
	}

	if _, ok := normTimestamp("not a time"); ok {
		t.Error("expected garbage timestamp to be rejected")
	}
	if _, ok := normTimestamp(nil); ok {
		t.Error("expected nil timestamp to be rejected")
	}
}

func TestParseCandleAliases(t *testing.T) {
	it := map[string]interface{}{
		"machine_id": "m1",
		"Symbol":     "MBT",
		"tf":         "5",
		"barTime":    "2025-06-01T12:30:00Z",
		"Open":       float64(100),
		"High":       float64(101),
		"Low":        float64(99),
		"last":       float64(100.5),
		"vol":        float64(42),
	}

	candle, missing := parseCandle(it, map[string]interface{}{})
	if len(missing) > 0 {
		t.Fatalf("unexpected missing fields: %v", missing)
	}
	if candle.MachineID != "m1" || candle.Symbol != "MBT" || candle.Timeframe != "5m" {
		t.Errorf("identity fields wrong: %+v", candle)
	}
	if candle.Close != 100.5 || candle.Volume != 42 {
		t.Errorf("price fields wrong: %+v", candle)
	}
	if !candle.TsUTC.Equal(time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)) {
		t.Errorf("timestamp wrong: %v", candle.TsUTC)
	}
}

func TestParseCandleTopLevelFallback(t *testing.T) {
	top := map[string]interface{}{
		"machineId": "m1",
		"symbol":    "MBT",
		"timeframe": "5m",
	}
	it := map[string]interface{}{
		"ts":     float64(1748780000),
		"open":   float64(1),
		"high":   float64(2),
		"low":    float64(0.5),
		"close":  float64(1.5),
		"volume": float64(10),
	}

	candle, missing := parseCandle(it, top)
	if len(missing) > 0 {
		t.Fatalf("unexpected missing fields: %v", missing)
	}
	if candle.MachineID != "m1" || candle.Timeframe != "5m" {
		t.Errorf("top-level fallback not applied: %+v", candle)
	}
}

func TestParseCandleMissingFields(t *testing.T) {
	it := map[string]interface{}{
		"machineId": "m1",
		"symbol":    "MBT",
		"timeframe": "5m",
		"ts":        "2025-06-01T12:30:00Z",
		"open":      float64(1),
		// high, low, close, volume absent
	}

	_, missing := parseCandle(it, map[string]interface{}{})
	if len(missing) != 4 {
		t.Fatalf("expected 4 missing fields, got %v", missing)
	}
}

func TestRequireAPIKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(key string) *gin.Engine {
		s := &Server{config: ServerConfig{APIKey: key}}
		r := gin.New()
		r.GET("/api/status", s.requireAPIKey(), func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
		return r
	}

	t.Run("missing key rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		newRouter("secret").ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		req.Header.Set("X-API-KEY", "nope")
		newRouter("secret").ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("correct key accepted", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		req.Header.Set("X-API-KEY", "secret")
		newRouter("secret").ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
	})

	t.Run("empty configured key disables auth", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		newRouter("").ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
	})
}

type stubPositionReader struct {
	snap engine.PositionSnapshot
	ok   bool
	err  error
}

func (s *stubPositionReader) LoadPosition(_ context.Context, _, _ string) (engine.PositionSnapshot, bool, error) {
	return s.snap, s.ok, s.err
}

func TestHandlePosition(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(reader PositionReader) *gin.Engine {
		s := &Server{positions: reader, log: zerolog.Nop()}
		r := gin.New()
		r.GET("/api/position", s.handlePosition)
		return r
	}

	t.Run("missing machineId rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/position", nil)
		newRouter(&stubPositionReader{}).ServeHTTP(w, req)
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", w.Code)
		}
	})

	t.Run("snapshot served", func(t *testing.T) {
		reader := &stubPositionReader{
			snap: engine.PositionSnapshot{Open: true, Side: engine.SideLong, EntryPrice: 1000, StopPrice: 950},
			ok:   true,
		}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/position?machineId=m1", nil)
		newRouter(reader).ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var got engine.PositionSnapshot
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if !got.Open || got.Side != engine.SideLong || got.StopPrice != 950 {
			t.Errorf("snapshot = %+v", got)
		}
	})

	t.Run("unknown machine 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/position?machineId=m9", nil)
		newRouter(&stubPositionReader{}).ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})

	t.Run("no mirror configured 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/position?machineId=m1", nil)
		newRouter(nil).ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})
}
