package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ninja-decision-engine/internal/database"
	"ninja-decision-engine/internal/events"
)

// pick returns the first non-nil value among the aliased keys. The
// terminal's exporter has shipped several field spellings over time, so
// ingest accepts all of them rather than bouncing bars with 422s.
func pick(d map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := d[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func toString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case int:
		return float64(t), true
	}
	return 0, false
}

var timeframeAliases = map[string]string{
	"1": "1m", "1m": "1m", "1min": "1m",
	"5": "5m", "5m": "5m", "5min": "5m",
	"15": "15m", "15m": "15m", "15min": "15m",
	"30": "30m", "30m": "30m", "30min": "30m",
}

// normTimeframe maps the exporter's timeframe spellings ("5", "5min",
// bare minutes as numbers) onto the canonical set.
func normTimeframe(v interface{}) (string, bool) {
	if v == nil {
		return "", false
	}
	var s string
	switch t := v.(type) {
	case float64:
		s = strconv.Itoa(int(t))
	case string:
		s = t
	default:
		return "", false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	tf, ok := timeframeAliases[s]
	return tf, ok
}

// normTimestamp accepts unix seconds, unix milliseconds and the common
// ISO-8601 layouts, always returning UTC.
func normTimestamp(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case float64:
		ts := t
		if ts > 1e12 { // likely milliseconds
			ts /= 1000.0
		}
		sec := int64(ts)
		nsec := int64((ts - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05",
		} {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// handlePostCandles accepts bars in several body shapes: a single
// object, a raw array, or an object wrapping the array under "candles",
// "bars" or "data". Per-bar failures are counted, not fatal.
func (s *Server) handlePostCandles(c *gin.Context) {
	var body interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "count": 0, "failed": 1, "error": "Body must be JSON object or array."})
		return
	}

	var items []interface{}
	top := map[string]interface{}{}
	switch t := body.(type) {
	case []interface{}:
		items = t
	case map[string]interface{}:
		top = t
		switch {
		case isList(t["candles"]):
			items = t["candles"].([]interface{})
		case isList(t["bars"]):
			items = t["bars"].([]interface{})
		case isList(t["data"]):
			items = t["data"].([]interface{})
		default:
			items = []interface{}{t}
		}
	default:
		c.JSON(http.StatusOK, gin.H{"ok": false, "count": 0, "failed": 1, "error": "Body must be JSON object or array."})
		return
	}

	ok := 0
	failed := 0
	var firstError string
	fail := func(msg string) {
		failed++
		if firstError == "" {
			firstError = msg
		}
	}

	for _, raw := range items {
		it, isMap := raw.(map[string]interface{})
		if !isMap {
			fail("Invalid candle element type")
			continue
		}

		candle, missing := parseCandle(it, top)
		if len(missing) > 0 {
			fail("Missing fields: " + strings.Join(missing, ", "))
			continue
		}

		inserted, err := s.repo.InsertCandle(c.Request.Context(), candle)
		if err != nil {
			fail("DB insert failed: " + err.Error())
			continue
		}
		ok++
		if inserted && s.mets != nil {
			s.mets.CandlesIngested.WithLabelValues(candle.Timeframe).Inc()
		}
	}

	if failed > 0 && s.mets != nil {
		s.mets.CandlesRejected.Add(float64(failed))
	}
	if ok > 0 && s.eventBus != nil {
		s.eventBus.Publish(events.Event{
			Type: events.EventCandleStored,
			Data: map[string]interface{}{"count": ok, "failed": failed},
		})
	}

	resp := gin.H{"ok": failed == 0, "count": ok, "failed": failed}
	if firstError != "" {
		resp["error"] = firstError
	}
	c.JSON(http.StatusOK, resp)
}

func isList(v interface{}) bool {
	_, ok := v.([]interface{})
	return ok
}

// parseCandle resolves one bar from aliased fields, falling back to the
// top-level envelope for fields the exporter hoists out of each element.
func parseCandle(it, top map[string]interface{}) (database.Candle, []string) {
	var missing []string

	machineRaw := pick(it, "machineId", "machine_id", "machine", "machineID")
	if machineRaw == nil {
		machineRaw = pick(top, "machineId", "machine_id", "machine", "machineID")
	}
	symbolRaw := pick(it, "symbol", "Symbol")
	if symbolRaw == nil {
		symbolRaw = pick(top, "symbol", "Symbol")
	}
	tfRaw := pick(it, "timeframe", "tf", "Timeframe", "barsPeriod")
	if tfRaw == nil {
		tfRaw = pick(top, "timeframe", "tf", "Timeframe", "barsPeriod")
	}
	tsRaw := pick(it, "ts", "ts_utc", "timestamp", "time", "Time", "barTime")
	if tsRaw == nil {
		tsRaw = pick(top, "ts", "ts_utc", "timestamp", "time", "Time", "barTime")
	}

	var candle database.Candle
	var okField bool

	if candle.MachineID, okField = toString(machineRaw); !okField {
		missing = append(missing, "machineId")
	}
	if candle.Symbol, okField = toString(symbolRaw); !okField {
		missing = append(missing, "symbol")
	}
	if candle.Timeframe, okField = normTimeframe(tfRaw); !okField {
		missing = append(missing, "timeframe")
	}
	if candle.TsUTC, okField = normTimestamp(tsRaw); !okField {
		missing = append(missing, "ts")
	}
	if candle.Open, okField = toFloat(pick(it, "open", "Open")); !okField {
		missing = append(missing, "open")
	}
	if candle.High, okField = toFloat(pick(it, "high", "High")); !okField {
		missing = append(missing, "high")
	}
	if candle.Low, okField = toFloat(pick(it, "low", "Low")); !okField {
		missing = append(missing, "low")
	}
	if candle.Close, okField = toFloat(pick(it, "close", "Close", "last")); !okField {
		missing = append(missing, "close")
	}
	if candle.Volume, okField = toFloat(pick(it, "volume", "Volume", "vol")); !okField {
		missing = append(missing, "volume")
	}

	return candle, missing
}

// handlePoll runs one decision cycle for the calling machine.
func (s *Server) handlePoll(c *gin.Context) {
	machineID := c.Query("machineId")
	if machineID == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "machineId is required"})
		return
	}
	symbol := c.DefaultQuery("symbol", "MBT")

	d := s.eng.Decide(c.Request.Context(), machineID, symbol)

	c.JSON(http.StatusOK, gin.H{
		"mode":       s.eng.Store().Mode(),
		"signal":     d.Signal,
		"stop_price": d.StopPrice,
		"reason":     d.Reason,
		"meta":       d.Meta,
	})
}

// fillRequest is an execution report from the terminal.
type fillRequest struct {
	MachineID     string  `json:"machineId" binding:"required"`
	Symbol        string  `json:"symbol" binding:"required"`
	Side          string  `json:"side" binding:"required"`
	Qty           float64 `json:"qty" binding:"required"`
	Price         float64 `json:"price" binding:"required"`
	TsUTC         string  `json:"ts_utc"`
	Notes         string  `json:"notes"`
	DecisionID    string  `json:"decision_id"`
	BrokerOrderID string  `json:"broker_order_id"`
	OrderType     string  `json:"order_type"`
}

// handlePostFill logs the fill and feeds it to position tracking.
func (s *Server) handlePostFill(c *gin.Context) {
	var req fillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	ts, ok := normTimestamp(req.TsUTC)
	if !ok {
		ts = time.Now().UTC()
	}

	if err := s.repo.InsertFill(c.Request.Context(), database.Fill{
		MachineID:     req.MachineID,
		Symbol:        req.Symbol,
		Side:          strings.ToUpper(req.Side),
		Qty:           req.Qty,
		Price:         req.Price,
		TsUTC:         ts,
		Notes:         req.Notes,
		DecisionID:    req.DecisionID,
		BrokerOrderID: req.BrokerOrderID,
		OrderType:     req.OrderType,
	}); err != nil {
		s.log.Error().Err(err).Msg("Failed to log fill")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to log fill"})
		return
	}

	if err := s.eng.ApplyFill(c.Request.Context(), req.MachineID, req.Symbol,
		strings.ToUpper(req.Side), req.Qty, req.Price, ts, req.Notes); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false, "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// heartbeatRequest is a liveness ping from the terminal.
type heartbeatRequest struct {
	MachineID string `json:"machineId" binding:"required"`
	TsUTC     string `json:"ts_utc"`
}

func (s *Server) handleHeartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	ts, ok := normTimestamp(req.TsUTC)
	if !ok {
		ts = time.Now().UTC()
	}

	if err := s.repo.InsertHeartbeat(c.Request.Context(), database.Heartbeat{
		MachineID: req.MachineID,
		TsUTC:     ts,
	}); err != nil {
		s.log.Error().Err(err).Msg("Failed to log heartbeat")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to log heartbeat"})
		return
	}

	if s.eventBus != nil {
		s.eventBus.Publish(events.Event{
			Type:      events.EventHeartbeat,
			Timestamp: ts,
			Data:      map[string]interface{}{"machine_id": req.MachineID},
		})
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleStatus reports engine state; machineId and symbol are optional
// and add per-machine risk counters and the position snapshot.
func (s *Server) handleStatus(c *gin.Context) {
	machineID := c.Query("machineId")
	symbol := c.Query("symbol")
	c.JSON(http.StatusOK, s.eng.Status(machineID, symbol))
}

// handlePosition serves the last mirrored position snapshot, which
// survives an engine restart.
func (s *Server) handlePosition(c *gin.Context) {
	machineID := c.Query("machineId")
	if machineID == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "machineId is required"})
		return
	}
	symbol := c.DefaultQuery("symbol", "MBT")

	if s.positions == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "position mirror not configured"})
		return
	}
	snap, ok, err := s.positions.LoadPosition(c.Request.Context(), machineID, symbol)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load mirrored position")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to load position"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "no position recorded"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// handleResetKillSwitch re-arms trading for one machine after a manual
// review. It clears the auto kill switch and the loss streak.
func (s *Server) handleResetKillSwitch(c *gin.Context) {
	machineID := c.Query("machineId")
	if machineID == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "machineId is required"})
		return
	}

	s.eng.ResetKillSwitch(machineID)
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Kill switch reset for " + machineID})
}

func limitQuery(c *gin.Context, def, max int) int {
	limit := def
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

func (s *Server) handleRecentFills(c *gin.Context) {
	fills, err := s.repo.RecentFills(c.Request.Context(), limitQuery(c, 50, 500))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to load fills"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"fills": fills})
}

func (s *Server) handleRecentFingerprints(c *gin.Context) {
	fps, err := s.repo.RecentFingerprints(c.Request.Context(), limitQuery(c, 50, 500))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to load fingerprints"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"fingerprints": fps})
}
