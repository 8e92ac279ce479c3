package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ninja-decision-engine/internal/events"
	"ninja-decision-engine/internal/metrics"
	"ninja-decision-engine/internal/strategy"
)

// Decision signal values.
const (
	SignalLong  = "LONG"
	SignalShort = "SHORT"
	SignalFlat  = "FLAT"
)

// Decision is the engine's answer to one poll cycle.
type Decision struct {
	Signal    string                 `json:"signal"`
	StopPrice float64                `json:"stop_price"`
	Reason    string                 `json:"reason"`
	Meta      map[string]interface{} `json:"meta"`
}

// CandleSource loads the four-timeframe bar history for a symbol.
type CandleSource interface {
	LoadFrames(ctx context.Context, symbol string) (strategy.FrameSet, error)
}

// FingerprintSink persists decision audit records.
type FingerprintSink interface {
	SaveFingerprint(ctx context.Context, fp *Fingerprint) error
}

// PositionSnapshot is the externally mirrored view of a position.
type PositionSnapshot struct {
	Open         bool      `json:"open"`
	Side         string    `json:"side"`
	Qty          float64   `json:"qty"`
	EntryPrice   float64   `json:"entry_price"`
	StopPrice    float64   `json:"stop_price"`
	EntryTime    time.Time `json:"entry_time_utc"`
	LastStopLoss time.Time `json:"last_sl_time_utc"`
	SavedAt      time.Time `json:"saved_at"`
}

// PositionMirror pushes position snapshots to an external store so a
// restarted engine (or an operator) can inspect live state.
type PositionMirror interface {
	SavePosition(ctx context.Context, machineID, symbol string, snap PositionSnapshot) error
}

// Config holds the position-management and risk knobs.
type Config struct {
	CooldownSeconds int

	EarlyExitMinBars  int
	EarlyExitPammSoft float64
	EarlyExitPammHard float64
	ReversalPammGate  float64

	EnableAutoKillSwitch bool
	MaxDailyLossUSD      float64
	MaxConsecutiveLosses int
	CatastrophicLossUSD  float64
	PointValueUSD        float64

	// PendingExitGrace bounds how long the engine waits for the
	// terminal's flattening fill after a force-close.
	PendingExitGrace time.Duration
}

// DefaultConfig returns the production risk settings.
func DefaultConfig() Config {
	return Config{
		CooldownSeconds:      60,
		EarlyExitMinBars:     4,
		EarlyExitPammSoft:    90,
		EarlyExitPammHard:    70,
		ReversalPammGate:     60,
		EnableAutoKillSwitch: true,
		MaxDailyLossUSD:      7.50,
		MaxConsecutiveLosses: 3,
		CatastrophicLossUSD:  5.0,
		PointValueUSD:        5.0,
		PendingExitGrace:     5 * time.Minute,
	}
}

// Engine composes candle loading, the entry filter chain, the stop ladder
// and the position state machine into one decision per poll.
type Engine struct {
	store   *StateStore
	candles CandleSource
	strat   *strategy.Strategy
	stops   strategy.StopConfig
	cfg     Config
	log     zerolog.Logger

	sink   FingerprintSink
	bus    *events.EventBus
	mets   *metrics.Metrics
	mirror PositionMirror

	now func() time.Time
}

// New creates an engine. Fingerprint sink, event bus, metrics and the
// position mirror are optional and attached with setters.
func New(store *StateStore, candles CandleSource, strat *strategy.Strategy, stops strategy.StopConfig, cfg Config, log zerolog.Logger) *Engine {
	if cfg.PendingExitGrace <= 0 {
		cfg.PendingExitGrace = 5 * time.Minute
	}
	return &Engine{
		store:   store,
		candles: candles,
		strat:   strat,
		stops:   stops,
		cfg:     cfg,
		log:     log.With().Str("component", "engine").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetFingerprintSink attaches the decision audit store.
func (e *Engine) SetFingerprintSink(s FingerprintSink) { e.sink = s }

// SetEventBus attaches the event bus.
func (e *Engine) SetEventBus(b *events.EventBus) { e.bus = b }

// SetMetrics attaches Prometheus metrics.
func (e *Engine) SetMetrics(m *metrics.Metrics) { e.mets = m }

// SetPositionMirror attaches the external position mirror.
func (e *Engine) SetPositionMirror(m PositionMirror) { e.mirror = m }

// SetClock overrides the time source.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Store exposes the state store to the API layer.
func (e *Engine) Store() *StateStore { return e.store }

// Decide runs one poll cycle for (machineID, symbol) and always returns a
// decision, even when candles cannot be loaded.
func (e *Engine) Decide(ctx context.Context, machineID, symbol string) Decision {
	start := e.now()

	lock := e.store.KeyLock(machineID, symbol)
	lock.Lock()
	d, fr := e.decideLocked(ctx, machineID, symbol)
	lock.Unlock()

	e.finish(machineID, symbol, fr, d, start)
	return d
}

func (e *Engine) decideLocked(ctx context.Context, machineID, symbol string) (Decision, strategy.Frames) {
	now := e.now()
	rc := e.store.Counters(machineID, now)

	if e.store.Kill() || rc.KillTriggered {
		return flatDecision("KILL_SWITCH"), strategy.Frames{}
	}

	raw, err := e.candles.LoadFrames(ctx, symbol)
	if err != nil {
		e.log.Error().Err(err).Str("symbol", symbol).Msg("candle load failed")
		if e.bus != nil {
			e.bus.PublishError("engine", "candle load failed for "+symbol, err)
		}
		return flatDecision("CANDLE_LOAD_FAILED"), strategy.Frames{}
	}
	fr := strategy.PrepareAll(raw)

	pos := e.store.Position(machineID, symbol)

	// A force-close with no confirming fill inside the grace window is
	// abandoned so the machine cannot deadlock on a lost report.
	if pos.Closing && now.Sub(pos.ClosingSince) > e.cfg.PendingExitGrace {
		e.log.Warn().
			Str("machine_id", machineID).
			Str("symbol", symbol).
			Msg("flatten fill never arrived, dropping close marker")
		pos.clearClosing()
	}

	if !pos.Open {
		return e.decideFlat(machineID, symbol, fr, pos, now), fr
	}
	return e.decideOpen(machineID, symbol, fr, pos, rc, now), fr
}

// decideFlat evaluates cooldown and the entry filter chain.
func (e *Engine) decideFlat(machineID, symbol string, fr strategy.Frames, pos *PositionState, now time.Time) Decision {
	if e.cfg.CooldownSeconds > 0 && !pos.LastStopLoss.IsZero() {
		cd := time.Duration(e.cfg.CooldownSeconds) * time.Second
		elapsed := now.Sub(pos.LastStopLoss)
		if elapsed < cd {
			if e.mets != nil {
				e.mets.CooldownBlocks.Inc()
			}
			remaining := int((cd - elapsed).Seconds())
			return flatDecision(fmt.Sprintf("COOLDOWN remaining_s=%d", remaining))
		}
	}

	if pos.Closing {
		return flatDecision(fmt.Sprintf("AWAITING_FLATTEN_FILL side=%s", pos.ClosingFillSide))
	}

	if fr.MinLen() < e.strat.MinBars() {
		return flatDecision("Insufficient data")
	}

	sig := e.strat.Decide(fr)
	pamm := strategy.ComputePAMM(fr)

	if sig.Side == strategy.SideFlat {
		if e.mets != nil {
			e.mets.FilterBlocksTotal.Inc()
		}
		d := flatDecision(sig.Reason)
		d.Meta["pamm"] = pamm
		return d
	}

	dir := 1
	signal := SignalLong
	if sig.Side == strategy.SideSell {
		dir = -1
		signal = SignalShort
	}
	lastClose := fr.F5.Last().Close
	stop := e.stops.InitialStop(lastClose, dir)

	pos.PendingEntry = true
	pos.PendingSide = signal
	pos.SuggestedStop = stop
	pos.PendingSince = now

	return Decision{
		Signal:    signal,
		StopPrice: stop,
		Reason:    sig.Reason,
		Meta: map[string]interface{}{
			"runtime":       true,
			"pamm":          pamm,
			"pending_entry": true,
		},
	}
}

// decideOpen walks the fixed-priority exit rules, then the trailing ladder.
func (e *Engine) decideOpen(machineID, symbol string, fr strategy.Frames, pos *PositionState, rc *RiskCounters, now time.Time) Decision {
	// Short histories produce meaningless PAMM and indicator values; never
	// run the exit rules on them. The position stays untouched.
	if fr.MinLen() < e.strat.MinBars() {
		return flatDecision("Insufficient data")
	}

	price := fr.F5.Last().Close
	dir := pos.Dir()
	pnlPts := (price - pos.EntryPrice) * float64(dir)
	pnlUSD := pnlPts * e.cfg.PointValueUSD * pos.Qty
	pamm := strategy.ComputePAMM(fr)

	if e.cfg.EnableAutoKillSwitch && rc.DailyRealizedUSD <= -math.Abs(e.cfg.MaxDailyLossUSD) {
		e.tripKill(machineID, rc, "DAILY_LOSS")
		return flatDecision(fmt.Sprintf("KILL_SWITCH_AUTO daily_pnl_usd=%.2f", rc.DailyRealizedUSD))
	}

	// 1. Catastrophic single-trade loss
	if e.cfg.EnableAutoKillSwitch && pnlUSD <= -math.Abs(e.cfg.CatastrophicLossUSD) {
		e.tripKill(machineID, rc, "CATASTROPHIC_LOSS")
		e.forceClose(machineID, symbol, pos, now)
		return flatDecision(fmt.Sprintf("CATASTROPHIC_LOSS pnl_usd=%.2f", pnlUSD))
	}

	// 2. Stop hit
	if pos.StopPrice > 0 {
		stop := pos.StopPrice
		hit := (dir == 1 && price <= stop) || (dir == -1 && price >= stop)
		if hit {
			pos.LastStopLoss = now
			e.forceClose(machineID, symbol, pos, now)
			return flatDecision(fmt.Sprintf("STOP_HIT price=%.2f stop=%.2f", price, stop))
		}
	}

	// 3. PAMM early exit, only before the ladder has locked anything in
	if pnlPts < e.stops.Tier1Pnl {
		barsSinceEntry := 0
		if !pos.EntryTime.IsZero() {
			barsSinceEntry = int(now.Sub(pos.EntryTime) / (5 * time.Minute))
		}
		if pamm < e.cfg.EarlyExitPammHard {
			e.forceClose(machineID, symbol, pos, now)
			return flatDecision(fmt.Sprintf("EARLY_EXIT_PAMM pamm=%.1f", pamm))
		}
		if barsSinceEntry >= e.cfg.EarlyExitMinBars && pamm < e.cfg.EarlyExitPammSoft {
			e.forceClose(machineID, symbol, pos, now)
			return flatDecision(fmt.Sprintf("EARLY_EXIT_PAMM pamm=%.1f bars=%d", pamm, barsSinceEntry))
		}
	}

	// 4. Reversal
	if fr.F5.Len() > 0 {
		curDir := strategy.Direction(fr.F5.Last())
		if curDir != dir && pamm >= e.cfg.ReversalPammGate {
			e.forceClose(machineID, symbol, pos, now)
			return flatDecision(fmt.Sprintf("REVERSAL_EXIT pamm=%.1f", pamm))
		}
	}

	// 5, 6. Trailing ladder: tighten or hold
	newStop, trailReason, ok := e.stops.TrailingStop(dir, pos.EntryPrice, pos.StopPrice, price)
	if ok {
		oldStop := pos.StopPrice
		pos.StopPrice = newStop
		pos.LastStopUpdate = now
		if e.mets != nil {
			e.mets.StopUpdatesTotal.Inc()
		}
		if e.bus != nil {
			e.bus.PublishStopUpdated(machineID, symbol, oldStop, newStop, trailReason)
		}
		e.mirrorPosition(machineID, symbol, pos, now)
		return e.holdDecision(pos, pnlPts, pnlUSD, pamm, trailReason)
	}
	return e.holdDecision(pos, pnlPts, pnlUSD, pamm, trailReason)
}

func (e *Engine) holdDecision(pos *PositionState, pnlPts, pnlUSD, pamm float64, trailReason string) Decision {
	return Decision{
		Signal:    pos.Side,
		StopPrice: pos.StopPrice,
		Reason:    "HOLD",
		Meta: map[string]interface{}{
			"runtime":      true,
			"entry_price":  pos.EntryPrice,
			"qty":          pos.Qty,
			"pnl_pts":      pnlPts,
			"pnl_usd_est":  pnlUSD,
			"pamm":         pamm,
			"trail_reason": trailReason,
		},
	}
}

func flatDecision(reason string) Decision {
	return Decision{
		Signal: SignalFlat,
		Reason: reason,
		Meta:   map[string]interface{}{"runtime": true},
	}
}

// forceClose flips the position flat immediately and records the snapshot
// needed to settle P&L when the terminal confirms the flattening fill.
func (e *Engine) forceClose(machineID, symbol string, pos *PositionState, now time.Time) {
	fillSide := "SELL"
	if pos.Dir() == -1 {
		fillSide = "BUY"
	}
	pos.Closing = true
	pos.ClosingFillSide = fillSide
	pos.ClosingSince = now
	pos.ClosedEntryPrice = pos.EntryPrice
	pos.ClosedQty = pos.Qty
	pos.ClosedDir = pos.Dir()

	pos.Open = false
	pos.Side = ""
	pos.Qty = 0
	pos.EntryPrice = 0
	pos.StopPrice = 0
	pos.PendingEntry = false
	pos.PendingSide = ""
	pos.SuggestedStop = 0

	e.mirrorPosition(machineID, symbol, pos, now)
}

func (e *Engine) tripKill(machineID string, rc *RiskCounters, cause string) {
	if rc.KillTriggered {
		return
	}
	rc.KillTriggered = true
	rc.KillCause = cause
	e.log.Warn().Str("machine_id", machineID).Str("cause", cause).Msg("kill switch tripped")
	if e.mets != nil {
		e.mets.KillSwitchTrips.Inc()
	}
	if e.bus != nil {
		e.bus.PublishKillSwitch(machineID, cause, true)
	}
}

// ApplyFill processes an execution report from the trading terminal.
// Fills are authoritative: they open pending entries, settle force-closes,
// and close open positions on the opposite side.
func (e *Engine) ApplyFill(ctx context.Context, machineID, symbol, side string, qty, price float64, ts time.Time, notes string) error {
	if qty <= 0 || price <= 0 {
		return fmt.Errorf("invalid fill: qty=%.4f price=%.4f", qty, price)
	}
	side = strings.ToUpper(side)
	if side != "BUY" && side != "SELL" {
		return fmt.Errorf("invalid fill side %q", side)
	}
	fillDir := 1
	if side == "SELL" {
		fillDir = -1
	}
	now := e.now()
	if ts.IsZero() {
		ts = now
	}

	lock := e.store.KeyLock(machineID, symbol)
	lock.Lock()
	defer lock.Unlock()

	rc := e.store.Counters(machineID, now)
	pos := e.store.Position(machineID, symbol)

	if e.mets != nil {
		e.mets.FillsApplied.Inc()
	}
	if e.bus != nil {
		e.bus.PublishFillApplied(machineID, symbol, side, qty, price)
	}

	switch {
	case pos.Open:
		if fillDir == pos.Dir() {
			e.log.Warn().
				Str("machine_id", machineID).
				Str("symbol", symbol).
				Str("side", side).
				Msg("same-side fill on open position ignored (no add-on support)")
			return nil
		}
		touchedStop := pos.StopPrice > 0 &&
			((pos.Dir() == 1 && price <= pos.StopPrice) || (pos.Dir() == -1 && price >= pos.StopPrice))
		e.settleClose(machineID, symbol, pos, rc, pos.Dir(), pos.EntryPrice, pos.Qty, price, ts, notes, touchedStop)
		pos.Open = false
		pos.Side = ""
		pos.Qty = 0
		pos.EntryPrice = 0
		pos.StopPrice = 0

	case pos.Closing:
		if side != pos.ClosingFillSide {
			e.log.Warn().
				Str("machine_id", machineID).
				Str("symbol", symbol).
				Str("side", side).
				Str("expected", pos.ClosingFillSide).
				Msg("fill does not match outstanding close marker, ignored")
			return nil
		}
		e.settleClose(machineID, symbol, pos, rc, pos.ClosedDir, pos.ClosedEntryPrice, pos.ClosedQty, price, ts, notes, false)
		pos.clearClosing()

	default:
		// Entry: confirms a pending signal, or tracks an unsolicited
		// terminal-initiated position.
		entrySide := SideLong
		if fillDir == -1 {
			entrySide = SideShort
		}
		if pos.PendingEntry && pos.PendingSide != entrySide {
			e.log.Warn().
				Str("machine_id", machineID).
				Str("symbol", symbol).
				Str("pending", pos.PendingSide).
				Str("filled", entrySide).
				Msg("fill side contradicts pending signal, tracking fill side")
		}
		pos.Open = true
		pos.Side = entrySide
		pos.Qty = qty
		pos.EntryPrice = price
		pos.EntryTime = ts
		pos.StopPrice = e.stops.InitialStop(price, fillDir)
		pos.PendingEntry = false
		pos.PendingSide = ""
		pos.SuggestedStop = 0
		if e.bus != nil {
			e.bus.PublishPositionOpened(machineID, symbol, entrySide, qty, price, pos.StopPrice)
		}
	}

	e.mirrorPosition(machineID, symbol, pos, now)
	return nil
}

// settleClose books realized P&L into the machine's risk counters and
// evaluates the kill conditions and cooldown annotations.
func (e *Engine) settleClose(machineID, symbol string, pos *PositionState, rc *RiskCounters, dir int, entry, qty, exitPrice float64, ts time.Time, notes string, touchedStop bool) {
	pnlPts := (exitPrice - entry) * float64(dir)
	realized := pnlPts * e.cfg.PointValueUSD * qty
	rc.DailyRealizedUSD += realized
	if realized < 0 {
		rc.ConsecutiveLosses++
	} else {
		rc.ConsecutiveLosses = 0
	}

	side := SideLong
	if dir == -1 {
		side = SideShort
	}
	e.log.Info().
		Str("machine_id", machineID).
		Str("symbol", symbol).
		Str("side", side).
		Float64("entry", entry).
		Float64("exit", exitPrice).
		Float64("realized_usd", realized).
		Float64("daily_usd", rc.DailyRealizedUSD).
		Int("consecutive_losses", rc.ConsecutiveLosses).
		Msg("position closed")

	if e.mets != nil {
		e.mets.PositionsClosed.Inc()
		e.mets.DailyRealizedUSD.Set(rc.DailyRealizedUSD)
	}
	if e.bus != nil {
		e.bus.PublishPositionClosed(machineID, symbol, side, entry, exitPrice, qty, realized)
	}

	if e.cfg.EnableAutoKillSwitch {
		if rc.DailyRealizedUSD <= -math.Abs(e.cfg.MaxDailyLossUSD) {
			e.tripKill(machineID, rc, "DAILY_LOSS")
		}
		if e.cfg.MaxConsecutiveLosses > 0 && rc.ConsecutiveLosses >= e.cfg.MaxConsecutiveLosses {
			e.tripKill(machineID, rc, "CONSECUTIVE_LOSSES")
		}
		if realized <= -math.Abs(e.cfg.CatastrophicLossUSD) {
			e.tripKill(machineID, rc, "CATASTROPHIC_LOSS")
		}
	}

	if touchedStop || hasCooldownAnnotation(notes) {
		pos.LastStopLoss = ts
	}
}

func hasCooldownAnnotation(notes string) bool {
	n := strings.ToLower(notes)
	for _, marker := range []string{"stop", "manual", "timeout", "reversal"} {
		if strings.Contains(n, marker) {
			return true
		}
	}
	return false
}

// ResetKillSwitch clears the machine's kill flag and loss streak.
func (e *Engine) ResetKillSwitch(machineID string) {
	e.store.ResetKill(machineID, e.now())
	e.log.Info().Str("machine_id", machineID).Msg("kill switch reset")
	if e.bus != nil {
		e.bus.PublishKillSwitch(machineID, "MANUAL_RESET", false)
	}
}

// Status snapshots global and, when machineID/symbol are given, per-machine
// and per-position state.
func (e *Engine) Status(machineID, symbol string) map[string]interface{} {
	now := e.now()
	lastSignal, lastStop, lastReason := e.store.LastDecision()
	out := map[string]interface{}{
		"mode":            e.store.Mode(),
		"kill_switch":     e.store.Kill(),
		"last_signal":     lastSignal,
		"last_stop_price": lastStop,
		"last_reason":     lastReason,
	}
	if machineID != "" {
		rc := e.store.Counters(machineID, now)
		out["daily_realized_pnl_usd"] = rc.DailyRealizedUSD
		out["consecutive_losses"] = rc.ConsecutiveLosses
		out["kill_triggered"] = rc.KillTriggered
		out["kill_cause"] = rc.KillCause
	}
	if machineID != "" && symbol != "" {
		lock := e.store.KeyLock(machineID, symbol)
		lock.Lock()
		pos := e.store.Position(machineID, symbol)
		out["position"] = map[string]interface{}{
			"open":          pos.Open,
			"side":          pos.Side,
			"qty":           pos.Qty,
			"entry_price":   pos.EntryPrice,
			"stop_price":    pos.StopPrice,
			"pending_entry": pos.PendingEntry,
			"closing":       pos.Closing,
		}
		lock.Unlock()
	}
	return out
}

// finish runs the per-decision instrumentation outside the key lock.
func (e *Engine) finish(machineID, symbol string, fr strategy.Frames, d Decision, start time.Time) {
	e.store.SetDecision(d.Signal, d.StopPrice, d.Reason)
	if e.mets != nil {
		e.mets.DecisionsTotal.WithLabelValues(d.Signal).Inc()
		e.mets.DecisionDur.Observe(e.now().Sub(start).Seconds())
		if pamm, ok := d.Meta["pamm"].(float64); ok {
			e.mets.PammScore.Set(pamm)
		}
	}
	if e.bus != nil {
		e.bus.PublishDecision(machineID, symbol, d.Signal, d.StopPrice, d.Reason, d.Meta)
	}
	if e.sink != nil {
		fp := BuildFingerprint(machineID, symbol, fr, d, e.store.Mode(), e.now())
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.sink.SaveFingerprint(ctx, fp); err != nil {
				e.log.Error().Err(err).Str("decision_id", fp.DecisionID).Msg("fingerprint save failed")
			}
		}()
	}

	e.log.Debug().
		Str("machine_id", machineID).
		Str("symbol", symbol).
		Str("signal", d.Signal).
		Float64("stop", d.StopPrice).
		Str("reason", d.Reason).
		Msg("decision")
}

func (e *Engine) mirrorPosition(machineID, symbol string, pos *PositionState, now time.Time) {
	if e.mirror == nil {
		return
	}
	snap := PositionSnapshot{
		Open:         pos.Open,
		Side:         pos.Side,
		Qty:          pos.Qty,
		EntryPrice:   pos.EntryPrice,
		StopPrice:    pos.StopPrice,
		EntryTime:    pos.EntryTime,
		LastStopLoss: pos.LastStopLoss,
		SavedAt:      now,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := e.mirror.SavePosition(ctx, machineID, symbol, snap); err != nil {
			e.log.Debug().Err(err).Msg("position mirror save failed")
		}
	}()
}
