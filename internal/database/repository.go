package database

import (
	"context"
	"fmt"

	"ninja-decision-engine/internal/engine"
	"ninja-decision-engine/internal/strategy"
)

// frameDepth is how many bars per timeframe feed indicator preparation.
const frameDepth = 600

// Repository provides data access for candles, fills, heartbeats and
// decision fingerprints.
type Repository struct {
	db *DB
}

// NewRepository creates a repository over the connection pool.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// InsertCandle stores one bar; resent bars are deduped on
// (symbol, timeframe, ts_utc) and reported as not inserted.
func (r *Repository) InsertCandle(ctx context.Context, c Candle) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		INSERT INTO candles (machine_id, symbol, timeframe, ts_utc, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, timeframe, ts_utc) DO NOTHING`,
		c.MachineID, c.Symbol, c.Timeframe, c.TsUTC, c.Open, c.High, c.Low, c.Close, c.Volume,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert candle: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RecentBars returns up to limit bars for one symbol/timeframe, oldest
// first, ready for indicator preparation.
func (r *Repository) RecentBars(ctx context.Context, symbol, timeframe string, limit int) ([]strategy.Bar, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT ts_utc, open, high, low, close, volume
		FROM candles
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY ts_utc DESC
		LIMIT $3`,
		symbol, timeframe, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var bars []strategy.Bar
	for rows.Next() {
		var b strategy.Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// newest-first from the query, reversed to chronological order
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// LoadFrames loads the bar history for every evaluated timeframe. Missing
// timeframes come back as empty slices, not errors.
func (r *Repository) LoadFrames(ctx context.Context, symbol string) (strategy.FrameSet, error) {
	fs := make(strategy.FrameSet, len(strategy.Timeframes))
	for _, tf := range strategy.Timeframes {
		bars, err := r.RecentBars(ctx, symbol, tf, frameDepth)
		if err != nil {
			return nil, err
		}
		fs[tf] = bars
	}
	return fs, nil
}

// InsertFill logs an execution report.
func (r *Repository) InsertFill(ctx context.Context, f Fill) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO fills (machine_id, symbol, side, qty, price, ts_utc, notes, decision_id, broker_order_id, order_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		f.MachineID, f.Symbol, f.Side, f.Qty, f.Price, f.TsUTC, f.Notes, f.DecisionID, f.BrokerOrderID, f.OrderType,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fill: %w", err)
	}
	return nil
}

// RecentFills returns the latest execution reports, newest first.
func (r *Repository) RecentFills(ctx context.Context, limit int) ([]Fill, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, machine_id, symbol, side, qty, price, ts_utc,
		       COALESCE(notes, ''), COALESCE(decision_id, ''),
		       COALESCE(broker_order_id, ''), COALESCE(order_type, '')
		FROM fills ORDER BY id DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query fills: %w", err)
	}
	defer rows.Close()

	var fills []Fill
	for rows.Next() {
		var f Fill
		if err := rows.Scan(&f.ID, &f.MachineID, &f.Symbol, &f.Side, &f.Qty, &f.Price,
			&f.TsUTC, &f.Notes, &f.DecisionID, &f.BrokerOrderID, &f.OrderType); err != nil {
			return nil, fmt.Errorf("failed to scan fill: %w", err)
		}
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// InsertHeartbeat records a terminal liveness ping.
func (r *Repository) InsertHeartbeat(ctx context.Context, h Heartbeat) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO heartbeats (machine_id, ts_utc) VALUES ($1, $2)`,
		h.MachineID, h.TsUTC,
	)
	if err != nil {
		return fmt.Errorf("failed to insert heartbeat: %w", err)
	}
	return nil
}

// SaveFingerprint persists a decision audit record.
func (r *Repository) SaveFingerprint(ctx context.Context, fp *engine.Fingerprint) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO fingerprints (
			decision_id, ts_utc, machine_id, symbol, signal, stop_price, reason,
			pamm_score, direction, ema9, ema21, ema50, rsi14, macdh, adx,
			relvol, vwap, atr, close, mode, timeframe
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		fp.DecisionID, fp.TsUTC, fp.MachineID, fp.Symbol, fp.Signal, fp.StopPrice, fp.Reason,
		fp.PammScore, fp.Direction, fp.Ema9, fp.Ema21, fp.Ema50, fp.Rsi14, fp.MacdHist, fp.ADX,
		fp.RelVol, fp.Vwap, fp.ATR, fp.Close, fp.Mode, fp.Timeframe,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fingerprint: %w", err)
	}
	return nil
}

// RecentFingerprints returns the latest decision audit records, newest first.
func (r *Repository) RecentFingerprints(ctx context.Context, limit int) ([]engine.Fingerprint, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT decision_id, ts_utc, machine_id, symbol, signal, stop_price, reason,
		       COALESCE(pamm_score, 0), COALESCE(direction, 0),
		       COALESCE(ema9, 0), COALESCE(ema21, 0), COALESCE(ema50, 0),
		       COALESCE(rsi14, 0), COALESCE(macdh, 0), COALESCE(adx, 0),
		       COALESCE(relvol, 0), COALESCE(vwap, 0), COALESCE(atr, 0),
		       COALESCE(close, 0), COALESCE(mode, ''), COALESCE(timeframe, '')
		FROM fingerprints ORDER BY id DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %w", err)
	}
	defer rows.Close()

	var fps []engine.Fingerprint
	for rows.Next() {
		var fp engine.Fingerprint
		if err := rows.Scan(&fp.DecisionID, &fp.TsUTC, &fp.MachineID, &fp.Symbol, &fp.Signal,
			&fp.StopPrice, &fp.Reason, &fp.PammScore, &fp.Direction,
			&fp.Ema9, &fp.Ema21, &fp.Ema50, &fp.Rsi14, &fp.MacdHist, &fp.ADX,
			&fp.RelVol, &fp.Vwap, &fp.ATR, &fp.Close, &fp.Mode, &fp.Timeframe); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		fps = append(fps, fp)
	}
	return fps, rows.Err()
}
