package database

import "time"

// Candle is one stored OHLCV bar as received from the trading terminal.
type Candle struct {
	ID        int64     `json:"id"`
	MachineID string    `json:"machine_id"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	TsUTC     time.Time `json:"ts_utc"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Fill is one execution report logged for audit.
type Fill struct {
	ID            int64     `json:"id"`
	MachineID     string    `json:"machine_id"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	Qty           float64   `json:"qty"`
	Price         float64   `json:"price"`
	TsUTC         time.Time `json:"ts_utc"`
	Notes         string    `json:"notes"`
	DecisionID    string    `json:"decision_id"`
	BrokerOrderID string    `json:"broker_order_id"`
	OrderType     string    `json:"order_type"`
}

// Heartbeat is a liveness ping from a terminal machine.
type Heartbeat struct {
	ID        int64     `json:"id"`
	MachineID string    `json:"machine_id"`
	TsUTC     time.Time `json:"ts_utc"`
}
