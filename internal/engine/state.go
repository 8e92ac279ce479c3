package engine

import (
	"fmt"
	"sync"
	"time"
)

// Position side values as surfaced in decisions.
const (
	SideLong  = "LONG"
	SideShort = "SHORT"
)

// PositionState tracks one position per (machine, symbol).
type PositionState struct {
	Open       bool
	Side       string // LONG | SHORT
	Qty        float64
	EntryPrice float64
	StopPrice  float64
	EntryTime  time.Time

	// LastStopUpdate is when the trailing ladder last tightened the stop.
	LastStopUpdate time.Time
	// LastStopLoss starts the entry cooldown window.
	LastStopLoss time.Time

	// PendingEntry: a signal has been emitted and the terminal has not
	// yet confirmed the fill.
	PendingEntry  bool
	PendingSide   string
	SuggestedStop float64
	PendingSince  time.Time

	// Closing: the engine force-closed the position and is waiting for
	// the terminal's flattening fill. The snapshot below settles P&L
	// when that fill arrives.
	Closing          bool
	ClosingFillSide  string // BUY | SELL expected from the terminal
	ClosingSince     time.Time
	ClosedEntryPrice float64
	ClosedQty        float64
	ClosedDir        int
}

// Dir returns +1 for long, -1 for short positions.
func (p *PositionState) Dir() int {
	if p.Side == SideShort {
		return -1
	}
	return 1
}

func (p *PositionState) clearClosing() {
	p.Closing = false
	p.ClosingFillSide = ""
	p.ClosingSince = time.Time{}
	p.ClosedEntryPrice = 0
	p.ClosedQty = 0
	p.ClosedDir = 0
}

// RiskCounters accumulates realized results per machine; they reset at
// UTC midnight (lazily, on next access). The kill flag survives rollover
// and only clears on manual reset.
type RiskCounters struct {
	Day               string // YYYY-MM-DD UTC
	DailyRealizedUSD  float64
	ConsecutiveLosses int
	KillTriggered     bool
	KillCause         string
}

// StateStore is the in-memory home of all position and risk state, keyed
// by (machine, symbol) for positions and machine for counters.
type StateStore struct {
	mu        sync.Mutex
	positions map[string]*PositionState
	counters  map[string]*RiskCounters
	keyLocks  map[string]*sync.Mutex

	killSwitch bool
	mode       string

	lastSignal string
	lastStop   float64
	lastReason string
}

// NewStateStore returns an empty store in PAPER mode.
func NewStateStore() *StateStore {
	return &StateStore{
		positions: make(map[string]*PositionState),
		counters:  make(map[string]*RiskCounters),
		keyLocks:  make(map[string]*sync.Mutex),
		mode:      "PAPER",
	}
}

func posKey(machineID, symbol string) string {
	return fmt.Sprintf("%s:%s", machineID, symbol)
}

// KeyLock returns the mutex serializing decisions and fills for one
// (machine, symbol) pair.
func (s *StateStore) KeyLock(machineID, symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := posKey(machineID, symbol)
	if _, ok := s.keyLocks[k]; !ok {
		s.keyLocks[k] = &sync.Mutex{}
	}
	return s.keyLocks[k]
}

// Position returns the tracked position, creating an empty one on first
// access. Callers must hold the corresponding KeyLock while mutating it.
func (s *StateStore) Position(machineID, symbol string) *PositionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := posKey(machineID, symbol)
	if _, ok := s.positions[k]; !ok {
		s.positions[k] = &PositionState{}
	}
	return s.positions[k]
}

// Counters returns the machine's risk counters for the UTC day of now,
// zeroing realized P&L and the loss streak when the day has rolled over.
func (s *StateStore) Counters(machineID string, now time.Time) *RiskCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	day := now.UTC().Format("2006-01-02")
	rc, ok := s.counters[machineID]
	if !ok {
		rc = &RiskCounters{Day: day}
		s.counters[machineID] = rc
		return rc
	}
	if rc.Day != day {
		rc.Day = day
		rc.DailyRealizedUSD = 0
		rc.ConsecutiveLosses = 0
		// KillTriggered intentionally survives the rollover
	}
	return rc
}

// ResetKill clears the machine's kill flag and loss streak.
func (s *StateStore) ResetKill(machineID string, now time.Time) {
	rc := s.Counters(machineID, now)
	s.mu.Lock()
	defer s.mu.Unlock()
	rc.KillTriggered = false
	rc.KillCause = ""
	rc.ConsecutiveLosses = 0
}

// SetKill engages or releases the global kill switch.
func (s *StateStore) SetKill(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killSwitch = enabled
}

// Kill reports the global kill switch.
func (s *StateStore) Kill() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.killSwitch
}

// SetMode sets the engine mode (PAPER | LIVE).
func (s *StateStore) SetMode(mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

// Mode returns the engine mode.
func (s *StateStore) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetDecision records the most recent decision for status reporting.
func (s *StateStore) SetDecision(signal string, stop float64, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSignal = signal
	s.lastStop = stop
	s.lastReason = reason
}

// LastDecision returns the most recently recorded decision.
func (s *StateStore) LastDecision() (signal string, stop float64, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSignal, s.lastStop, s.lastReason
}
