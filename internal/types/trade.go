package types

import (
	"time"
)

// Position is an open, unrealized holding in one symbol.
type Position struct {
	Symbol     string    `json:"symbol" yaml:"symbol"`
	EntryDate  time.Time `json:"entry_date" yaml:"entry_date"`
	EntryPrice float64   `json:"entry_price" yaml:"entry_price"`
	Size       float64   `json:"size" yaml:"size"`
}

// Trade is a realized, closed round trip in one symbol.
type Trade struct {
	Symbol     string    `json:"symbol" yaml:"symbol"`
	EntryDate  time.Time `json:"entry_date" yaml:"entry_date"`
	EntryPrice float64   `json:"entry_price" yaml:"entry_price"`
	ExitDate   time.Time `json:"exit_date" yaml:"exit_date"`
	ExitPrice  float64   `json:"exit_price" yaml:"exit_price"`
	Size       float64   `json:"size" yaml:"size"`
	// ReturnPct is (exit - entry) / entry * 100.
	ReturnPct float64 `json:"return_pct" yaml:"return_pct"`
	// PnL is (exit - entry) * size.
	PnL float64 `json:"pnl" yaml:"pnl"`
}

// IsWin reports whether the trade closed with a positive return.
func (t Trade) IsWin() bool {
	return t.ReturnPct > 0
}

// HoldingPeriod is the time between entry and exit.
func (t Trade) HoldingPeriod() time.Duration {
	return t.ExitDate.Sub(t.EntryDate)
}
