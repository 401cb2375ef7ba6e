package domain

import "time"

// LogicalPosition is one buy fill tracked with its own entry price and exit
// levels. The brokerage aggregates every tranche of a symbol into a single
// physical position; the book keeps them apart so each entry carries its own
// stop and attribution.
type LogicalPosition struct {
	ID         string
	Symbol     string
	Shares     float64
	EntryPrice float64
	EntryTime  time.Time

	// HighestPrice never decreases once set at entry.
	HighestPrice float64
	// StopLossPrice is fixed at entry time.
	StopLossPrice float64
	// TrailingStopPrice ratchets up with HighestPrice, never down.
	TrailingStopPrice float64
}

// ClosedPosition is the audit record of a liquidated tranche.
type ClosedPosition struct {
	ID          string
	Symbol      string
	Shares      float64
	EntryPrice  float64
	EntryTime   time.Time
	ExitPrice   float64
	RealizedPnL float64
	Reason      string
	ClosedAt    time.Time
}

// PerformanceRecord accumulates realized win/loss counts for one symbol.
type PerformanceRecord struct {
	Wins   int
	Losses int
}

// WinRate returns wins/(wins+losses). The second result is false when the
// symbol has no closed trades yet.
func (r PerformanceRecord) WinRate() (float64, bool) {
	total := r.Wins + r.Losses
	if total == 0 {
		return 0, false
	}
	return float64(r.Wins) / float64(total), true
}

// Fill is the result of an executed market order.
type Fill struct {
	Shares float64
	Price  float64
}
