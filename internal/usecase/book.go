package usecase

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andrv/stock_anomaly_bot/internal/domain"
)

// Exit reasons recorded on closed tranches.
const (
	ExitReasonStopLoss     = "stop_loss"
	ExitReasonTrailingStop = "trailing_stop"
	ExitReasonOverbought   = "overbought"
)

// PositionBook tracks the logical tranches open per symbol. The brokerage
// only holds one aggregated physical position per symbol, so any single
// tranche's exit liquidates the whole list; each tranche still carries its
// own stop and trailing levels so risk and PnL attribution stay per-entry.
type PositionBook struct {
	mu       sync.Mutex
	stopPct  float64
	trailPct float64

	positions map[string][]*domain.LogicalPosition
	perf      map[string]*domain.PerformanceRecord
}

func NewPositionBook(stopPct, trailPct float64) *PositionBook {
	return &PositionBook{
		stopPct:   stopPct,
		trailPct:  trailPct,
		positions: make(map[string][]*domain.LogicalPosition),
		perf:      make(map[string]*domain.PerformanceRecord),
	}
}

// Open appends a new tranche for the symbol and returns a copy of it. New
// tranches are allowed whether or not the symbol already has open ones.
func (b *PositionBook) Open(symbol string, shares, entryPrice float64, ts time.Time) domain.LogicalPosition {
	b.mu.Lock()
	defer b.mu.Unlock()

	// price - price*pct keeps round stop levels exact (100 with a 5% stop
	// gives precisely 95), so an exit fires when the price touches the
	// level rather than a float ulp below it.
	pos := &domain.LogicalPosition{
		ID:                uuid.NewString(),
		Symbol:            symbol,
		Shares:            shares,
		EntryPrice:        entryPrice,
		EntryTime:         ts,
		HighestPrice:      entryPrice,
		StopLossPrice:     entryPrice - entryPrice*b.stopPct,
		TrailingStopPrice: entryPrice - entryPrice*b.trailPct,
	}
	b.positions[symbol] = append(b.positions[symbol], pos)
	return *pos
}

// MarkToMarket raises highest-price-seen and trailing stops for the symbol's
// tranches, then reports whether any tranche's exit condition is met at
// price, together with the reason of the first tranche that fired.
func (b *PositionBook) MarkToMarket(symbol string, price float64) (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	exit := false
	reason := ""
	for _, pos := range b.positions[symbol] {
		if price > pos.HighestPrice {
			pos.HighestPrice = price
		}
		if trail := pos.HighestPrice - pos.HighestPrice*b.trailPct; trail > pos.TrailingStopPrice {
			pos.TrailingStopPrice = trail
		}
		if exit {
			continue
		}
		switch {
		case price <= pos.StopLossPrice:
			exit, reason = true, ExitReasonStopLoss
		case price <= pos.TrailingStopPrice:
			exit, reason = true, ExitReasonTrailingStop
		}
	}
	return exit, reason
}

// CloseAll liquidates every tranche of the symbol at exitPrice, records a
// win or loss per tranche, and empties the symbol's list.
func (b *PositionBook) CloseAll(symbol string, exitPrice float64, reason string, ts time.Time) []domain.ClosedPosition {
	b.mu.Lock()
	defer b.mu.Unlock()

	open := b.positions[symbol]
	if len(open) == 0 {
		return nil
	}

	rec := b.perf[symbol]
	if rec == nil {
		rec = &domain.PerformanceRecord{}
		b.perf[symbol] = rec
	}

	closed := make([]domain.ClosedPosition, 0, len(open))
	for _, pos := range open {
		pnl := (exitPrice - pos.EntryPrice) * pos.Shares
		if pnl > 0 {
			rec.Wins++
		} else {
			rec.Losses++
		}
		closed = append(closed, domain.ClosedPosition{
			ID:          pos.ID,
			Symbol:      symbol,
			Shares:      pos.Shares,
			EntryPrice:  pos.EntryPrice,
			EntryTime:   pos.EntryTime,
			ExitPrice:   exitPrice,
			RealizedPnL: pnl,
			Reason:      reason,
			ClosedAt:    ts,
		})
	}

	delete(b.positions, symbol)
	return closed
}

// Positions returns copies of the symbol's open tranches.
func (b *PositionBook) Positions(symbol string) []domain.LogicalPosition {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.LogicalPosition, 0, len(b.positions[symbol]))
	for _, pos := range b.positions[symbol] {
		out = append(out, *pos)
	}
	return out
}

func (b *PositionBook) HasPosition(symbol string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.positions[symbol]) > 0
}

func (b *PositionBook) OpenCount(symbol string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.positions[symbol])
}

// TotalOpenCount returns the number of open tranches across all symbols.
func (b *PositionBook) TotalOpenCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, list := range b.positions {
		total += len(list)
	}
	return total
}

// TotalShares returns the symbol's aggregate share count across tranches.
func (b *PositionBook) TotalShares(symbol string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var total float64
	for _, pos := range b.positions[symbol] {
		total += pos.Shares
	}
	return total
}

// Performance returns a copy of the symbol's win/loss record.
func (b *PositionBook) Performance(symbol string) domain.PerformanceRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rec, ok := b.perf[symbol]; ok {
		return *rec
	}
	return domain.PerformanceRecord{}
}
