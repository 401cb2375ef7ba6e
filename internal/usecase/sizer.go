package usecase

import (
	"github.com/shopspring/decimal"

	"github.com/andrv/stock_anomaly_bot/internal/domain"
)

// Sizing multipliers by historical win rate. A symbol with no closed trades
// gets the neutral tier.
var (
	sizeAggressive = decimal.NewFromFloat(1.20)
	sizeNeutral    = decimal.NewFromInt(1)
	sizeReduced    = decimal.NewFromFloat(0.80)
	sizeDefensive  = decimal.NewFromFloat(0.60)
)

// PositionSize returns the dollar notional for a new entry. Pure: the same
// record and base always produce the same amount.
func PositionSize(record domain.PerformanceRecord, base decimal.Decimal) decimal.Decimal {
	rate, ok := record.WinRate()
	if !ok {
		return base.Mul(sizeNeutral)
	}
	switch {
	case rate >= 0.60:
		return base.Mul(sizeAggressive)
	case rate >= 0.50:
		return base.Mul(sizeNeutral)
	case rate >= 0.40:
		return base.Mul(sizeReduced)
	default:
		return base.Mul(sizeDefensive)
	}
}
