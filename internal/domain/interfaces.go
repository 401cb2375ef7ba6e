package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// MarketDataProvider supplies historical bars and current quotes.
type MarketDataProvider interface {
	// GetBars returns up to limit one-minute bars, oldest first.
	GetBars(ctx context.Context, symbol string, limit int) ([]PriceBar, error)
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
}

// ExecutionProvider submits market orders and reports account state.
type ExecutionProvider interface {
	GetBuyingPower(ctx context.Context) (decimal.Decimal, error)
	// SubmitBuy places a notional market buy and waits for the fill.
	SubmitBuy(ctx context.Context, symbol string, notional decimal.Decimal) (*Fill, error)
	// SubmitSell places a market sell for the given share count.
	SubmitSell(ctx context.Context, symbol string, shares float64) (*Fill, error)
	// GetAggregatePosition returns the brokerage's total share count for the
	// symbol, 0 when no position exists.
	GetAggregatePosition(ctx context.Context, symbol string) (float64, error)
}

// PersistenceSink receives audit records. Sink failures must never reach the
// decision loop.
type PersistenceSink interface {
	SaveSignal(ctx context.Context, signal *AnomalySignal) error
	SaveClosedPosition(ctx context.Context, closed *ClosedPosition) error
}

// NotificationSink receives buy-intent events.
type NotificationSink interface {
	NotifyBuy(ctx context.Context, symbol string, notional decimal.Decimal, signal *AnomalySignal) error
}
