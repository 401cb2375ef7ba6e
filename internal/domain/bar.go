package domain

import "time"

// PriceBar is one OHLCV bar for a symbol. Bar slices are always ordered
// oldest first.
type PriceBar struct {
	Symbol string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Quote is the latest top-of-book snapshot for a symbol.
type Quote struct {
	Symbol string
	Bid    float64
	Ask    float64
	Last   float64
	Time   time.Time
}
