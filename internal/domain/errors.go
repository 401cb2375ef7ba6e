package domain

import "fmt"

// InsufficientDataError means a symbol does not have enough history for an
// indicator. The symbol is skipped for the tick and retried on the next one.
type InsufficientDataError struct {
	Symbol string
	Have   int
	Need   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %q: have %d bars, need %d", e.Symbol, e.Have, e.Need)
}

// ProviderError wraps a market-data or account lookup failure.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// OrderError is an order the brokerage rejected or failed to fill. No fill
// happened, so the position book must be left untouched.
type OrderError struct {
	Symbol string
	Side   string
	Reason string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order rejected for %s (%s): %s", e.Symbol, e.Side, e.Reason)
}
