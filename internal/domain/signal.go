package domain

import "time"

// Action is the trading decision attached to a signal.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// AnomalyKind identifies which statistical check fired.
type AnomalyKind string

const (
	AnomalyZScore    AnomalyKind = "zscore"
	AnomalyPriceMove AnomalyKind = "price_move"
	AnomalyGap       AnomalyKind = "gap"
	AnomalyRSI       AnomalyKind = "rsi"
	AnomalyVolume    AnomalyKind = "volume"
)

// Anomaly is a single fired condition with its severity contribution.
type Anomaly struct {
	Kind     AnomalyKind `json:"kind"`
	Severity float64     `json:"severity"`
}

// AnomalySignal is the outcome of one evaluation of one symbol. Severities
// accumulate per direction; TotalSeverity is the winning side's sum. A new
// signal is produced every tick and never mutated afterwards.
type AnomalySignal struct {
	Symbol        string
	Time          time.Time
	Anomalies     []Anomaly
	BuySeverity   float64
	SellSeverity  float64
	TotalSeverity float64
	Action        Action
}
