package usecase

import (
	"math"
	"time"

	"github.com/andrv/stock_anomaly_bot/internal/domain"
)

const (
	zScoreThreshold    = 2.0
	priceMoveThreshold = 0.03
	gapThreshold       = 0.02
	rsiOversold        = 30.0
	rsiOverbought      = 70.0
	volumeSpikeFactor  = 2.0
	volumeBonus        = 1.0
)

// DetectorConfig tunes the anomaly detector windows and the minimum
// severity required before a signal fires.
type DetectorConfig struct {
	Lookback    int
	RSIPeriod   int
	MinSeverity float64
}

func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{Lookback: 20, RSIPeriod: 14, MinSeverity: 1.0}
}

// AnomalyDetector scores a symbol's bar history for statistical anomalies.
// It is stateless; Evaluate may be called concurrently.
type AnomalyDetector struct {
	cfg DetectorConfig
}

func NewAnomalyDetector(cfg DetectorConfig) *AnomalyDetector {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 20
	}
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = 14
	}
	if cfg.MinSeverity <= 0 {
		cfg.MinSeverity = 1.0
	}
	return &AnomalyDetector{cfg: cfg}
}

// Evaluate scores the last bar against its lookback window and returns the
// resulting signal. Returns InsufficientDataError when the history is too
// short for either the window or the RSI period.
func (d *AnomalyDetector) Evaluate(bars []domain.PriceBar, now time.Time) (*domain.AnomalySignal, error) {
	stats, err := ComputeRollingStats(bars, d.cfg.Lookback)
	if err != nil {
		return nil, err
	}
	rsi, err := RSIWilder(Closes(bars), d.cfg.RSIPeriod)
	if err != nil {
		return nil, err
	}

	current := bars[len(bars)-1]
	previous := bars[len(bars)-2]

	signal := &domain.AnomalySignal{Symbol: current.Symbol, Time: now, Action: domain.ActionHold}

	add := func(kind domain.AnomalyKind, severity float64, action domain.Action) {
		signal.Anomalies = append(signal.Anomalies, domain.Anomaly{Kind: kind, Severity: severity})
		if action == domain.ActionBuy {
			signal.BuySeverity += severity
		} else {
			signal.SellSeverity += severity
		}
	}

	// Z-score of the current close against the window baseline. Skipped
	// when the window is flat.
	if stats.StdClose > 0 {
		z := (current.Close - stats.MeanClose) / stats.StdClose
		if z < -zScoreThreshold {
			add(domain.AnomalyZScore, math.Abs(z), domain.ActionBuy)
		} else if z > zScoreThreshold {
			add(domain.AnomalyZScore, z, domain.ActionSell)
		}
	}

	if previous.Close > 0 {
		change := (current.Close - previous.Close) / previous.Close
		if change < -priceMoveThreshold {
			add(domain.AnomalyPriceMove, math.Abs(change)/priceMoveThreshold, domain.ActionBuy)
		} else if change > priceMoveThreshold {
			add(domain.AnomalyPriceMove, change/priceMoveThreshold, domain.ActionSell)
		}

		gap := (current.Open - previous.Close) / previous.Close
		if gap < -gapThreshold {
			add(domain.AnomalyGap, math.Abs(gap)/gapThreshold, domain.ActionBuy)
		} else if gap > gapThreshold {
			add(domain.AnomalyGap, gap/gapThreshold, domain.ActionSell)
		}
	}

	if rsi < rsiOversold {
		add(domain.AnomalyRSI, (rsiOversold-rsi)/10, domain.ActionBuy)
	} else if rsi > rsiOverbought {
		add(domain.AnomalyRSI, (rsi-rsiOverbought)/10, domain.ActionSell)
	}

	// A volume spike carries no direction of its own; it reinforces the
	// side that already fired, buy side first when both did.
	if stats.MeanVolume > 0 && current.Volume > volumeSpikeFactor*stats.MeanVolume {
		switch {
		case signal.BuySeverity > 0:
			add(domain.AnomalyVolume, volumeBonus, domain.ActionBuy)
		case signal.SellSeverity > 0:
			add(domain.AnomalyVolume, volumeBonus, domain.ActionSell)
		}
	}

	// Oversold entries take precedence when both directions fire.
	switch {
	case signal.BuySeverity >= d.cfg.MinSeverity:
		signal.Action = domain.ActionBuy
		signal.TotalSeverity = signal.BuySeverity
	case signal.SellSeverity >= d.cfg.MinSeverity:
		signal.Action = domain.ActionSell
		signal.TotalSeverity = signal.SellSeverity
	default:
		signal.TotalSeverity = math.Max(signal.BuySeverity, signal.SellSeverity)
	}

	return signal, nil
}
