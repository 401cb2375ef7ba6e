package usecase

import (
	"math"

	"github.com/andrv/stock_anomaly_bot/internal/domain"
)

// RollingStats holds window statistics over the bars preceding the current
// one. The current bar is excluded so it can be scored against its own
// baseline.
type RollingStats struct {
	MeanClose  float64
	StdClose   float64
	MeanVolume float64
}

// ComputeRollingStats computes the mean and sample standard deviation of
// closes and the mean volume over the lookback bars immediately before the
// last bar. Requires lookback+1 bars.
func ComputeRollingStats(bars []domain.PriceBar, lookback int) (*RollingStats, error) {
	if len(bars) < lookback+1 {
		symbol := ""
		if len(bars) > 0 {
			symbol = bars[0].Symbol
		}
		return nil, &domain.InsufficientDataError{Symbol: symbol, Have: len(bars), Need: lookback + 1}
	}

	window := bars[len(bars)-1-lookback : len(bars)-1]

	var sumClose, sumVolume float64
	for _, b := range window {
		sumClose += b.Close
		sumVolume += b.Volume
	}
	n := float64(len(window))
	mean := sumClose / n
	meanVolume := sumVolume / n

	var sumSq float64
	for _, b := range window {
		d := b.Close - mean
		sumSq += d * d
	}
	var std float64
	if len(window) > 1 {
		std = math.Sqrt(sumSq / (n - 1))
	}

	return &RollingStats{MeanClose: mean, StdClose: std, MeanVolume: meanVolume}, nil
}

// RSIWilder computes the RSI of the last close with Wilder smoothing: the
// seed averages are simple means over the first period deltas, every later
// average is (prev*(period-1)+current)/period. Requires period+1 closes.
func RSIWilder(closes []float64, period int) (float64, error) {
	if len(closes) < period+1 {
		return 0, &domain.InsufficientDataError{Have: len(closes), Need: period + 1}
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		var gain, loss float64
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	switch {
	case avgGain == 0 && avgLoss == 0:
		return 50, nil
	case avgLoss == 0:
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// Closes extracts the close series from a bar sequence.
func Closes(bars []domain.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
