package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrv/stock_anomaly_bot/internal/domain"
	"github.com/andrv/stock_anomaly_bot/internal/infrastructure/storage"
)

func newTestSink(t *testing.T) *storage.SQLiteSink {
	t.Helper()
	sink, err := storage.NewSQLiteSink(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })
	return sink
}

func TestSaveAndListSignals(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	signal := &domain.AnomalySignal{
		Symbol: "AAPL",
		Time:   time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		Anomalies: []domain.Anomaly{
			{Kind: domain.AnomalyZScore, Severity: 2.4},
			{Kind: domain.AnomalyVolume, Severity: 1.0},
		},
		BuySeverity:   3.4,
		TotalSeverity: 3.4,
		Action:        domain.ActionBuy,
	}
	require.NoError(t, sink.SaveSignal(ctx, signal))

	signals, err := sink.ListSignals(ctx, 10)
	require.NoError(t, err)
	require.Len(t, signals, 1)

	got := signals[0]
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, domain.ActionBuy, got.Action)
	assert.InDelta(t, 3.4, got.TotalSeverity, 1e-9)
	require.Len(t, got.Anomalies, 2)
	assert.Equal(t, domain.AnomalyZScore, got.Anomalies[0].Kind)
	assert.InDelta(t, 2.4, got.Anomalies[0].Severity, 1e-9)
}

func TestSaveAndListClosedPositions(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	closed := &domain.ClosedPosition{
		ID:          "0b1e8b1a-7c46-4a57-8a59-2f8a9f5d1c11",
		Symbol:      "TSLA",
		Shares:      10,
		EntryPrice:  100,
		EntryTime:   time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		ExitPrice:   114,
		RealizedPnL: 140,
		Reason:      "trailing_stop",
		ClosedAt:    time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC),
	}
	require.NoError(t, sink.SaveClosedPosition(ctx, closed))

	list, err := sink.ListClosedPositions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got := list[0]
	assert.Equal(t, closed.ID, got.ID)
	assert.Equal(t, "TSLA", got.Symbol)
	assert.InDelta(t, 140.0, got.RealizedPnL, 1e-9)
	assert.Equal(t, "trailing_stop", got.Reason)
}

func TestListOrdering(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := sink.SaveSignal(ctx, &domain.AnomalySignal{
			Symbol:    "AAPL",
			Time:      base.Add(time.Duration(i) * time.Minute),
			Anomalies: []domain.Anomaly{},
			Action:    domain.ActionHold,
		})
		require.NoError(t, err)
	}

	signals, err := sink.ListSignals(ctx, 2)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.True(t, signals[0].Time.After(signals[1].Time), "newest first")
}
