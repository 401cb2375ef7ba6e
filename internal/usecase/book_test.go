package usecase_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrv/stock_anomaly_bot/internal/usecase"
)

var bookTime = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func TestBookOpenSetsExitLevels(t *testing.T) {
	book := usecase.NewPositionBook(0.05, 0.05)

	pos := book.Open("AAPL", 10, 100.0, bookTime)

	require.NotEmpty(t, pos.ID)
	assert.InDelta(t, 100.0, pos.HighestPrice, 1e-9)
	assert.InDelta(t, 95.0, pos.StopLossPrice, 1e-9)
	assert.InDelta(t, 95.0, pos.TrailingStopPrice, 1e-9)
	assert.Equal(t, 1, book.OpenCount("AAPL"))
	assert.InDelta(t, 10.0, book.TotalShares("AAPL"), 1e-9)
}

func TestBookTrailingStopRatchets(t *testing.T) {
	book := usecase.NewPositionBook(0.05, 0.05)
	book.Open("AAPL", 10, 100.0, bookTime)

	// 100 -> 120: trailing stop rises to 120*0.95 = 114.
	exit, _ := book.MarkToMarket("AAPL", 120.0)
	require.False(t, exit)
	pos := book.Positions("AAPL")[0]
	assert.InDelta(t, 120.0, pos.HighestPrice, 1e-9)
	assert.InDelta(t, 114.0, pos.TrailingStopPrice, 1e-9)

	// A dip that stays above the trail must not lower it.
	exit, _ = book.MarkToMarket("AAPL", 118.0)
	require.False(t, exit)
	pos = book.Positions("AAPL")[0]
	assert.InDelta(t, 120.0, pos.HighestPrice, 1e-9)
	assert.InDelta(t, 114.0, pos.TrailingStopPrice, 1e-9)

	// Touching the trail exactly fires the exit: 114 <= 114.0.
	exit, reason := book.MarkToMarket("AAPL", 114.0)
	assert.True(t, exit)
	assert.Equal(t, usecase.ExitReasonTrailingStop, reason)
}

func TestBookMarkAtEntryPriceNoExit(t *testing.T) {
	book := usecase.NewPositionBook(0.05, 0.05)
	book.Open("AAPL", 10, 100.0, bookTime)

	exit, _ := book.MarkToMarket("AAPL", 100.0)
	assert.False(t, exit)
	assert.True(t, book.HasPosition("AAPL"))
}

func TestBookStopLossFires(t *testing.T) {
	book := usecase.NewPositionBook(0.05, 0.05)
	book.Open("AAPL", 10, 100.0, bookTime)

	exit, _ := book.MarkToMarket("AAPL", 96.0)
	require.False(t, exit)

	// Touching the stop exactly fires the exit: 95 <= 95.0.
	exit, reason := book.MarkToMarket("AAPL", 95.0)
	assert.True(t, exit)
	assert.Equal(t, usecase.ExitReasonStopLoss, reason)
}

func TestBookCloseAllIndependentPnL(t *testing.T) {
	book := usecase.NewPositionBook(0.05, 0.05)
	book.Open("AAPL", 10, 100.0, bookTime)
	book.Open("AAPL", 5, 110.0, bookTime.Add(time.Minute))

	closed := book.CloseAll("AAPL", 105.0, usecase.ExitReasonStopLoss, bookTime.Add(2*time.Minute))
	require.Len(t, closed, 2)

	assert.InDelta(t, 50.0, closed[0].RealizedPnL, 1e-9)  // (105-100)*10
	assert.InDelta(t, -25.0, closed[1].RealizedPnL, 1e-9) // (105-110)*5
	assert.Equal(t, usecase.ExitReasonStopLoss, closed[0].Reason)

	assert.False(t, book.HasPosition("AAPL"))
	assert.Zero(t, book.TotalShares("AAPL"))

	perf := book.Performance("AAPL")
	assert.Equal(t, 1, perf.Wins)
	assert.Equal(t, 1, perf.Losses)
}

func TestBookCloseAllEmptySymbol(t *testing.T) {
	book := usecase.NewPositionBook(0.05, 0.05)

	closed := book.CloseAll("AAPL", 100.0, usecase.ExitReasonStopLoss, bookTime)
	assert.Nil(t, closed)
	assert.Equal(t, 0, book.Performance("AAPL").Wins+book.Performance("AAPL").Losses)
}

func TestBookOneTrancheExitCondemnsAll(t *testing.T) {
	book := usecase.NewPositionBook(0.05, 0.05)
	book.Open("AAPL", 10, 100.0, bookTime)
	book.Open("AAPL", 5, 120.0, bookTime.Add(time.Minute)) // stop at 114

	// 113 is safe for the first tranche but below the second one's stop.
	exit, reason := book.MarkToMarket("AAPL", 113.0)
	assert.True(t, exit)
	assert.Equal(t, usecase.ExitReasonStopLoss, reason)
}

func TestBookSymbolsIndependent(t *testing.T) {
	book := usecase.NewPositionBook(0.05, 0.05)
	book.Open("AAPL", 10, 100.0, bookTime)
	book.Open("MSFT", 4, 200.0, bookTime)

	book.CloseAll("AAPL", 90.0, usecase.ExitReasonStopLoss, bookTime)

	assert.False(t, book.HasPosition("AAPL"))
	assert.True(t, book.HasPosition("MSFT"))
	assert.Equal(t, 1, book.TotalOpenCount())
	assert.Equal(t, 0, book.Performance("MSFT").Losses)
}
