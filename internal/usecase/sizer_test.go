package usecase_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/andrv/stock_anomaly_bot/internal/domain"
	"github.com/andrv/stock_anomaly_bot/internal/usecase"
)

func TestPositionSize(t *testing.T) {
	base := decimal.NewFromInt(1000)

	tests := []struct {
		name   string
		record domain.PerformanceRecord
		want   string
	}{
		{"no history is neutral", domain.PerformanceRecord{}, "1000"},
		{"65 percent win rate", domain.PerformanceRecord{Wins: 13, Losses: 7}, "1200"},
		{"exactly 60 percent", domain.PerformanceRecord{Wins: 6, Losses: 4}, "1200"},
		{"exactly 50 percent", domain.PerformanceRecord{Wins: 5, Losses: 5}, "1000"},
		{"45 percent win rate", domain.PerformanceRecord{Wins: 9, Losses: 11}, "800"},
		{"exactly 40 percent", domain.PerformanceRecord{Wins: 4, Losses: 6}, "800"},
		{"35 percent win rate", domain.PerformanceRecord{Wins: 7, Losses: 13}, "600"},
		{"all losses", domain.PerformanceRecord{Wins: 0, Losses: 5}, "600"},
		{"all wins", domain.PerformanceRecord{Wins: 3, Losses: 0}, "1200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := usecase.PositionSize(tt.record, base)
			want := decimal.RequireFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("PositionSize() = %s, want %s", got, want)
			}
		})
	}
}

func TestPositionSizeIsPure(t *testing.T) {
	record := domain.PerformanceRecord{Wins: 13, Losses: 7}
	base := decimal.NewFromInt(500)

	first := usecase.PositionSize(record, base)
	second := usecase.PositionSize(record, base)
	if !first.Equal(second) {
		t.Errorf("PositionSize() not deterministic: %s vs %s", first, second)
	}
}

func TestWinRate(t *testing.T) {
	rate, ok := domain.PerformanceRecord{Wins: 13, Losses: 7}.WinRate()
	if !ok {
		t.Fatal("WinRate() ok = false, want true")
	}
	if !floatEquals(rate, 0.65) {
		t.Errorf("WinRate() = %f, want 0.65", rate)
	}

	if _, ok := (domain.PerformanceRecord{}).WinRate(); ok {
		t.Error("WinRate() ok = true for empty record, want false")
	}
}
