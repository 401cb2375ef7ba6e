package usecase_test

import (
	"testing"
	"time"

	"github.com/andrv/stock_anomaly_bot/internal/usecase"
)

func TestMarketHoursContains(t *testing.T) {
	hours, err := usecase.NYSEHours()
	if err != nil {
		t.Fatalf("NYSEHours() error = %v", err)
	}
	loc := hours.Location

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"mid session", time.Date(2025, 6, 2, 12, 0, 0, 0, loc), true},       // Monday
		{"exactly at open", time.Date(2025, 6, 2, 9, 30, 0, 0, loc), true},   // inclusive
		{"exactly at close", time.Date(2025, 6, 2, 16, 0, 0, 0, loc), true},  // inclusive
		{"before open", time.Date(2025, 6, 2, 9, 29, 0, 0, loc), false},
		{"after close", time.Date(2025, 6, 2, 16, 1, 0, 0, loc), false},
		{"saturday", time.Date(2025, 6, 7, 12, 0, 0, 0, loc), false},
		{"sunday", time.Date(2025, 6, 8, 12, 0, 0, 0, loc), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hours.Contains(tt.at); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestMarketHoursConvertsTimezone(t *testing.T) {
	hours, err := usecase.NYSEHours()
	if err != nil {
		t.Fatalf("NYSEHours() error = %v", err)
	}

	// 14:00 UTC on a June Monday is 10:00 in New York.
	at := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	if !hours.Contains(at) {
		t.Errorf("Contains(%v) = false, want true", at)
	}

	// 02:00 UTC is 22:00 the previous evening in New York.
	at = time.Date(2025, 6, 3, 2, 0, 0, 0, time.UTC)
	if hours.Contains(at) {
		t.Errorf("Contains(%v) = true, want false", at)
	}
}
