package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// MarketHours describes the active trading window in the exchange timezone.
type MarketHours struct {
	Location    *time.Location
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
}

// NYSEHours returns the regular 09:30-16:00 New York session.
func NYSEHours() (MarketHours, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return MarketHours{}, err
	}
	return MarketHours{Location: loc, OpenHour: 9, OpenMinute: 30, CloseHour: 16}, nil
}

// Contains reports whether t falls on a weekday inside the window.
func (h MarketHours) Contains(t time.Time) bool {
	local := t.In(h.Location)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	open := time.Date(local.Year(), local.Month(), local.Day(), h.OpenHour, h.OpenMinute, 0, 0, h.Location)
	closeAt := time.Date(local.Year(), local.Month(), local.Day(), h.CloseHour, h.CloseMinute, 0, 0, h.Location)
	return !local.Before(open) && !local.After(closeAt)
}

// Scheduler fires one evaluation cycle per interval during market hours.
// Cycles run on the ticker goroutine itself, so a slow cycle delays the next
// tick instead of overlapping it.
type Scheduler struct {
	engine   *Engine
	hours    MarketHours
	interval time.Duration
	logger   *zap.Logger
}

func NewScheduler(engine *Engine, hours MarketHours, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{engine: engine, hours: hours, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			if !s.hours.Contains(time.Now()) {
				continue
			}
			start := time.Now()
			s.engine.RunCycle(ctx)
			if took := time.Since(start); took > s.interval {
				s.logger.Warn("cycle overran the tick interval",
					zap.Duration("took", took),
					zap.Duration("interval", s.interval))
			}
		}
	}
}
