package application

import (
	"context"
	"time"
)

// Scheduler triggers the daily report for the previous calendar day.
type Scheduler struct {
	runner *Runner
}

// NewScheduler wraps a runner with the daily trigger.
func NewScheduler(runner *Runner) *Scheduler {
	return &Scheduler{runner: runner}
}

// Start begins the schedule loop and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.runner == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.runner.clock.Now().UTC()
			if !matchesDailyAt(now, s.runner.cfg.DailyAt) {
				continue
			}
			previousDay := now.AddDate(0, 0, -1)
			if _, err := s.runner.Run(ctx, previousDay); err != nil {
				s.runner.logger.Printf("scheduled report run failed: %v", err)
			}
		}
	}
}

func matchesDailyAt(now time.Time, dailyAt string) bool {
	hour, minute, err := parseDailyAt(dailyAt)
	if err != nil {
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
