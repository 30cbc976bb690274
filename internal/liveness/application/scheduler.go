package application

import (
	"context"
	"log"
	"time"

	"dvrwatch/internal/observability/metrics"
)

// Scheduler drives the periodic offline sweep.
type Scheduler struct {
	monitor  *Monitor
	interval time.Duration
	logger   *log.Logger
}

// NewScheduler constructs a sweep scheduler.
func NewScheduler(monitor *Monitor, interval time.Duration, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{monitor: monitor, interval: interval, logger: logger}
}

// Start begins the sweep loop and blocks until ctx is cancelled. One
// sweep runs immediately so a restart does not wait a full interval.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.monitor == nil || s.interval <= 0 {
		return
	}
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	start := time.Now()
	summary, err := s.monitor.SweepOnce(ctx)
	if err != nil {
		metrics.ObserveSweep(metrics.ResultError, time.Since(start))
		s.logger.Printf("sweep failed: %v", err)
		return
	}
	metrics.ObserveSweep(metrics.ResultSuccess, time.Since(start))
	if summary.Raised > 0 || summary.Errors > 0 {
		s.logger.Printf("sweep: checked=%d offline=%d raised=%d errors=%d",
			summary.Checked, summary.Offline, summary.Raised, summary.Errors)
	}
}
