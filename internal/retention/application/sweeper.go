package application

import (
	"context"
	"errors"
	"log"
	"time"

	"dvrwatch/internal/observability/metrics"
)

// HistoryPurger deletes aged heartbeat records.
type HistoryPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlertPurger deletes acknowledged aged alerts.
type AlertPurger interface {
	DeleteAcknowledgedOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Clock provides time for scheduling.
type Clock interface {
	Now() time.Time
}

// Config defines the retention policy.
type Config struct {
	HistoryRetentionDays int
	AlertRetentionDays   int
	HistoryPurgeAt       string
	AlertPurgeAt         string
	StoreTimeout         time.Duration
}

// Sweeper purges aged heartbeat history and acknowledged alerts on a
// daily schedule. Unacknowledged alerts are never purged.
type Sweeper struct {
	history HistoryPurger
	alerts  AlertPurger
	cfg     Config
	logger  *log.Logger
	clock   Clock
}

// Option customizes the sweeper.
type Option func(*Sweeper)

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(s *Sweeper) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewSweeper constructs a retention sweeper.
func NewSweeper(history HistoryPurger, alerts AlertPurger, cfg Config, opts ...Option) (*Sweeper, error) {
	if history == nil {
		return nil, errors.New("retention: nil history purger")
	}
	if alerts == nil {
		return nil, errors.New("retention: nil alert purger")
	}
	if cfg.HistoryRetentionDays <= 0 || cfg.AlertRetentionDays <= 0 {
		return nil, errors.New("retention: retention days must be positive")
	}
	if _, _, err := parseDailyAt(cfg.HistoryPurgeAt); err != nil {
		return nil, errors.New("retention: history purge time must be HH:MM")
	}
	if _, _, err := parseDailyAt(cfg.AlertPurgeAt); err != nil {
		return nil, errors.New("retention: alert purge time must be HH:MM")
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 30 * time.Second
	}
	sweeper := &Sweeper{
		history: history,
		alerts:  alerts,
		cfg:     cfg,
		logger:  log.Default(),
		clock:   systemClock{},
	}
	for _, opt := range opts {
		opt(sweeper)
	}
	return sweeper, nil
}

// Start begins the retention loop and blocks until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	if s == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.clock.Now().UTC()
			if matchesDailyAt(now, s.cfg.HistoryPurgeAt) {
				if _, err := s.PurgeHistory(ctx); err != nil {
					s.logger.Printf("retention: history purge failed: %v", err)
				}
			}
			if matchesDailyAt(now, s.cfg.AlertPurgeAt) {
				if _, err := s.PurgeAlerts(ctx); err != nil {
					s.logger.Printf("retention: alert purge failed: %v", err)
				}
			}
		}
	}
}

// PurgeHistory deletes heartbeat records older than the retention window.
func (s *Sweeper) PurgeHistory(ctx context.Context) (int64, error) {
	if s == nil {
		return 0, errors.New("retention: nil sweeper")
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	cutoff := s.clock.Now().UTC().AddDate(0, 0, -s.cfg.HistoryRetentionDays)
	deleted, err := s.history.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.AddRetentionDeleted("heartbeats", deleted)
	s.logger.Printf("retention: purged %d heartbeat records older than %s", deleted, cutoff.Format(time.RFC3339))
	return deleted, nil
}

// PurgeAlerts deletes acknowledged alerts older than the retention window.
func (s *Sweeper) PurgeAlerts(ctx context.Context) (int64, error) {
	if s == nil {
		return 0, errors.New("retention: nil sweeper")
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	cutoff := s.clock.Now().UTC().AddDate(0, 0, -s.cfg.AlertRetentionDays)
	deleted, err := s.alerts.DeleteAcknowledgedOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.AddRetentionDeleted("alerts", deleted)
	s.logger.Printf("retention: purged %d acknowledged alerts older than %s", deleted, cutoff.Format(time.RFC3339))
	return deleted, nil
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

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
