package application

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines monitoring configuration. Environment variables
// provide defaults; MONITOR_CONFIG may point at a yaml overlay.
type Config struct {
	OfflineTimeout       time.Duration
	SweepInterval        time.Duration
	DedupWindow          time.Duration
	StoreTimeout         time.Duration
	HistoryRetentionDays int
	AlertRetentionDays   int
	HistoryPurgeAt       string
	AlertPurgeAt         string
}

// yamlConfig mirrors Config with duration fields as strings so the
// overlay accepts values like "2m" or "1h30m".
type yamlConfig struct {
	OfflineTimeout       string `yaml:"offline_timeout"`
	SweepInterval        string `yaml:"sweep_interval"`
	DedupWindow          string `yaml:"dedup_window"`
	StoreTimeout         string `yaml:"store_timeout"`
	HistoryRetentionDays *int   `yaml:"history_retention_days"`
	AlertRetentionDays   *int   `yaml:"alert_retention_days"`
	HistoryPurgeAt       string `yaml:"history_purge_at"`
	AlertPurgeAt         string `yaml:"alert_purge_at"`
}

// LoadConfig loads config from env with an optional yaml overlay.
func LoadConfig() (Config, error) {
	cfg := Config{
		OfflineTimeout:       getenvDuration("OFFLINE_TIMEOUT", 2*time.Minute),
		SweepInterval:        getenvDuration("SWEEP_INTERVAL", time.Minute),
		DedupWindow:          getenvDuration("DEDUP_WINDOW", time.Hour),
		StoreTimeout:         getenvDuration("STORE_TIMEOUT", 5*time.Second),
		HistoryRetentionDays: getenvIntDefault("HISTORY_RETENTION_DAYS", 30),
		AlertRetentionDays:   getenvIntDefault("ALERT_RETENTION_DAYS", 7),
		HistoryPurgeAt:       getenvDefault("HISTORY_PURGE_AT", "02:00"),
		AlertPurgeAt:         getenvDefault("ALERT_PURGE_AT", "03:00"),
	}

	if path := os.Getenv("MONITOR_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		var overlay yamlConfig
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return cfg, err
		}
		if err := applyOverlay(&cfg, overlay); err != nil {
			return cfg, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c Config) Validate() error {
	if c.OfflineTimeout <= 0 {
		return errors.New("monitor config: offline timeout must be positive")
	}
	if c.SweepInterval <= 0 {
		return errors.New("monitor config: sweep interval must be positive")
	}
	if c.DedupWindow <= 0 {
		return errors.New("monitor config: dedup window must be positive")
	}
	if c.StoreTimeout <= 0 {
		return errors.New("monitor config: store timeout must be positive")
	}
	if c.HistoryRetentionDays <= 0 {
		return errors.New("monitor config: history retention must be positive")
	}
	if c.AlertRetentionDays <= 0 {
		return errors.New("monitor config: alert retention must be positive")
	}
	if _, err := time.Parse("15:04", c.HistoryPurgeAt); err != nil {
		return errors.New("monitor config: history purge time must be HH:MM")
	}
	if _, err := time.Parse("15:04", c.AlertPurgeAt); err != nil {
		return errors.New("monitor config: alert purge time must be HH:MM")
	}
	return nil
}

func applyOverlay(cfg *Config, overlay yamlConfig) error {
	if err := setDuration(&cfg.OfflineTimeout, overlay.OfflineTimeout); err != nil {
		return err
	}
	if err := setDuration(&cfg.SweepInterval, overlay.SweepInterval); err != nil {
		return err
	}
	if err := setDuration(&cfg.DedupWindow, overlay.DedupWindow); err != nil {
		return err
	}
	if err := setDuration(&cfg.StoreTimeout, overlay.StoreTimeout); err != nil {
		return err
	}
	if overlay.HistoryRetentionDays != nil {
		cfg.HistoryRetentionDays = *overlay.HistoryRetentionDays
	}
	if overlay.AlertRetentionDays != nil {
		cfg.AlertRetentionDays = *overlay.AlertRetentionDays
	}
	if overlay.HistoryPurgeAt != "" {
		cfg.HistoryPurgeAt = overlay.HistoryPurgeAt
	}
	if overlay.AlertPurgeAt != "" {
		cfg.AlertPurgeAt = overlay.AlertPurgeAt
	}
	return nil
}

func setDuration(target *time.Duration, value string) error {
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*target = parsed
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
