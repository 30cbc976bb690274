package application

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines availability report configuration.
type Config struct {
	StorageRoot           string
	DailyAt               string
	HeartbeatInterval     time.Duration
	AvailabilityThreshold float64
	WebhookURL            string
	StoreTimeout          time.Duration
}

type yamlConfig struct {
	StorageRoot           string   `yaml:"storage_root"`
	DailyAt               string   `yaml:"daily_at"`
	HeartbeatInterval     string   `yaml:"heartbeat_interval"`
	AvailabilityThreshold *float64 `yaml:"availability_threshold"`
	WebhookURL            string   `yaml:"webhook_url"`
	StoreTimeout          string   `yaml:"store_timeout"`
}

// LoadConfig loads config from env with an optional yaml overlay
// pointed at by REPORTS_CONFIG.
func LoadConfig() (Config, error) {
	cfg := Config{
		StorageRoot:           getenvDefault("REPORTS_STORAGE_ROOT", filepath.FromSlash("var/reports/availability")),
		DailyAt:               getenvDefault("REPORTS_DAILY_AT", "04:00"),
		HeartbeatInterval:     getenvDuration("HEARTBEAT_INTERVAL", time.Minute),
		AvailabilityThreshold: getenvFloatDefault("AVAILABILITY_THRESHOLD", 95),
		WebhookURL:            os.Getenv("REPORTS_WEBHOOK_URL"),
		StoreTimeout:          getenvDuration("REPORTS_STORE_TIMEOUT", 30*time.Second),
	}

	if path := os.Getenv("REPORTS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		var overlay yamlConfig
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return cfg, err
		}
		if overlay.StorageRoot != "" {
			cfg.StorageRoot = overlay.StorageRoot
		}
		if overlay.DailyAt != "" {
			cfg.DailyAt = overlay.DailyAt
		}
		if overlay.HeartbeatInterval != "" {
			parsed, err := time.ParseDuration(overlay.HeartbeatInterval)
			if err != nil {
				return cfg, err
			}
			cfg.HeartbeatInterval = parsed
		}
		if overlay.AvailabilityThreshold != nil {
			cfg.AvailabilityThreshold = *overlay.AvailabilityThreshold
		}
		if overlay.WebhookURL != "" {
			cfg.WebhookURL = overlay.WebhookURL
		}
		if overlay.StoreTimeout != "" {
			parsed, err := time.ParseDuration(overlay.StoreTimeout)
			if err != nil {
				return cfg, err
			}
			cfg.StoreTimeout = parsed
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c Config) Validate() error {
	if c.StorageRoot == "" {
		return errors.New("reports config: storage root required")
	}
	if _, err := time.Parse("15:04", c.DailyAt); err != nil {
		return errors.New("reports config: daily_at must be HH:MM")
	}
	if c.HeartbeatInterval <= 0 {
		return errors.New("reports config: heartbeat interval must be positive")
	}
	if c.AvailabilityThreshold < 0 || c.AvailabilityThreshold > 100 {
		return errors.New("reports config: availability threshold must be 0-100")
	}
	if c.StoreTimeout <= 0 {
		return errors.New("reports config: store timeout must be positive")
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
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
