package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	registry "dvrwatch/internal/registry/domain"
	registryrepo "dvrwatch/internal/registry/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type config struct {
	dsn         string
	prefix      string
	count       int
	subnet      string
	dvrShare    int
	contact     string
	markOffline bool
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	if cfg.count <= 0 || cfg.count > 250 {
		log.Fatal("count must be between 1 and 250")
	}
	if cfg.dvrShare < 0 || cfg.dvrShare > 100 {
		log.Fatal("dvr-share must be a percentage")
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := registryrepo.NewDeviceRepository(db)
	now := time.Now().UTC()

	created := 0
	for i := 1; i <= cfg.count; i++ {
		kind := registry.KindCamera
		name := fmt.Sprintf("Camera %02d", i)
		port := 554
		if i*100/cfg.count <= cfg.dvrShare {
			kind = registry.KindDVR
			name = fmt.Sprintf("DVR %02d", i)
			port = 8000
		}
		device := &registry.Device{
			ID:           fmt.Sprintf("%s%03d", cfg.prefix, i),
			Name:         name,
			Kind:         kind,
			Address:      fmt.Sprintf("%s.%d", cfg.subnet, i+9),
			Port:         port,
			ContactEmail: cfg.contact,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if !cfg.markOffline {
			seen := now
			device.LastSeen = &seen
		}
		if err := repo.Create(ctx, device); err != nil {
			log.Printf("skip %s: %v", device.ID, err)
			continue
		}
		created++
	}

	log.Printf("seeded %d devices", created)
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&cfg.prefix, "prefix", envOrDefault("DEVICE_PREFIX", "dev-seed-"), "device id prefix")
	flag.IntVar(&cfg.count, "count", envOrInt("DEVICE_COUNT", 20), "number of devices to create")
	flag.StringVar(&cfg.subnet, "subnet", envOrDefault("DEVICE_SUBNET", "10.0.0"), "first three octets of the device addresses")
	flag.IntVar(&cfg.dvrShare, "dvr-share", envOrInt("DVR_SHARE", 20), "percentage of devices created as DVRs")
	flag.StringVar(&cfg.contact, "contact", envOrDefault("CONTACT_EMAIL", ""), "contact email assigned to every device")
	flag.BoolVar(&cfg.markOffline, "offline", false, "create devices without a last heartbeat")
	flag.Parse()
	return cfg
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
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
