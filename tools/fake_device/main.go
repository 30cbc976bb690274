package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"
)

type config struct {
	baseURL  string
	deviceID string
	address  string
	name     string
	interval time.Duration
	count    int
	failRate float64
}

type heartbeatPayload struct {
	DeviceID     string  `json:"device_id,omitempty"`
	IP           string  `json:"ip,omitempty"`
	Outcome      string  `json:"outcome,omitempty"`
	ResponseTime float64 `json:"response_time"`
	Message      string  `json:"message,omitempty"`
}

type ackPayload struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Online   bool   `json:"online"`
	Status   string `json:"status"`
}

func main() {
	cfg := parseConfig()
	if cfg.deviceID == "" && cfg.address == "" {
		log.Fatal("device-id or ip is required")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	url := cfg.baseURL + "/api/v1/heartbeat"

	log.Printf("fake device %q sending heartbeats to %s every %s", cfg.name, url, cfg.interval)

	sent := 0
	for {
		sendHeartbeat(client, url, cfg)
		sent++
		if cfg.count > 0 && sent >= cfg.count {
			log.Printf("sent %d heartbeats, done", sent)
			return
		}
		time.Sleep(cfg.interval)
	}
}

func sendHeartbeat(client *http.Client, url string, cfg config) {
	outcome := "success"
	if cfg.failRate > 0 && rand.Float64() < cfg.failRate {
		outcome = "failure"
	}
	payload := heartbeatPayload{
		DeviceID:     cfg.deviceID,
		IP:           cfg.address,
		Outcome:      outcome,
		ResponseTime: 20 + rand.Float64()*60,
		Message:      fmt.Sprintf("Ping depuis %s - simulation", cfg.name),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("send error: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("server returned %d", resp.StatusCode)
		return
	}
	var ack ackPayload
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		log.Printf("decode ack error: %v", err)
		return
	}
	log.Printf("heartbeat acknowledged: device=%s status=%s latency=%.1fms", ack.DeviceID, ack.Status, payload.ResponseTime)
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.baseURL, "base-url", envOrDefault("BASE_URL", "http://localhost:8080"), "monitoring server base URL")
	flag.StringVar(&cfg.deviceID, "device-id", envOrDefault("DEVICE_ID", ""), "device id to report as")
	flag.StringVar(&cfg.address, "ip", envOrDefault("DEVICE_IP", ""), "device address to report as")
	flag.StringVar(&cfg.name, "name", envOrDefault("DEVICE_NAME", "Camera simulee"), "display name used in messages")
	flag.DurationVar(&cfg.interval, "interval", envOrDuration("INTERVAL", time.Minute), "delay between heartbeats")
	flag.IntVar(&cfg.count, "count", envOrInt("COUNT", 0), "number of heartbeats to send, 0 for unlimited")
	flag.Float64Var(&cfg.failRate, "fail-rate", envOrFloat("FAIL_RATE", 0), "fraction of heartbeats reported as failures")
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

func envOrFloat(key string, fallback float64) float64 {
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

func envOrDuration(key string, fallback time.Duration) time.Duration {
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
