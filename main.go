package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	alertapp "dvrwatch/internal/alerts/application"
	alertrepo "dvrwatch/internal/alerts/infrastructure/postgres"
	alerthttp "dvrwatch/internal/alerts/interfaces/http"
	"dvrwatch/internal/alerts/notify"
	"dvrwatch/internal/audit"
	heartbeatrepo "dvrwatch/internal/heartbeats/infrastructure/postgres"
	heartbeathttp "dvrwatch/internal/heartbeats/interfaces/http"
	liveapp "dvrwatch/internal/liveness/application"
	livehttp "dvrwatch/internal/liveness/interfaces/http"
	"dvrwatch/internal/observability/metrics"
	regapp "dvrwatch/internal/registry/application"
	registryrepo "dvrwatch/internal/registry/infrastructure/postgres"
	registryhttp "dvrwatch/internal/registry/interfaces/http"
	reportapp "dvrwatch/internal/reports/application"
	reportrepo "dvrwatch/internal/reports/infrastructure/postgres"
	reporthttp "dvrwatch/internal/reports/interfaces/http"
	retention "dvrwatch/internal/retention/application"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	deviceRepo := registryrepo.NewDeviceRepository(db)
	heartbeatRepo := heartbeatrepo.NewHeartbeatRepository(db)
	alertRepo := alertrepo.NewAlertRepository(db)
	reportRepo := reportrepo.NewReportRepository(db)

	monitorCfg, err := liveapp.LoadConfig()
	if err != nil {
		logger.Fatalf("monitor config error: %v", err)
	}

	dedup, err := alertapp.NewDeduplicator(alertRepo, monitorCfg.DedupWindow)
	if err != nil {
		logger.Fatalf("deduplicator error: %v", err)
	}

	broker := alerthttp.NewSSEBroker()
	publishers := []alertapp.Publisher{broker}

	var channels []notify.Channel
	if cfg.WebhookURL != "" {
		channel, err := notify.NewWebhookChannel(cfg.WebhookURL)
		if err != nil {
			logger.Fatalf("webhook channel error: %v", err)
		}
		channels = append(channels, channel)
	}
	if cfg.SMTPAddr != "" {
		var opts []notify.SMTPOption
		if cfg.SMTPUsername != "" {
			opts = append(opts, notify.WithSMTPAuth(cfg.SMTPUsername, cfg.SMTPPassword))
		}
		channel, err := notify.NewSMTPChannel(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPDefaultTo, opts...)
		if err != nil {
			logger.Fatalf("smtp channel error: %v", err)
		}
		channels = append(channels, channel)
	}
	notifier, err := notify.NewNotifier(channels, notify.WithLogger(logger))
	if err != nil {
		logger.Fatalf("notifier error: %v", err)
	}
	defer notifier.Close()
	publishers = append(publishers, notifier)

	monitor, err := liveapp.NewMonitor(db, deviceRepo, heartbeatRepo, alertRepo, dedup, monitorCfg,
		liveapp.WithPublisher(alertapp.NewMultiPublisher(publishers...)),
		liveapp.WithLogger(logger))
	if err != nil {
		logger.Fatalf("monitor error: %v", err)
	}

	registryService, err := regapp.NewService(deviceRepo, regapp.WithAudit(auditRepo))
	if err != nil {
		logger.Fatalf("registry service error: %v", err)
	}
	alertService, err := alertapp.NewService(alertRepo, alertapp.WithAudit(auditRepo))
	if err != nil {
		logger.Fatalf("alert service error: %v", err)
	}

	retentionSweeper, err := retention.NewSweeper(heartbeatRepo, alertRepo, retention.Config{
		HistoryRetentionDays: monitorCfg.HistoryRetentionDays,
		AlertRetentionDays:   monitorCfg.AlertRetentionDays,
		HistoryPurgeAt:       monitorCfg.HistoryPurgeAt,
		AlertPurgeAt:         monitorCfg.AlertPurgeAt,
		StoreTimeout:         monitorCfg.StoreTimeout,
	}, retention.WithLogger(logger))
	if err != nil {
		logger.Fatalf("retention sweeper error: %v", err)
	}

	reportCfg, err := reportapp.LoadConfig()
	if err != nil {
		logger.Fatalf("reports config error: %v", err)
	}
	reportOpts := []reportapp.RunnerOption{reportapp.WithLogger(logger)}
	if reportCfg.WebhookURL != "" {
		channel, err := notify.NewWebhookChannel(reportCfg.WebhookURL)
		if err != nil {
			logger.Fatalf("report webhook error: %v", err)
		}
		reportOpts = append(reportOpts, reportapp.WithChannel(channel))
	}
	reportRunner, err := reportapp.NewRunner(deviceRepo, heartbeatRepo, alertRepo, reportRepo, reportCfg, reportOpts...)
	if err != nil {
		logger.Fatalf("report runner error: %v", err)
	}

	heartbeatHandler, err := livehttp.NewHeartbeatHandler(monitor)
	if err != nil {
		logger.Fatalf("heartbeat handler error: %v", err)
	}
	adminHandler, err := registryhttp.NewAdminHandler(registryService)
	if err != nil {
		logger.Fatalf("admin handler error: %v", err)
	}
	statusHandler, err := registryhttp.NewStatusHandler(monitor, alertRepo)
	if err != nil {
		logger.Fatalf("status handler error: %v", err)
	}
	historyHandler, err := heartbeathttp.NewHistoryHandler(heartbeatRepo)
	if err != nil {
		logger.Fatalf("history handler error: %v", err)
	}
	alertHandler, err := alerthttp.NewHandler(alertService)
	if err != nil {
		logger.Fatalf("alert handler error: %v", err)
	}
	reportHandler, err := reporthttp.NewHandler(reportRunner, reportRepo)
	if err != nil {
		logger.Fatalf("report handler error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweepScheduler := liveapp.NewScheduler(monitor, monitorCfg.SweepInterval, logger)
	go sweepScheduler.Start(ctx)
	go retentionSweeper.Start(ctx)
	go reportapp.NewScheduler(reportRunner).Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/heartbeat", heartbeatHandler)
	mux.Handle("/api/v1/heartbeats", historyHandler)
	mux.Handle("/api/v1/devices", adminHandler)
	mux.Handle("/api/v1/devices/", adminHandler)
	mux.HandleFunc("/api/v1/devices/status", statusHandler.HandleStatus)
	mux.HandleFunc("/api/v1/stats", statusHandler.HandleStats)
	mux.Handle("/api/v1/alerts", alertHandler)
	mux.Handle("/api/v1/alerts/stream", alerthttp.NewStreamHandler(broker))
	mux.Handle("/api/v1/alerts/", alertHandler)
	mux.Handle("/api/v1/reports", reportHandler)
	mux.Handle("/api/v1/reports/", reportHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown error: %v", err)
		}
	}()

	logger.Printf("http listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("http server error: %v", err)
	}
}

type config struct {
	DatabaseURL   string
	HTTPAddr      string
	WebhookURL    string
	SMTPAddr      string
	SMTPFrom      string
	SMTPDefaultTo []string
	SMTPUsername  string
	SMTPPassword  string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:  getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:     getenvDefault("HTTP_ADDR", ":8080"),
		WebhookURL:   getenvDefault("WEBHOOK_URL", ""),
		SMTPAddr:     getenvDefault("SMTP_ADDR", ""),
		SMTPFrom:     getenvDefault("SMTP_FROM", ""),
		SMTPUsername: getenvDefault("SMTP_USERNAME", ""),
		SMTPPassword: getenvDefault("SMTP_PASSWORD", ""),
	}
	if recipients := getenvDefault("SMTP_TO", ""); recipients != "" {
		for _, to := range strings.Split(recipients, ",") {
			if to = strings.TrimSpace(to); to != "" {
				cfg.SMTPDefaultTo = append(cfg.SMTPDefaultTo, to)
			}
		}
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s ip=%s", r.Method, r.URL.Path, resp.status, time.Since(start), audit.ClientIP(r))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
