package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "dvrwatch_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	heartbeatRequests *prometheus.CounterVec
	heartbeatErrors   *prometheus.CounterVec
	heartbeatLatency  *prometheus.HistogramVec

	sweepRuns         *prometheus.CounterVec
	sweepLatency      *prometheus.HistogramVec
	sweepDeviceErrors prometheus.Counter

	alertEventsTotal   *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec

	retentionDeleted *prometheus.CounterVec

	reportRunsTotal   *prometheus.CounterVec
	reportRunsLatency *prometheus.HistogramVec

	devicesOnline  prometheus.Gauge
	devicesOffline prometheus.Gauge
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		heartbeatRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "heartbeat_requests_total",
				Help: "Total heartbeat ingest requests by result",
			},
			[]string{"result"},
		)
		heartbeatErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "heartbeat_errors_total",
				Help: "Total heartbeat ingest errors by reason",
			},
			[]string{"reason"},
		)
		heartbeatLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "heartbeat_latency_seconds",
				Help:    "Heartbeat ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		sweepRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sweep_runs_total",
				Help: "Total offline sweep passes by result",
			},
			[]string{"result"},
		)
		sweepLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "sweep_latency_seconds",
				Help:    "Offline sweep pass latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		sweepDeviceErrors = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "sweep_device_errors_total",
				Help: "Total per-device sweep failures",
			},
		)

		alertEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_events_total",
				Help: "Total alert events raised by kind",
			},
			[]string{"kind"},
		)
		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total notification deliveries by channel and result",
			},
			[]string{"channel", "result"},
		)

		retentionDeleted = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "retention_deleted_total",
				Help: "Total rows purged by the retention sweeper by table",
			},
			[]string{"table"},
		)

		reportRunsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_runs_total",
				Help: "Total availability report runs by result",
			},
			[]string{"result"},
		)
		reportRunsLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_runs_latency_seconds",
				Help:    "Availability report run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		devicesOnline = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "devices_online",
				Help: "Active devices currently classified online",
			},
		)
		devicesOffline = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "devices_offline",
				Help: "Active devices currently classified offline",
			},
		)

		prometheus.MustRegister(
			heartbeatRequests,
			heartbeatErrors,
			heartbeatLatency,
			sweepRuns,
			sweepLatency,
			sweepDeviceErrors,
			alertEventsTotal,
			notificationsTotal,
			retentionDeleted,
			reportRunsTotal,
			reportRunsLatency,
			devicesOnline,
			devicesOffline,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveHeartbeat records heartbeat ingest duration and result.
func ObserveHeartbeat(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if heartbeatRequests != nil {
		heartbeatRequests.WithLabelValues(result).Inc()
	}
	if heartbeatLatency != nil {
		heartbeatLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncHeartbeatError increments the ingest error counter.
func IncHeartbeatError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if heartbeatErrors != nil {
		heartbeatErrors.WithLabelValues(reason).Inc()
	}
}

// ObserveSweep records a sweep pass duration and result.
func ObserveSweep(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if sweepRuns != nil {
		sweepRuns.WithLabelValues(result).Inc()
	}
	if sweepLatency != nil {
		sweepLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddSweepDeviceErrors increments per-device sweep failures by count.
func AddSweepDeviceErrors(count int) {
	if count <= 0 {
		return
	}
	if sweepDeviceErrors != nil {
		sweepDeviceErrors.Add(float64(count))
	}
}

// IncAlertEvent increments alert counters by kind.
func IncAlertEvent(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if alertEventsTotal != nil {
		alertEventsTotal.WithLabelValues(kind).Inc()
	}
}

// IncNotification increments notification delivery counters.
func IncNotification(channel, result string) {
	if channel == "" {
		channel = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(channel, result).Inc()
	}
}

// AddRetentionDeleted increments the purge counter for a table.
func AddRetentionDeleted(table string, count int64) {
	if table == "" || count <= 0 {
		return
	}
	if retentionDeleted != nil {
		retentionDeleted.WithLabelValues(table).Add(float64(count))
	}
}

// ObserveReportRun records a report run duration and result.
func ObserveReportRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if reportRunsTotal != nil {
		reportRunsTotal.WithLabelValues(result).Inc()
	}
	if reportRunsLatency != nil {
		reportRunsLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// SetFleetStatus sets the online/offline device gauges.
func SetFleetStatus(online, offline int) {
	if devicesOnline != nil {
		devicesOnline.Set(float64(online))
	}
	if devicesOffline != nil {
		devicesOffline.Set(float64(offline))
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
