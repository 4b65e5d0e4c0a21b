// Package metrics provides Prometheus instrumentation for the platform.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "saaskit",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "saaskit",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// UsageIncrementsTotal counts usage counter increments by feature.
	UsageIncrementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "saaskit",
			Name:      "usage_increments_total",
			Help:      "Total usage counter increments by feature.",
		},
		[]string{"feature"},
	)

	// UsageAlertsTotal counts usage limit alerts sent.
	UsageAlertsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "saaskit",
		Name:      "usage_alerts_total",
		Help:      "Total usage limit warning notifications created.",
	})

	// AuditRecordsTotal counts audit records by outcome.
	AuditRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "saaskit",
			Name:      "audit_records_total",
			Help:      "Total audit records by outcome (written, dropped).",
		},
		[]string{"outcome"},
	)

	// NotificationsCreatedTotal counts notifications by type.
	NotificationsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "saaskit",
			Name:      "notifications_created_total",
			Help:      "Total notifications created by type.",
		},
		[]string{"type"},
	)

	// LoginsTotal counts credential exchanges by result.
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "saaskit",
			Name:      "logins_total",
			Help:      "Total login attempts by result.",
		},
		[]string{"result"},
	)

	// FileUploadBytes observes uploaded file sizes.
	FileUploadBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "saaskit",
		Name:      "file_upload_bytes",
		Help:      "Uploaded file sizes in bytes.",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
	})

	// SubscriptionsExpiredTotal counts subscriptions processed by the billing timer.
	SubscriptionsExpiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "saaskit",
			Name:      "subscriptions_expired_total",
			Help:      "Subscriptions processed at period end, by outcome (renewed, cancelled).",
		},
		[]string{"outcome"},
	)

	// ActiveWebSocketClients tracks connected realtime clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "saaskit",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "saaskit", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "saaskit", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "saaskit", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "saaskit", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		UsageIncrementsTotal,
		UsageAlertsTotal,
		AuditRecordsTotal,
		NotificationsCreatedTotal,
		LoginsTotal,
		FileUploadBytes,
		SubscriptionsExpiredTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the /metrics endpoint handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups status codes to keep label cardinality low.
func statusBucket(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
