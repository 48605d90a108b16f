// Package metrics exposes the Prometheus collectors served on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts counts login outcomes: success, rejected, error.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "school_auth_login_attempts_total",
		Help: "Login attempts by outcome.",
	}, []string{"result"})

	// Registrations counts registration outcomes: success, conflict, error.
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "school_auth_registrations_total",
		Help: "Registrations by outcome.",
	}, []string{"result"})

	// AttendanceRecordsSaved counts records applied by bulk saves.
	AttendanceRecordsSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "school_attendance_records_saved_total",
		Help: "Attendance records written by bulk saves.",
	})

	// AttendanceSaveFailures counts batches rejected by the store.
	AttendanceSaveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "school_attendance_save_failures_total",
		Help: "Attendance batches that failed to persist.",
	})

	// HistoryEntriesProjected counts history rows appended by the worker.
	HistoryEntriesProjected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "school_attendance_history_projected_total",
		Help: "Attendance history entries appended by the projector.",
	})

	// HTTPRequestDuration observes request latency per route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "school_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// GinMiddleware records request latency using the matched route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
