package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_publish_total",
			Help: "Platform publish attempts by outcome",
		},
		[]string{"platform", "outcome"},
	)

	PublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "content_publish_duration_seconds",
			Help:    "Platform publish duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"platform"},
	)

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_status_transitions_total",
			Help: "Content status transition attempts",
		},
		[]string{"from", "to", "result"},
	)

	ScheduledPostsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_scheduled_posts_processed_total",
			Help: "Scheduled posts drained by the scheduler",
		},
		[]string{"platform", "status"},
	)

	TokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_token_refresh_total",
			Help: "Social account token refreshes",
		},
		[]string{"platform", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		PublishTotal,
		PublishDuration,
		TransitionsTotal,
		ScheduledPostsProcessed,
		TokenRefreshTotal,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPublish records one adapter call.
func RecordPublish(platform string, success bool, duration time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	PublishTotal.WithLabelValues(platform, outcome).Inc()
	PublishDuration.WithLabelValues(platform).Observe(duration.Seconds())
}

func RecordTransition(from, to, result string) {
	TransitionsTotal.WithLabelValues(from, to, result).Inc()
}
