package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PublishAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "postpilot_publish_attempts_total",
		Help: "Publish attempts per platform and outcome",
	}, []string{"platform", "status"})

	PublishDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "postpilot_publish_duration_seconds",
		Help:    "Time spent in one platform publish call",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
	}, []string{"platform"})

	SweepPosts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "postpilot_sweep_posts_total",
		Help: "Posts handled by the scheduled sweep, by resulting status",
	}, []string{"outcome"})
)

// MustRegister registers the collectors.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		PublishAttempts,
		PublishDuration,
		SweepPosts,
	)
}

func ObservePublish(platform, status string, started time.Time) {
	PublishAttempts.WithLabelValues(platform, status).Inc()
	PublishDuration.WithLabelValues(platform).Observe(time.Since(started).Seconds())
}
