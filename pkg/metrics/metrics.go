package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	AuthzDenied        *prometheus.CounterVec
	AuthzChecked       *prometheus.CounterVec
	ACLRowsWritten     *prometheus.CounterVec
	ChangefeedEnqueued *prometheus.CounterVec
	ProjectionDuration *prometheus.HistogramVec
	UpstreamAttempts   *prometheus.CounterVec
	LoginThrottled     prometheus.Counter
}

var (
	once      sync.Once
	singleton *Metrics
)

// Use returns the process-wide metric set, registered on the default
// registry.
func Use() *Metrics {
	once.Do(func() {
		singleton = &Metrics{
			AuthzDenied: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "varda_authz_denied_total",
				Help: "Object-level permission denials by content type and verb.",
			}, []string{"content_type", "verb"}),
			AuthzChecked: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "varda_authz_checked_total",
				Help: "Object-level permission checks by content type and verb.",
			}, []string{"content_type", "verb"}),
			ACLRowsWritten: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "varda_acl_rows_written_total",
				Help: "Group ACL rows written by content type and operation.",
			}, []string{"content_type", "op"}),
			ChangefeedEnqueued: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "varda_changefeed_enqueued_total",
				Help: "Change records written by model name and history type.",
			}, []string{"model", "history_type"}),
			ProjectionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "varda_projection_duration_seconds",
				Help:    "Latency of temporal projection queries.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			}, []string{"query"}),
			UpstreamAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "varda_upstream_attempts_total",
				Help: "Upstream registry call attempts by service and outcome.",
			}, []string{"service", "outcome"}),
			LoginThrottled: promauto.NewCounter(prometheus.CounterOpts{
				Name: "varda_login_throttled_total",
				Help: "Authentication attempts rejected by the rate limiter.",
			}),
		}
	})
	return singleton
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
