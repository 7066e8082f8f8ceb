// Package observer exposes Prometheus metrics for dispatches, callbacks and investigations.
package observer

import (
	"strconv"
	"time"

	"thor_backend/internal/leads/domain"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thor_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thor_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	dispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thor_dispatch_resolved_total",
			Help: "Dispatches by job kind and how they were resolved (accepted, accepted_on_timeout, rejected).",
		},
		[]string{"kind", "outcome"},
	)

	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thor_dispatch_ack_duration_seconds",
			Help:    "Time until a dispatch was resolved for the caller.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 4, 5, 6},
		},
		[]string{"kind"},
	)

	lateSettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thor_dispatch_late_settlements_total",
			Help: "Outbound calls that settled after the acknowledgment window.",
		},
		[]string{"kind", "result"},
	)

	callbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thor_callbacks_total",
			Help: "Inbound runner callbacks by kind and result (applied, unmatched, invalid, failed).",
		},
		[]string{"kind", "result"},
	)

	investigationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thor_investigations_total",
			Help: "Investigations by result.",
		},
		[]string{"result"},
	)

	unreportedRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thor_scrape_runs_unreported_total",
			Help: "Scrape runs that had not called back when their watch fired.",
		},
	)
)

// Recorder implements the telemetry hooks of the leads module on the default registry.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (*Recorder) DispatchResolved(kind domain.JobKind, outcome string, elapsed time.Duration) {
	dispatchesTotal.WithLabelValues(string(kind), outcome).Inc()
	dispatchDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

func (*Recorder) LateSettlement(kind domain.JobKind, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	lateSettlementsTotal.WithLabelValues(string(kind), result).Inc()
}

func (*Recorder) Callback(kind domain.JobKind, result string) {
	callbacksTotal.WithLabelValues(string(kind), result).Inc()
}

func (*Recorder) Investigation(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	investigationsTotal.WithLabelValues(result).Inc()
}

func (*Recorder) UnreportedRun() {
	unreportedRunsTotal.Inc()
}

// GinMiddleware records request counts and latency labelled by the matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
