package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikey/trustmail/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustmail_analyses_total",
		Help: "Total risk analyses by threat level and cache use.",
	}, []string{"threat_level", "cached"})

	riskScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trustmail_risk_score",
		Help:    "Distribution of final risk scores.",
		Buckets: prometheus.LinearBuckets(10, 10, 10),
	})

	summariesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustmail_summaries_total",
		Help: "Total content summaries by category.",
	}, []string{"category"})

	batchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustmail_batch_items_total",
		Help: "Total batch items by result.",
	}, []string{"result"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustmail_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trustmail_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// Recorder implements core.MetricsRecorder on the default registry
type Recorder struct{}

// NewRecorder creates a new Prometheus backed recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ObserveAnalysis records a finished analysis
func (r *Recorder) ObserveAnalysis(level core.ThreatLevel, score int, cached bool) {
	analysesTotal.WithLabelValues(string(level), strconv.FormatBool(cached)).Inc()
	riskScore.Observe(float64(score))
}

// ObserveSummary records a finished summary
func (r *Recorder) ObserveSummary(category core.Category) {
	summariesTotal.WithLabelValues(string(category)).Inc()
}

// ObserveBatch records the outcome counts of a batch run
func (r *Recorder) ObserveBatch(processed, failed int) {
	batchItemsTotal.WithLabelValues("success").Add(float64(processed - failed))
	batchItemsTotal.WithLabelValues("failure").Add(float64(failed))
}

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		requestsTotal.WithLabelValues(method, path, status).Inc()
		requestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
