package monitoring

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Storage metrics
	StorageOpDuration *prometheus.HistogramVec
	StorageErrors     *prometheus.CounterVec
	StorageFallbacks  *prometheus.CounterVec

	// Review metrics
	ReviewsSubmitted *prometheus.CounterVec
	ReviewsRejected  prometheus.Counter
	ReviewCount      prometheus.Gauge
	AverageRating    prometheus.Gauge

	// Rate limiting metrics
	RateLimitHits prometheus.Counter

	// Event metrics
	EventsPublished *prometheus.CounterVec
}

var (
	metrics  *Metrics
	initOnce sync.Once
)

// Init initializes all Prometheus metrics. It is safe to call more than once.
func Init() *Metrics {
	initOnce.Do(register)
	return metrics
}

func register() {
	metrics = &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		// Storage metrics
		StorageOpDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storage_op_duration_seconds",
				Help:    "Key-value storage operation duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"backend", "op"},
		),
		StorageErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_errors_total",
				Help: "Total number of failed storage operations",
			},
			[]string{"backend", "op"},
		),
		StorageFallbacks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "review_storage_fallbacks_total",
				Help: "Total number of recovered review storage read or write failures",
			},
			[]string{"kind"},
		),

		// Review metrics
		ReviewsSubmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviews_submitted_total",
				Help: "Total number of accepted reviews",
			},
			[]string{"rating"},
		),
		ReviewsRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "reviews_rejected_total",
				Help: "Total number of reviews rejected by validation",
			},
		),
		ReviewCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "reviews_current",
				Help: "Number of reviews currently on the board",
			},
		),
		AverageRating: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "reviews_average_rating",
				Help: "Current average rating shown on the board",
			},
		),

		// Rate limiting metrics
		RateLimitHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limit_hits_total",
				Help: "Total number of review submissions rejected by the rate limiter",
			},
		),

		// Event metrics
		EventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "review_events_published_total",
				Help: "Total number of review events published",
			},
			[]string{"status"},
		),
	}
}

// Get returns the global metrics instance
func Get() *Metrics {
	return Init()
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// GinHandler returns a Gin-compatible handler for Prometheus metrics
func GinHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// MetricsMiddleware is a Gin middleware for collecting HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	m := Get()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		// Track in-flight requests
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		// Process request
		c.Next()

		// Record metrics
		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// RecordStorageOp records a storage operation duration
func RecordStorageOp(backend, op string, duration time.Duration) {
	Get().StorageOpDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
}

// RecordStorageError records a failed storage operation
func RecordStorageError(backend, op string) {
	Get().StorageErrors.WithLabelValues(backend, op).Inc()
}

// RecordStorageFallback records a recovered read ("read") or write ("write") failure
func RecordStorageFallback(kind string) {
	Get().StorageFallbacks.WithLabelValues(kind).Inc()
}

// RecordReviewSubmitted records an accepted review
func RecordReviewSubmitted(rating int) {
	Get().ReviewsSubmitted.WithLabelValues(strconv.Itoa(rating)).Inc()
}

// RecordReviewRejected records a review rejected by validation
func RecordReviewRejected() {
	Get().ReviewsRejected.Inc()
}

// SetBoardState sets the review count and average rating gauges
func SetBoardState(count int, average float64) {
	Get().ReviewCount.Set(float64(count))
	Get().AverageRating.Set(average)
}

// RecordRateLimitHit records a rate limit hit
func RecordRateLimitHit() {
	Get().RateLimitHits.Inc()
}

// RecordEventPublished records a publish attempt ("ok" or "error")
func RecordEventPublished(status string) {
	Get().EventsPublished.WithLabelValues(status).Inc()
}
