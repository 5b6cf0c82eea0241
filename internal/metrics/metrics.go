package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "draftwire"

// HTTPCollector exposes Prometheus metrics for inbound HTTP requests.
type HTTPCollector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

// NewHTTPCollector constructs a collector with default histograms/counters.
func NewHTTPCollector() (*HTTPCollector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	if err := registry.Register(requestDuration); err != nil {
		return nil, err
	}

	if err := registry.Register(requestTotal); err != nil {
		return nil, err
	}

	return &HTTPCollector{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}, nil
}

// Registry returns the private registry backing this collector so other
// collectors can register into the same /metrics output.
func (c *HTTPCollector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *HTTPCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *HTTPCollector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// PipelineCollector tracks pipeline throughput: candidates entering the
// queue, review resolutions by decision, and publish outcomes. All methods
// are safe on a nil receiver so callers can run without metrics.
type PipelineCollector struct {
	enqueuedTotal  prometheus.Counter
	promotedTotal  prometheus.Counter
	resolvedTotal  *prometheus.CounterVec
	publishedTotal *prometheus.CounterVec
}

// NewPipelineCollector constructs the pipeline counters and registers them
// with the given registry.
func NewPipelineCollector(registry *prometheus.Registry) (*PipelineCollector, error) {
	enqueuedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "candidates_enqueued_total",
		Help:      "Total number of candidates added to the approval queue.",
	})

	promotedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "candidates_promoted_total",
		Help:      "Total number of candidates promoted into review.",
	})

	resolvedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "reviews_resolved_total",
		Help:      "Total number of review replies resolved, by decision.",
	}, []string{"decision"})

	publishedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "publishes_total",
		Help:      "Total number of publish attempts, by outcome.",
	}, []string{"outcome"})

	for _, c := range []prometheus.Collector{enqueuedTotal, promotedTotal, resolvedTotal, publishedTotal} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &PipelineCollector{
		enqueuedTotal:  enqueuedTotal,
		promotedTotal:  promotedTotal,
		resolvedTotal:  resolvedTotal,
		publishedTotal: publishedTotal,
	}, nil
}

// CandidateEnqueued records one candidate entering the queue.
func (c *PipelineCollector) CandidateEnqueued() {
	if c == nil {
		return
	}
	c.enqueuedTotal.Inc()
}

// CandidatePromoted records one candidate promoted into review.
func (c *PipelineCollector) CandidatePromoted() {
	if c == nil {
		return
	}
	c.promotedTotal.Inc()
}

// ReviewResolved records one resolved review reply.
func (c *PipelineCollector) ReviewResolved(decision string) {
	if c == nil {
		return
	}
	c.resolvedTotal.WithLabelValues(decision).Inc()
}

// PublishCompleted records one publish attempt outcome.
func (c *PipelineCollector) PublishCompleted(outcome string) {
	if c == nil {
		return
	}
	c.publishedTotal.WithLabelValues(outcome).Inc()
}
