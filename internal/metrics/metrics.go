// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cubit"

// Activation paths.
const (
	PathLicense = "license"
	PathByKey   = "key"
	PathDirect  = "direct"
)

// Recorder owns the collectors exported on /metrics. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	activations     *prometheus.CounterVec
	checks          *prometheus.CounterVec
	licensesIssued  *prometheus.CounterVec
	expirations     prometheus.Counter
	sweepRuns       *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	ordersProcessed *prometheus.CounterVec
}

// New creates a Recorder backed by its own registry, including the Go runtime
// and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "license_activations_total",
			Help:      "License activation attempts by path and result.",
		}, []string{"path", "result"}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "license_checks_total",
			Help:      "Activation checks from client applications by result.",
		}, []string{"result"}),
		licensesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "licenses_issued_total",
			Help:      "License records created by product.",
		}, []string{"product"}),
		expirations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "license_expirations_total",
			Help:      "License records flipped to expired.",
		}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "license_expiry_sweeps_total",
			Help:      "Expiry sweep runs by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ordersProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders by final checkout status.",
		}, []string{"status"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.activations,
		r.checks,
		r.licensesIssued,
		r.expirations,
		r.sweepRuns,
		r.httpRequests,
		r.httpDuration,
		r.ordersProcessed,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) Activation(path, result string) {
	if r == nil {
		return
	}
	r.activations.WithLabelValues(path, result).Inc()
}

func (r *Recorder) Check(result string) {
	if r == nil {
		return
	}
	r.checks.WithLabelValues(result).Inc()
}

func (r *Recorder) LicensesIssued(product string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.licensesIssued.WithLabelValues(product).Add(float64(n))
}

func (r *Recorder) Expired(n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.expirations.Add(float64(n))
}

func (r *Recorder) SweepRun(err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	r.sweepRuns.WithLabelValues(result).Inc()
}

func (r *Recorder) Order(status string) {
	if r == nil {
		return
	}
	r.ordersProcessed.WithLabelValues(status).Inc()
}

func (r *Recorder) HTTPRequest(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
