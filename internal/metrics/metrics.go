package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/docserve/internal/version"
)

type ServerMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	inflight  prometheus.Gauge
	reqTotal  *prometheus.CounterVec
	reqDur    *prometheus.HistogramVec
	respBytes *prometheus.HistogramVec
	errors    *prometheus.CounterVec
	panics    prometheus.Counter
	buildInfo *prometheus.GaugeVec

	rateLimitDenied   prometheus.Counter
	rateLimitCapacity prometheus.Counter

	docReads    *prometheus.CounterVec
	docReadDur  *prometheus.HistogramVec
	docSize     *prometheus.HistogramVec
	profilingOn prometheus.Gauge
}

// New returns a private registry with Go/process collectors, HTTP metrics
// labelled by method/route/status only, and document store metrics.
func New() *ServerMetrics {
	m := &ServerMetrics{
		reg: prometheus.NewRegistry(),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: prometheus.ExponentialBuckets(256, 4, 9),
		}, []string{"method", "route"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP responses by method and route",
		}, []string{"method", "route"}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered handler panics",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "build_id", "go_version", "vcs_dirty"}),
		rateLimitDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by the rate limiter",
		}),
		rateLimitCapacity: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_capacity_total",
			Help: "Total requests rejected because the rate limiter visitor table was full",
		}),
		docReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "document_reads_total",
			Help: "Document store reads by backend and result",
		}, []string{"backend", "result"}),
		docReadDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "document_read_duration_seconds",
			Help:    "Time to fetch and validate a document",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"backend"}),
		docSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "document_size_bytes",
			Help:    "Size of documents served, after compaction",
			Buckets: prometheus.ExponentialBuckets(64, 4, 10),
		}, []string{"backend"}),
		profilingOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.errors,
		m.panics,
		m.buildInfo,
		m.rateLimitDenied,
		m.rateLimitCapacity,
		m.docReads,
		m.docReadDur,
		m.docSize,
		m.profilingOn,
	)
	m.handler = promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
	return m
}

func (m *ServerMetrics) Handler() http.Handler { return m.handler }

func (m *ServerMetrics) IncHttpPanic() { m.panics.Inc() }

func (m *ServerMetrics) IncRateLimitDenied() { m.rateLimitDenied.Inc() }

func (m *ServerMetrics) IncRateLimitCapacity() { m.rateLimitCapacity.Inc() }

// SetBuildInfo is called once at startup.
func (m *ServerMetrics) SetBuildInfo(component string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":        vi.AppName,
		"component":  component,
		"version":    vi.Version,
		"commit":     vi.Commit,
		"build_id":   vi.BuildId,
		"go_version": vi.GoVersion,
		"vcs_dirty":  dirty,
	}).Set(1)
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingOn.Set(1)
		return
	}
	m.profilingOn.Set(0)
}

// ObserveDocumentRead implements document.Observer.
func (m *ServerMetrics) ObserveDocumentRead(backend, result string, seconds float64, size int) {
	m.docReads.WithLabelValues(backend, result).Inc()
	m.docReadDur.WithLabelValues(backend).Observe(seconds)
	if result == "ok" {
		m.docSize.WithLabelValues(backend).Observe(float64(size))
	}
}
