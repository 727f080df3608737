// Package metrics exposes Prometheus collectors for uploads and analysis jobs.
package metrics

import (
	"net/http"
	"time"

	"github.com/insight-dashboard/insight/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "insight"

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	uploads      prometheus.Counter
	uploadBytes  prometheus.Counter
	jobsActive   prometheus.Gauge
	jobsTotal    *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	bytesSent    prometheus.Counter
	wsClients    prometheus.Gauge
	chartRenders *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Files accepted for analysis.",
		}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes received from browser uploads.",
		}),
		jobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Analysis jobs currently in flight.",
		}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Finished analysis jobs by status.",
		}, []string{"status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Analysis round-trip duration.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"status"}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_bytes_sent_total",
			Help:      "File bytes streamed to the analysis endpoint.",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "progress_clients",
			Help:      "Connected progress WebSocket clients.",
		}),
		chartRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chart_renders_total",
			Help:      "Chart images rendered by format.",
		}, []string{"format"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.uploads, m.uploadBytes, m.jobsActive, m.jobsTotal,
		m.jobDuration, m.bytesSent, m.wsClients, m.chartRenders,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// UploadReceived counts an accepted upload.
func (m *Metrics) UploadReceived(size int64) {
	m.uploads.Inc()
	if size > 0 {
		m.uploadBytes.Add(float64(size))
	}
}

// JobStarted implements upload.Recorder.
func (m *Metrics) JobStarted() {
	m.jobsActive.Inc()
}

// JobFinished implements upload.Recorder.
func (m *Metrics) JobFinished(status models.JobStatus, elapsed time.Duration) {
	m.jobsActive.Dec()
	m.jobsTotal.WithLabelValues(string(status)).Inc()
	m.jobDuration.WithLabelValues(string(status)).Observe(elapsed.Seconds())
}

// BytesSent implements upload.Recorder.
func (m *Metrics) BytesSent(n int64) {
	if n > 0 {
		m.bytesSent.Add(float64(n))
	}
}

// ClientConnected tracks progress WebSocket clients.
func (m *Metrics) ClientConnected() { m.wsClients.Inc() }

// ClientDisconnected tracks progress WebSocket clients.
func (m *Metrics) ClientDisconnected() { m.wsClients.Dec() }

// ChartRendered counts a rendered chart image.
func (m *Metrics) ChartRendered(format string) {
	m.chartRenders.WithLabelValues(format).Inc()
}
