// Package observability provides Prometheus metrics and tracing helpers for
// the upload queue, the report table and the backend client.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upload outcomes used as the "outcome" label.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// UploadMetrics holds the queue and transfer metrics.
type UploadMetrics struct {
	QueueDepth       prometheus.Gauge
	InFlight         prometheus.Gauge
	UploadsTotal     *prometheus.CounterVec
	BytesUploaded    prometheus.Counter
	UploadSeconds    *prometheus.HistogramVec
	QueueWaitSeconds prometheus.Histogram
}

// NewUploadMetrics registers upload metrics on reg.
func NewUploadMetrics(reg prometheus.Registerer) *UploadMetrics {
	factory := promauto.With(reg)

	return &UploadMetrics{
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "viq_upload_queue_depth",
			Help: "Files waiting in the upload queue",
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "viq_upload_in_flight",
			Help: "Uploads currently transferring (0 or 1)",
		}),
		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "viq_uploads_total",
				Help: "Finished uploads by outcome",
			},
			[]string{"outcome"},
		),
		BytesUploaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "viq_upload_bytes_total",
			Help: "Bytes sent to the backend by completed uploads",
		}),
		UploadSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "viq_upload_duration_seconds",
				Help:    "Wall time from dispatch to terminal state",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"outcome"},
		),
		QueueWaitSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "viq_upload_queue_wait_seconds",
			Help:    "Time a file spent queued before dispatch",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
		}),
	}
}

// SetQueueState records the queue depth and whether a transfer is running.
func (m *UploadMetrics) SetQueueState(queued int, uploading bool) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(queued))
	if uploading {
		m.InFlight.Set(1)
	} else {
		m.InFlight.Set(0)
	}
}

// RecordDispatch records how long a file waited before its transfer started.
func (m *UploadMetrics) RecordDispatch(waitSeconds float64) {
	if m == nil {
		return
	}
	m.QueueWaitSeconds.Observe(waitSeconds)
}

// RecordFinished records a terminal upload.
func (m *UploadMetrics) RecordFinished(outcome string, seconds float64, bytes int64) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(outcome).Inc()
	m.UploadSeconds.WithLabelValues(outcome).Observe(seconds)
	if outcome == OutcomeCompleted && bytes > 0 {
		m.BytesUploaded.Add(float64(bytes))
	}
}

// HTTPMetrics holds backend client request metrics.
type HTTPMetrics struct {
	RequestsTotal  *prometheus.CounterVec
	RequestSeconds *prometheus.HistogramVec
}

// NewHTTPMetrics registers client request metrics on reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(reg)

	return &HTTPMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "viq_backend_requests_total",
				Help: "Backend requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		RequestSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "viq_backend_request_duration_seconds",
				Help:    "Backend request latency",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
	}
}

// RecordRequest records one backend call. status is the HTTP status code
// as text, or "error" when no response arrived.
func (m *HTTPMetrics) RecordRequest(endpoint, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.RequestSeconds.WithLabelValues(endpoint).Observe(seconds)
}

// ReportMetrics holds report table metrics.
type ReportMetrics struct {
	FetchesTotal   *prometheus.CounterVec
	StaleResponses prometheus.Counter
	DeletesTotal   *prometheus.CounterVec
}

// NewReportMetrics registers report table metrics on reg.
func NewReportMetrics(reg prometheus.Registerer) *ReportMetrics {
	factory := promauto.With(reg)

	return &ReportMetrics{
		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "viq_report_fetches_total",
				Help: "Report page fetches by result",
			},
			[]string{"result"},
		),
		StaleResponses: factory.NewCounter(prometheus.CounterOpts{
			Name: "viq_report_stale_responses_total",
			Help: "Page responses discarded because a newer request was issued",
		}),
		DeletesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "viq_report_deletes_total",
				Help: "Report deletions by result",
			},
			[]string{"result"},
		),
	}
}

// RecordFetch records a page fetch result: "ok", "error", "stale" or "out_of_range".
func (m *ReportMetrics) RecordFetch(result string) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(result).Inc()
	if result == "stale" {
		m.StaleResponses.Inc()
	}
}

// RecordDelete records a delete result: "ok", "validation" or "error".
func (m *ReportMetrics) RecordDelete(result string) {
	if m == nil {
		return
	}
	m.DeletesTotal.WithLabelValues(result).Inc()
}
