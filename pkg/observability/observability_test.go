package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestUploadMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewUploadMetrics(reg)

	m.SetQueueState(3, true)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.QueueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InFlight))

	m.SetQueueState(0, false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))

	m.RecordFinished(OutcomeCompleted, 1.5, 2048)
	m.RecordFinished(OutcomeFailed, 0.2, 1024)
	m.RecordFinished(OutcomeCancelled, 0.1, 512)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues(OutcomeCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.BytesUploaded), "only completed uploads count bytes")

	m.RecordDispatch(0.3)
	assert.Equal(t, 1, testutil.CollectAndCount(m.QueueWaitSeconds))
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.RecordRequest("logs.list", "200", 0.05)
	m.RecordRequest("logs.list", "200", 0.07)
	m.RecordRequest("logs.delete", "422", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("logs.list", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("logs.delete", "422")))
}

func TestReportMetrics(t *testing.T) {
	m := NewReportMetrics(prometheus.NewRegistry())

	m.RecordFetch("ok")
	m.RecordFetch("stale")
	m.RecordDelete("validation")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleResponses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeletesTotal.WithLabelValues("validation")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var u *UploadMetrics
	var h *HTTPMetrics
	var r *ReportMetrics

	assert.NotPanics(t, func() {
		u.SetQueueState(1, true)
		u.RecordDispatch(1)
		u.RecordFinished(OutcomeCompleted, 1, 1)
		h.RecordRequest("x", "200", 1)
		r.RecordFetch("ok")
		r.RecordDelete("ok")
	})
}

func TestTracer_NoopProvider(t *testing.T) {
	tr := NewTracer()
	ctx, span := tr.StartBackendSpan(context.Background(), "GET", "logs.list")
	assert.NotNil(t, span)
	EndSpan(span, errors.New("boom"))

	_, span = tr.StartUploadSpan(ctx, "task-1", "call.mp3", 10)
	EndSpan(span, nil)

	// The default global provider is a no-op and never assigns trace IDs.
	assert.Equal(t, "", GetTraceID(ctx))
}
