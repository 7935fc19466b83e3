package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name for viq spans.
const TracerName = "viq"

// Span attribute keys
const (
	AttrEndpoint   = "viq.endpoint"
	AttrMethod     = "http.method"
	AttrStatusCode = "http.status_code"
	AttrTaskID     = "viq.task_id"
	AttrFileName   = "viq.file_name"
	AttrFileSize   = "viq.file_size"
	AttrReportID   = "viq.report_id"
	AttrErrorCode  = "viq.error_code"
)

// Span names
const (
	SpanBackendCall = "viq.backend"
	SpanUpload      = "viq.upload"
	SpanPageFetch   = "viq.reports.fetch"
)

// Tracer starts viq spans on the global otel provider.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new tracer.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(TracerName)}
}

// StartBackendSpan starts a span for one backend HTTP call.
func (t *Tracer) StartBackendSpan(ctx context.Context, method, endpoint string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanBackendCall+"."+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrMethod, method),
			attribute.String(AttrEndpoint, endpoint),
		),
	)
}

// StartUploadSpan starts a span covering one file transfer.
func (t *Tracer) StartUploadSpan(ctx context.Context, taskID, fileName string, size int64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanUpload,
		trace.WithAttributes(
			attribute.String(AttrTaskID, taskID),
			attribute.String(AttrFileName, fileName),
			attribute.Int64(AttrFileSize, size),
		),
	)
}

// StartPageSpan starts a span for a report page fetch.
func (t *Tracer) StartPageSpan(ctx context.Context, offset, limit int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanPageFetch,
		trace.WithAttributes(
			attribute.Int("viq.offset", offset),
			attribute.Int("viq.limit", limit),
		),
	)
}

// EndSpan records err (if any) and ends the span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
