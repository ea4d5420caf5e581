package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name for summit spans.
const TracerName = "summit"

// Span attribute keys
const (
	AttrService    = "service"
	AttrOperation  = "operation"
	AttrHTTPStatus = "http.status_code"
	AttrUploadID   = "upload_id"
	AttrFileName   = "file_name"
	AttrStage      = "stage"
	AttrErrorType  = "error_type"
)

// Span names
const (
	SpanUpstreamCall = "summit.upstream"
	SpanUpload       = "summit.upload"
	SpanChatQuery    = "summit.chat.query"
)

// Tracer provides distributed tracing for summit operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global otel provider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(TracerName),
	}
}

// StartUpstreamSpan starts a span around one external service call.
func (t *Tracer) StartUpstreamSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanUpstreamCall,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrService, service),
			attribute.String(AttrOperation, operation),
		),
	)
}

// StartUploadSpan starts the root span of an upload.
func (t *Tracer) StartUploadSpan(ctx context.Context, uploadID, fileName string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanUpload,
		trace.WithAttributes(
			attribute.String(AttrUploadID, uploadID),
			attribute.String(AttrFileName, fileName),
		),
	)
}

// StartChatSpan starts a span around a chat query.
func (t *Tracer) StartChatSpan(ctx context.Context, scopeSize int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanChatQuery,
		trace.WithAttributes(attribute.Int("scope_size", scopeSize)),
	)
}

// SpanHelper provides convenient methods for working with the current span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetHTTPStatus records the upstream response status.
func (h *SpanHelper) SetHTTPStatus(status int) {
	h.span.SetAttributes(attribute.Int(AttrHTTPStatus, status))
}

// SetStage records an upload stage as a span event.
func (h *SpanHelper) SetStage(stage string) {
	h.span.AddEvent("stage", trace.WithAttributes(attribute.String(AttrStage, stage)))
}

// SetError records an error on the span.
func (h *SpanHelper) SetError(err error, errorType string) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(attribute.String(AttrErrorType, errorType))
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
