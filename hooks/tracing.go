package hooks

import (
	"context"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingHook implements OpenTelemetry tracing
type TracingHook struct {
	tracer trace.Tracer
}

var (
	_ Hook          = (*TracingHook)(nil)
	_ bun.QueryHook = (*TracingHook)(nil)
)

// NewTracingHook creates a new tracing hook
func NewTracingHook(tracer trace.Tracer) *TracingHook {
	return &TracingHook{tracer: tracer}
}

type spanCtxKey struct{}

// BeforeStatement is called before a dbutils statement runs
func (h *TracingHook) BeforeStatement(ctx context.Context, event *Event) context.Context {
	return h.start(ctx, event)
}

// AfterStatement is called after a dbutils statement ran
func (h *TracingHook) AfterStatement(ctx context.Context, event *Event) {
	h.end(ctx, event)
}

// BeforeQuery is called before a bun query is executed
func (h *TracingHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return h.start(ctx, fromBun(event))
}

// AfterQuery is called after a bun query is executed
func (h *TracingHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	h.end(ctx, fromBun(event))
}

func (h *TracingHook) start(ctx context.Context, event *Event) context.Context {
	if h.tracer == nil {
		return ctx
	}

	ctx, span := h.tracer.Start(ctx, "db."+OperationType(event.Query),
		trace.WithSpanKind(trace.SpanKindClient),
	)

	return context.WithValue(ctx, spanCtxKey{}, span)
}

func (h *TracingHook) end(ctx context.Context, event *Event) {
	span, ok := ctx.Value(spanCtxKey{}).(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("db.statement", truncate(event.Query)),
		attribute.String("db.operation", OperationType(event.Query)),
	}
	if event.System != "" {
		attrs = append(attrs, attribute.String("db.system", event.System))
	}
	if event.Operation != "" {
		attrs = append(attrs, attribute.String("dbutils.op", event.Operation))
	}
	if event.Rows >= 0 {
		attrs = append(attrs, attribute.Int64("db.rows", event.Rows))
	}
	if event.Flushes > 0 {
		attrs = append(attrs, attribute.Int("dbutils.batch.flushes", event.Flushes))
	}
	span.SetAttributes(attrs...)

	if event.Err != nil {
		span.RecordError(event.Err)
		span.SetStatus(codes.Error, event.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}
