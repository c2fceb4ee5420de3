package observability

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// InjectHTTPHeaders writes the W3C trace context of ctx into h so the
// remote side can join the trace.
func InjectHTTPHeaders(ctx context.Context, h http.Header) {
	if !Enabled() {
		return
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}

// GetTraceID returns the trace id carried by ctx, or "".
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// GetSpanID returns the span id carried by ctx, or "".
func GetSpanID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.HasSpanID() {
		return ""
	}
	return sc.SpanID().String()
}
