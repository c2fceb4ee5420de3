package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts an internal span, e.g. around an MCP tool call.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartClientSpan starts a span for an outbound call to the ORKL API.
func StartClientSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError marks the span as failed.
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks the span as successful.
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

var (
	AttrEndpoint   = attribute.Key("orkl.endpoint")
	AttrCacheKey   = attribute.Key("orkl.cache.key")
	AttrCacheHit   = attribute.Key("orkl.cache.hit")
	AttrStatusCode = attribute.Key("http.response.status_code")
	AttrWaitMs     = attribute.Key("orkl.rate_limit.wait_ms")
	AttrTool       = attribute.Key("mcp.tool.name")
	AttrResource   = attribute.Key("mcp.resource.uri")
)
