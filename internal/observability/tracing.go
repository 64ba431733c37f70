package observability

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	subjectIDContextKey contextKey = "observability.subject_id"
	requestIDKey        contextKey = "observability.request_id"
	routeKey            contextKey = "observability.route"
)

// WithRequestMetadata enriches context and current span with request metadata.
func WithRequestMetadata(ctx context.Context, requestID, route string) context.Context {
	requestID = strings.TrimSpace(requestID)
	route = strings.TrimSpace(route)
	if requestID != "" {
		ctx = context.WithValue(ctx, requestIDKey, requestID)
	}
	if route != "" {
		ctx = context.WithValue(ctx, routeKey, route)
	}
	setSpanRequestAttributes(ctx, requestID, route)
	return ctx
}

// WithSubjectIdentity tags context and current span with the authenticated
// subject. Only verified identities belong here, never raw client state.
func WithSubjectIdentity(ctx context.Context, subjectID string) context.Context {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return ctx
	}
	ctx = context.WithValue(ctx, subjectIDContextKey, subjectID)
	if span := trace.SpanFromContext(ctx); span != nil {
		span.SetAttributes(attribute.String("mailhook.subject_id", subjectID))
	}
	return ctx
}

// SubjectIDFromContext extracts the verified subject identity.
func SubjectIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(subjectIDContextKey).(string)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

// RequestIDFromContext extracts request id.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(requestIDKey).(string)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

// RouteFromContext extracts normalized route path.
func RouteFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(routeKey).(string)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func setSpanRequestAttributes(ctx context.Context, requestID, route string) {
	span := trace.SpanFromContext(ctx)
	if span == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, 2)
	if requestID != "" {
		attrs = append(attrs, attribute.String("request.id", requestID))
	}
	if route != "" {
		attrs = append(attrs, attribute.String("http.route", route))
	}
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
}
