package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "sispromo"

// StartVisitSpan starts a span for a visit mutation.
func StartVisitSpan(ctx context.Context, op, visitID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "visit."+op,
		trace.WithAttributes(attribute.String("visit.id", visitID)),
	)
}

// StartDashboardSpan starts a span for a dashboard aggregation.
func StartDashboardSpan(ctx context.Context, promoterID string, start, end time.Time) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "dashboard",
		trace.WithAttributes(
			attribute.String("promoter.id", promoterID),
			attribute.String("range.start", start.Format(time.DateOnly)),
			attribute.String("range.end", end.Format(time.DateOnly)),
		),
	)
}

// StartLoginSpan starts a span for a login attempt.
func StartLoginSpan(ctx context.Context, login string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "auth.login",
		trace.WithAttributes(attribute.String("auth.login", login)),
	)
}
