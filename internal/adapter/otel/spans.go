package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "caremesh"

// StartTaskSpan starts a span for an agent task.
func StartTaskSpan(ctx context.Context, taskID, agent string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "task",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("agent.name", agent),
		),
	)
}

// StartDispatchSpan starts a span for one specialist call within a
// coordinated task. It nests under the task span, which carries the id.
func StartDispatchSpan(ctx context.Context, specialty string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "dispatch",
		trace.WithAttributes(
			attribute.String("dispatch.specialty", specialty),
		),
	)
}

// StartToolCallSpan starts a span for a record tool call.
func StartToolCallSpan(ctx context.Context, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("toolcall.tool", tool),
		),
	)
}
