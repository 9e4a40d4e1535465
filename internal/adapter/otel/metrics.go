package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "caremesh"

// Metrics holds all CareMesh metric instruments.
type Metrics struct {
	TasksStarted   metric.Int64Counter
	TasksCompleted metric.Int64Counter
	TasksFailed    metric.Int64Counter
	TasksCanceled  metric.Int64Counter
	ToolCalls      metric.Int64Counter
	TaskDuration   metric.Float64Histogram
	DispatchFanout metric.Int64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TasksStarted, err = meter.Int64Counter("caremesh.tasks.started",
		metric.WithDescription("Number of tasks started"))
	if err != nil {
		return nil, err
	}

	m.TasksCompleted, err = meter.Int64Counter("caremesh.tasks.completed",
		metric.WithDescription("Number of tasks completed"))
	if err != nil {
		return nil, err
	}

	m.TasksFailed, err = meter.Int64Counter("caremesh.tasks.failed",
		metric.WithDescription("Number of tasks failed"))
	if err != nil {
		return nil, err
	}

	m.TasksCanceled, err = meter.Int64Counter("caremesh.tasks.canceled",
		metric.WithDescription("Number of tasks canceled"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("caremesh.toolcalls",
		metric.WithDescription("Number of record tool calls"))
	if err != nil {
		return nil, err
	}

	m.TaskDuration, err = meter.Float64Histogram("caremesh.task.duration_seconds",
		metric.WithDescription("Task duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.DispatchFanout, err = meter.Int64Histogram("caremesh.dispatch.fanout",
		metric.WithDescription("Specialists consulted per coordinated task"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
